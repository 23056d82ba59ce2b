package cache

// Artifact names. Each is owned by exactly one component.
const (
	UsersProcessed        = "users_data_processed"
	TransactionsProcessed = "transactions_data_processed"
	CardsProcessed        = "cards_data_processed"
	TransactionsMCC       = "transactions_mcc"
	TransactionsMCCUsers  = "transactions_mcc_users"
	HomeTabCaches         = "home_tab_caches"
	MerchantTabCaches     = "merchant_tab_caches"
	ClusterTabCaches      = "cluster_tab_caches"
	UserTabCaches         = "user_tab_caches"
	HomeTabMapData        = "home_tab_map_data"
	NumRows               = "num_rows"
)

// Entry names one file of the cache directory.
type Entry struct {
	Name string
	Ext  string
}

// File returns the on-disk file name.
func (e Entry) File() string {
	return e.Name + e.Ext
}

// Manifest is the set of artifacts that make up a complete cache.
var Manifest = []Entry{
	{UsersProcessed, TableExt},
	{TransactionsProcessed, TableExt},
	{CardsProcessed, TableExt},
	{TransactionsMCC, TableExt},
	{TransactionsMCCUsers, TableExt},
	{HomeTabCaches, ObjectExt},
	{MerchantTabCaches, ObjectExt},
	{ClusterTabCaches, ObjectExt},
	{UserTabCaches, ObjectExt},
	{HomeTabMapData, TableExt},
	{NumRows, ObjectExt},
}
