package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/Veraticus/spice-dash/internal/cli"
	"github.com/Veraticus/spice-dash/internal/data"
	"github.com/Veraticus/spice-dash/internal/home"
	"github.com/Veraticus/spice-dash/internal/merchant"
	"github.com/spf13/cobra"
)

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print aggregator views as tables",
	}
	cmd.AddCommand(queryHomeCmd())
	cmd.AddCommand(queryMerchantCmd())
	cmd.AddCommand(queryUserCmd())
	cmd.AddCommand(queryClusterCmd())
	return cmd
}

// withManager starts the manager, runs fn against it and shuts down.
func withManager(cmd *cobra.Command, fn func(*data.Manager, io.Writer) error) error {
	m, err := startManager(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer data.Shutdown()
	return fn(m, os.Stdout)
}

func queryHomeCmd() *cobra.Command {
	var (
		region string
		view   string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "home",
		Short: "Regional spending views",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := optional(cmd.Flags().Changed("region"), region)
			return withManager(cmd, func(m *data.Manager, w io.Writer) error {
				return renderHome(w, m.Home(), r, view, limit)
			})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "state name or ONLINE")
	cmd.Flags().StringVar(&view, "view", "users", "users, merchants, hours, gender, age, channel, errors or states")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum rows for ranked views")
	return cmd
}

func renderHome(w io.Writer, h *home.Aggregator, region *string, view string, limit int) error {
	switch view {
	case "users":
		rows := [][]string{}
		for _, u := range head(h.SpendingByUser(region), limit) {
			rows = append(rows, []string{strconv.FormatInt(u.ClientID, 10), strconv.FormatInt(u.Count, 10), home.FormatMoney(u.Sum)})
		}
		cli.RenderTable(w, []string{"Client", "Transactions", "Total"}, rows)
	case "merchants":
		rows := [][]string{}
		for _, mt := range head(h.MerchantTotals(region), limit) {
			rows = append(rows, []string{strconv.FormatInt(mt.MerchantID, 10), strconv.FormatInt(mt.Count, 10), home.FormatMoney(mt.Sum)})
		}
		cli.RenderTable(w, []string{"Merchant", "Transactions", "Total"}, rows)
	case "hours":
		rows := [][]string{}
		for _, b := range h.TransactionsByHour(region) {
			rows = append(rows, []string{fmt.Sprintf("%02d", b.Hour), strconv.FormatInt(b.Count, 10), home.FormatMoney(b.Sum)})
		}
		cli.RenderTable(w, []string{"Hour", "Transactions", "Total"}, rows)
	case "gender":
		cli.RenderTable(w, []string{"Gender", "Total"}, breakdownRows(h.ExpendituresByGender(region)))
	case "age":
		cli.RenderTable(w, []string{"Age group", "Total"}, breakdownRows(h.ExpendituresByAge(region)))
	case "channel":
		cli.RenderTable(w, []string{"Channel", "Total"}, breakdownRows(h.ExpendituresByChannel(region)))
	case "errors":
		s := h.ErrorSummary(region)
		kinds := make([]string, 0, len(s.ByKind))
		for k := range s.ByKind {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return s.ByKind[kinds[i]] > s.ByKind[kinds[j]] })
		rows := [][]string{}
		for _, k := range kinds {
			rows = append(rows, []string{k, strconv.FormatInt(s.ByKind[k], 10)})
		}
		cli.RenderTable(w, []string{"Error", "Rows"}, rows)
	case "states":
		rows := [][]string{}
		for _, st := range h.StateTotals() {
			rows = append(rows, []string{st.State, strconv.FormatInt(st.Count, 10), home.FormatMoney(st.Sum), home.FormatMoney(st.Mean)})
		}
		cli.RenderTable(w, []string{"State", "Transactions", "Total", "Mean"}, rows)
	default:
		return fmt.Errorf("unknown home view %q", view)
	}
	return nil
}

func breakdownRows(m map[string]float64) [][]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, home.FormatMoney(m[k])})
	}
	return rows
}

func queryMerchantCmd() *cobra.Command {
	var (
		group      string
		merchantID int64
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "merchant",
		Short: "Merchant group shares and rankings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g := optional(cmd.Flags().Changed("group"), group)
			byID := cmd.Flags().Changed("merchant")
			return withManager(cmd, func(m *data.Manager, w io.Writer) error {
				a := m.Merchant()
				if byID {
					renderMerchant(w, a, merchantID)
					return nil
				}
				renderMerchantGroup(w, a, g, limit)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "merchant group")
	cmd.Flags().Int64Var(&merchantID, "merchant", 0, "merchant id")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of top merchants")
	return cmd
}

func renderMerchantGroup(w io.Writer, a *merchant.Aggregator, group *string, limit int) {
	if group == nil {
		rows := [][]string{}
		for _, s := range a.GroupOverview() {
			rows = append(rows, []string{s.Group, strconv.FormatInt(s.Count, 10), home.FormatMoney(s.Sum), fmt.Sprintf("%.2f%%", s.Share*100)})
		}
		cli.RenderTable(w, []string{"Group", "Transactions", "Total", "Share"}, rows)
	}

	rows := [][]string{}
	for _, t := range a.TopMerchants(group, limit) {
		rows = append(rows, []string{strconv.FormatInt(t.MerchantID, 10), strconv.FormatInt(t.Count, 10), home.FormatMoney(t.Sum)})
	}
	cli.RenderTable(w, []string{"Merchant", "Transactions", "Total"}, rows)

	rankings := [][]string{
		rankingRow("Most frequent merchant", a.MostFrequentMerchant(group)),
		rankingRow("Most valuable merchant", a.MostValuableMerchant(group)),
	}
	if group != nil {
		rankings = append(rankings,
			rankingRow("Most used by clients", a.MostFrequentlyUsedMerchantInGroup(*group)),
			rankingRow("Most active user", a.UserWithMostTransactionsInGroup(*group)),
			rankingRow("Highest value user", a.UserWithHighestValueInGroup(*group)),
		)
	}
	cli.RenderTable(w, []string{"Ranking", "ID", "Value"}, rankings)
}

func renderMerchant(w io.Writer, a *merchant.Aggregator, id int64) {
	k := a.MerchantSummary(id)
	if !k.Found {
		fmt.Fprintln(w, cli.FormatWarning(fmt.Sprintf("Merchant %d has no transactions", id)))
		return
	}
	cli.RenderTable(w, []string{"Merchant", "Group", "Transactions", "Users", "Total", "Mean"}, [][]string{{
		strconv.FormatInt(k.MerchantID, 10), k.Group, strconv.FormatInt(k.Count, 10),
		strconv.FormatInt(k.Users, 10), home.FormatMoney(k.Sum), home.FormatMoney(k.Mean),
	}})
	cli.RenderTable(w, []string{"Ranking", "ID", "Value"}, [][]string{
		rankingRow("Most active user", a.UserWithMostTransactionsAtMerchant(id)),
		rankingRow("Highest value user", a.UserWithHighestValueAtMerchant(id)),
	})
}

func rankingRow(label string, r merchant.Ranking) []string {
	if !r.Found() {
		return []string{label, "-", r.Outcome.String()}
	}
	return []string{label, strconv.FormatInt(r.ID, 10), strconv.FormatFloat(r.Value, 'f', 2, 64)}
}

func queryUserCmd() *cobra.Command {
	var userID, cardID int64
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Per-user spending views",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u := optional(cmd.Flags().Changed("user"), userID)
			c := optional(cmd.Flags().Changed("card"), cardID)
			if u == nil && c == nil {
				return fmt.Errorf("one of --user or --card is required")
			}
			return withManager(cmd, func(m *data.Manager, w io.Writer) error {
				a := m.User()
				id, ok := a.Resolve(u, c)
				if !ok {
					fmt.Fprintln(w, cli.FormatWarning("No matching user"))
					return nil
				}
				k := a.Summary(u, c)
				fmt.Fprintln(w, cli.RenderBox(fmt.Sprintf("Client %d", id),
					cli.FormatKPI("Transactions", strconv.FormatInt(k.Count, 10))+"\n"+
						cli.FormatKPI("Cards", strconv.Itoa(k.Cards))+"\n"+
						cli.FormatKPI("Total", home.FormatMoney(k.Sum))+"\n"+
						cli.FormatKPI("Mean", home.FormatMoney(k.Mean))))

				rows := [][]string{}
				for _, s := range a.MerchantBreakdown(id) {
					rows = append(rows, []string{s.Group, strconv.FormatInt(s.MerchantID, 10), strconv.FormatInt(s.Count, 10), home.FormatMoney(s.Sum)})
				}
				cli.RenderTable(w, []string{"Group", "Merchant", "Transactions", "Total"}, rows)

				rows = [][]string{}
				for _, s := range a.SpendingByMonth(id) {
					rows = append(rows, []string{s.Month, strconv.FormatInt(s.Count, 10), home.FormatMoney(s.Sum)})
				}
				cli.RenderTable(w, []string{"Month", "Transactions", "Total"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "client id")
	cmd.Flags().Int64Var(&cardID, "card", 0, "card id (takes priority over --user)")
	return cmd
}

func queryClusterCmd() *cobra.Command {
	var (
		group   string
		average bool
	)
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Client segments by spending",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g := optional(cmd.Flags().Changed("age-group"), group)
			return withManager(cmd, func(m *data.Manager, w io.Writer) error {
				a := m.Cluster()
				assignments := a.ByTotalValue(g)
				if average {
					assignments = a.ByAverageValue(g)
				}
				sizes := make(map[int]int)
				for _, as := range assignments {
					sizes[as.Cluster]++
				}
				rows := [][]string{}
				for c := 0; c < len(sizes); c++ {
					rows = append(rows, []string{strconv.Itoa(c), strconv.Itoa(sizes[c])})
				}
				cli.RenderTable(w, []string{"Segment", "Clients"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&group, "age-group", "", "restrict to one age group")
	cmd.Flags().BoolVar(&average, "average", false, "segment by average instead of total value")
	return cmd
}

func head[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
