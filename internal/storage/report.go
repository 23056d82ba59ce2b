package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-dash/internal/cluster"
	"github.com/Veraticus/spice-dash/internal/data"
	"github.com/Veraticus/spice-dash/internal/home"
	"github.com/Veraticus/spice-dash/internal/merchant"
	"github.com/Veraticus/spice-dash/internal/user"
)

// Report is one snapshot of the aggregate views.
type Report struct {
	GeneratedAt time.Time
	States      []home.StateTotal
	Hours       []home.HourBucket
	Groups      []merchant.GroupShare
	Merchants   []merchant.MerchantTotal
	Users       []user.KPI
	Segments    []cluster.Assignment
	KPIs        data.KPIs
	Rows        int64
}

// Run is a stored export run.
type Run struct {
	GeneratedAt time.Time
	KPIs        data.KPIs
	ID          int64
	Rows        int64
}

// BuildReport collects the exported views from a started manager.
func BuildReport(m *data.Manager, at time.Time) *Report {
	r := &Report{
		GeneratedAt: at,
		KPIs:        m.KPIs(),
		Rows:        m.Settings().Rows,
		States:      m.Home().StateTotals(),
		Hours:       m.Home().TransactionsByHour(nil),
		Groups:      m.Merchant().GroupOverview(),
		Merchants:   m.Merchant().TopMerchants(nil, m.Settings().TopMerchants),
		Segments:    m.Cluster().ByTotalValue(nil),
	}
	for _, id := range m.User().Users() {
		if kpi := m.User().Summary(&id, nil); kpi.Found {
			r.Users = append(r.Users, kpi)
		}
	}
	return r
}

// SaveReport stores r as a new export run and returns its id.
func (s *SQLiteStorage) SaveReport(ctx context.Context, r *Report) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateReport(r); err != nil {
		return 0, err
	}

	var runID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO export_runs (generated_at, rows_requested, transaction_count, total_amount, mean_amount)
			VALUES (?, ?, ?, ?, ?)`,
			r.GeneratedAt.UTC(), r.Rows, r.KPIs.Count, r.KPIs.Sum, r.KPIs.Mean)
		if err != nil {
			return fmt.Errorf("failed to insert export run: %w", err)
		}
		if runID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get export run id: %w", err)
		}

		writers := []func(*sql.Tx, int64, *Report) error{
			saveStates, saveHours, saveGroups, saveMerchants, saveUsers, saveSegments,
		}
		for _, write := range writers {
			if err := write(tx, runID, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return runID, nil
}

func insertRows[T any](tx *sql.Tx, table, query string, rows []T, args func(int, T) []any) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.Exec(args(i, row)...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

func saveStates(tx *sql.Tx, runID int64, r *Report) error {
	return insertRows(tx, "state_totals", `
		INSERT INTO state_totals (run_id, state, transaction_count, total_amount, mean_amount, latitude, longitude, online)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.States, func(_ int, st home.StateTotal) []any {
			return []any{runID, st.State, st.Count, st.Sum, st.Mean, st.Latitude, st.Longitude, st.Online}
		})
}

func saveHours(tx *sql.Tx, runID int64, r *Report) error {
	return insertRows(tx, "hourly_activity", `
		INSERT INTO hourly_activity (run_id, hour, transaction_count, total_amount)
		VALUES (?, ?, ?, ?)`,
		r.Hours, func(_ int, h home.HourBucket) []any {
			return []any{runID, h.Hour, h.Count, h.Sum}
		})
}

func saveGroups(tx *sql.Tx, runID int64, r *Report) error {
	return insertRows(tx, "merchant_groups", `
		INSERT INTO merchant_groups (run_id, merchant_group, transaction_count, total_amount, share)
		VALUES (?, ?, ?, ?, ?)`,
		r.Groups, func(_ int, g merchant.GroupShare) []any {
			return []any{runID, g.Group, g.Count, g.Sum, g.Share}
		})
}

func saveMerchants(tx *sql.Tx, runID int64, r *Report) error {
	return insertRows(tx, "top_merchants", `
		INSERT INTO top_merchants (run_id, rank, merchant_id, transaction_count, total_amount)
		VALUES (?, ?, ?, ?, ?)`,
		r.Merchants, func(i int, m merchant.MerchantTotal) []any {
			return []any{runID, i + 1, m.MerchantID, m.Count, m.Sum}
		})
}

func saveUsers(tx *sql.Tx, runID int64, r *Report) error {
	return insertRows(tx, "user_summaries", `
		INSERT INTO user_summaries (run_id, client_id, transaction_count, card_count, total_amount, mean_amount)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Users, func(_ int, u user.KPI) []any {
			return []any{runID, u.ClientID, u.Count, u.Cards, u.Sum, u.Mean}
		})
}

func saveSegments(tx *sql.Tx, runID int64, r *Report) error {
	return insertRows(tx, "client_segments", `
		INSERT INTO client_segments (run_id, client_id, age_group, transaction_count, total_amount, segment)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Segments, func(_ int, a cluster.Assignment) []any {
			return []any{runID, a.ClientID, a.AgeGroup, a.X, a.Y, a.Cluster}
		})
}

// LatestRun returns the most recent export run.
func (s *SQLiteStorage) LatestRun(ctx context.Context) (Run, error) {
	if err := validateContext(ctx); err != nil {
		return Run{}, err
	}
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, generated_at, rows_requested, transaction_count, total_amount, mean_amount
		FROM export_runs ORDER BY id DESC LIMIT 1`).
		Scan(&run.ID, &run.GeneratedAt, &run.Rows, &run.KPIs.Count, &run.KPIs.Sum, &run.KPIs.Mean)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRows
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to query latest export run: %w", err)
	}
	return run, nil
}

// StateTotals returns the state rows of an export run ordered by state.
func (s *SQLiteStorage) StateTotals(ctx context.Context, runID int64) ([]home.StateTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT state, transaction_count, total_amount, mean_amount, latitude, longitude, online
		FROM state_totals WHERE run_id = ? ORDER BY state`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query state totals: %w", err)
	}
	defer rows.Close()

	var out []home.StateTotal
	for rows.Next() {
		var (
			st       home.StateTotal
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&st.State, &st.Count, &st.Sum, &st.Mean, &lat, &lon, &st.Online); err != nil {
			return nil, fmt.Errorf("failed to scan state total: %w", err)
		}
		if lat.Valid && lon.Valid {
			st.Latitude, st.Longitude = &lat.Float64, &lon.Float64
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate state totals: %w", err)
	}
	return out, nil
}

// SegmentSizes returns how many clients each segment holds in an export run.
func (s *SQLiteStorage) SegmentSizes(ctx context.Context, runID int64) (map[int]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT segment, COUNT(*) FROM client_segments WHERE run_id = ? GROUP BY segment`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segment sizes: %w", err)
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var segment, count int
		if err := rows.Scan(&segment, &count); err != nil {
			return nil, fmt.Errorf("failed to scan segment size: %w", err)
		}
		out[segment] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate segment sizes: %w", err)
	}
	return out, nil
}

// Prune deletes all but the newest keep export runs.
func (s *SQLiteStorage) Prune(ctx context.Context, keep int) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep must be >= 0, got %d", ErrInvalidRun, keep)
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM export_runs WHERE id NOT IN (
			SELECT id FROM export_runs ORDER BY id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune export runs: %w", err)
	}
	return res.RowsAffected()
}
