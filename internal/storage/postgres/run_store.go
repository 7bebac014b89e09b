package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunSummary) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO runs (
			run_id, outcome, started_at, finished_at,
			train_count, test_count, buy_minute, sell_minute,
			train_final, test_final, benchmark_final, config_json
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12
		)
	`

	var buy, sell *int
	if r.SelectedWindow != nil {
		b, sl := int(r.SelectedWindow.Buy), int(r.SelectedWindow.Sell)
		buy, sell = &b, &sl
	}

	_, err := s.pool.Exec(ctx, query,
		r.RunID, string(r.Outcome), r.StartedAt, r.FinishedAt,
		r.TrainCount, r.TestCount, buy, sell,
		r.TrainFinal, r.TestFinal, r.BenchmarkFinal, r.ConfigJSON,
	)
	if err != nil {
		return storeError("insert run", err)
	}
	return nil
}

const selectRuns = `
	SELECT
		run_id, outcome, started_at, finished_at,
		train_count, test_count, buy_minute, sell_minute,
		train_final, test_final, benchmark_final, config_json
	FROM runs
`

// GetByID retrieves a run summary. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	row := s.pool.QueryRow(ctx, selectRuns+` WHERE run_id = $1`, runID)
	r, err := scanRun(row)
	if err != nil {
		return nil, storeError("get run "+runID, err)
	}
	return r, nil
}

// List retrieves run summaries ordered by started_at DESC.
func (s *RunStore) List(ctx context.Context) ([]*domain.RunSummary, error) {
	rows, err := s.pool.Query(ctx, selectRuns+` ORDER BY started_at DESC, run_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// scanRun scans a single row into a RunSummary.
func scanRun(row pgx.Row) (*domain.RunSummary, error) {
	var (
		r         domain.RunSummary
		outcome   string
		buy, sell *int
	)

	err := row.Scan(
		&r.RunID, &outcome, &r.StartedAt, &r.FinishedAt,
		&r.TrainCount, &r.TestCount, &buy, &sell,
		&r.TrainFinal, &r.TestFinal, &r.BenchmarkFinal, &r.ConfigJSON,
	)
	if err != nil {
		return nil, err
	}

	r.Outcome = domain.Outcome(outcome)
	if buy != nil && sell != nil {
		r.SelectedWindow = &domain.TradingWindow{Buy: domain.TimeOfDay(*buy), Sell: domain.TimeOfDay(*sell)}
	}
	return &r, nil
}

// WindowStatStore implements storage.WindowStatStore using PostgreSQL.
type WindowStatStore struct {
	pool *Pool
}

// NewWindowStatStore creates a new WindowStatStore.
func NewWindowStatStore(pool *Pool) *WindowStatStore {
	return &WindowStatStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WindowStatStore = (*WindowStatStore)(nil)

// InsertRanked stores the ranked table of a run atomically.
func (s *WindowStatStore) InsertRanked(ctx context.Context, runID string, stats []domain.WindowStatistic) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(stats) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO window_statistics (
			run_id, rank, buy_minute, sell_minute,
			mean_return, std_return, win_rate, sharpe, sample_count,
			median_return, min_return, max_return
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12
		)
	`

	for rank, st := range stats {
		_, err := tx.Exec(ctx, query,
			runID, rank, int(st.Window.Buy), int(st.Window.Sell),
			st.MeanReturn, st.StdReturn, st.WinRate, st.Sharpe, st.SampleCount,
			st.MedianReturn, st.MinReturn, st.MaxReturn,
		)
		if err != nil {
			return storeError("insert window statistic", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves statistics of a run ordered by rank.
func (s *WindowStatStore) GetByRunID(ctx context.Context, runID string) ([]domain.WindowStatistic, error) {
	query := `
		SELECT
			buy_minute, sell_minute,
			mean_return, std_return, win_rate, sharpe, sample_count,
			median_return, min_return, max_return
		FROM window_statistics
		WHERE run_id = $1
		ORDER BY rank ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get window statistics: %w", err)
	}
	defer rows.Close()

	var stats []domain.WindowStatistic
	for rows.Next() {
		var (
			st        domain.WindowStatistic
			buy, sell int
		)
		err := rows.Scan(
			&buy, &sell,
			&st.MeanReturn, &st.StdReturn, &st.WinRate, &st.Sharpe, &st.SampleCount,
			&st.MedianReturn, &st.MinReturn, &st.MaxReturn,
		)
		if err != nil {
			return nil, fmt.Errorf("scan window statistic row: %w", err)
		}
		st.Window = domain.TradingWindow{Buy: domain.TimeOfDay(buy), Sell: domain.TimeOfDay(sell)}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate window statistic rows: %w", err)
	}
	return stats, nil
}
