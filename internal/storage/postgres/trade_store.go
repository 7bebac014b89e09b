package postgres

import (
	"context"
	"fmt"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// InsertBulk adds the trades of one subset atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, runID, subset string, trades []domain.Trade) error {
	if runID == "" || subset == "" {
		return storage.ErrInvalidInput
	}
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trades (
			trade_id, run_id, subset, seq, ticker, listing_date,
			buy_minute, sell_minute, buy_time, sell_time,
			buy_price, sell_price, position_value, shares,
			pnl, pnl_pct, equity_after
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17
		)
	`

	for seq, t := range trades {
		if t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			t.TradeID, runID, subset, seq, t.Ticker, t.Date,
			int(t.Window.Buy), int(t.Window.Sell), t.BuyTime, t.SellTime,
			t.BuyPrice, t.SellPrice, t.PositionValue, t.Shares,
			t.PnL, t.PnLPct, t.EquityAfter,
		)
		if err != nil {
			return storeError("insert trade "+t.TradeID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunSubset retrieves trades in execution order.
func (s *TradeStore) GetByRunSubset(ctx context.Context, runID, subset string) ([]domain.Trade, error) {
	query := `
		SELECT
			trade_id, ticker, listing_date,
			buy_minute, sell_minute, buy_time, sell_time,
			buy_price, sell_price, position_value, shares,
			pnl, pnl_pct, equity_after
		FROM trades
		WHERE run_id = $1 AND subset = $2
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, subset)
	if err != nil {
		return nil, fmt.Errorf("get trades by run/subset: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t         domain.Trade
			buy, sell int
		)
		err := rows.Scan(
			&t.TradeID, &t.Ticker, &t.Date,
			&buy, &sell, &t.BuyTime, &t.SellTime,
			&t.BuyPrice, &t.SellPrice, &t.PositionValue, &t.Shares,
			&t.PnL, &t.PnLPct, &t.EquityAfter,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.Date = t.Date.UTC()
		t.Window = domain.TradingWindow{Buy: domain.TimeOfDay(buy), Sell: domain.TimeOfDay(sell)}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}
