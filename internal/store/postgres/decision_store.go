package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

// DecisionStore implements domain.DecisionLedger using PostgreSQL.
type DecisionStore struct {
	pool *pgxpool.Pool
}

var _ domain.DecisionLedger = (*DecisionStore)(nil)

// NewDecisionStore creates a DecisionStore backed by the given connection pool.
func NewDecisionStore(pool *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

// Append inserts a decision. Decision IDs are deterministic per inputs and
// trading day, so a re-run with unchanged inputs is a no-op instead of a
// duplicate row.
func (s *DecisionStore) Append(ctx context.Context, d domain.TradeDecision) error {
	const query = `
		INSERT INTO trade_decisions (
			id, market_id, question, side, size_usd, action, rationale,
			prior, posterior, confidence, sentiment_score, evidence_strength,
			edge, order_id, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16
		)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.MarketID, d.Question, string(d.Side), d.SizeUSD,
		string(d.Action), d.Rationale,
		d.Prior, d.Posterior, d.Confidence,
		d.Sentiment.Score, d.Sentiment.EvidenceStrength,
		d.Edge, d.OrderID, string(d.Status), d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append decision %s: %w", d.ID, err)
	}
	return nil
}

// UpdateStatus changes the delivery status of a recorded decision and, when
// non-empty, records the exchange order ID.
func (s *DecisionStore) UpdateStatus(ctx context.Context, id string, status domain.DecisionStatus, orderID string) error {
	const query = `
		UPDATE trade_decisions
		SET status = $1,
		    order_id = CASE WHEN $2 <> '' THEN $2 ELSE order_id END
		WHERE id = $3`

	tag, err := s.pool.Exec(ctx, query, string(status), orderID, id)
	if err != nil {
		return fmt.Errorf("postgres: update decision status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecordOutcome stores the realized result of an executed decision and marks
// it resolved.
func (s *DecisionStore) RecordOutcome(ctx context.Context, id string, out domain.DecisionOutcome) error {
	const query = `
		UPDATE trade_decisions
		SET status = $1, won = $2, pnl_usd = $3, pnl_r = $4, resolved_at = $5
		WHERE id = $6`

	tag, err := s.pool.Exec(ctx, query,
		string(domain.DecisionStatusResolved),
		out.Won, out.PnLUSD, out.PnLR, out.ResolvedAt, id,
	)
	if err != nil {
		return fmt.Errorf("postgres: record outcome %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const decisionSelectCols = `id, market_id, question, side, size_usd, action, rationale,
	prior, posterior, confidence, sentiment_score, evidence_strength,
	edge, order_id, status, created_at`

func scanDecision(scanner interface{ Scan(dest ...any) error }) (domain.TradeDecision, error) {
	var d domain.TradeDecision
	var side, action, status string

	err := scanner.Scan(
		&d.ID, &d.MarketID, &d.Question, &side, &d.SizeUSD, &action, &d.Rationale,
		&d.Prior, &d.Posterior, &d.Confidence,
		&d.Sentiment.Score, &d.Sentiment.EvidenceStrength,
		&d.Edge, &d.OrderID, &status, &d.CreatedAt,
	)
	if err != nil {
		return domain.TradeDecision{}, err
	}

	d.Side = domain.Side(side)
	d.Action = domain.Action(action)
	d.Status = domain.DecisionStatus(status)
	return d, nil
}

func scanDecisionRows(rows pgx.Rows) ([]domain.TradeDecision, error) {
	var decisions []domain.TradeDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// GetByID retrieves a single decision by ID.
func (s *DecisionStore) GetByID(ctx context.Context, id string) (domain.TradeDecision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+decisionSelectCols+` FROM trade_decisions WHERE id = $1`, id)

	d, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradeDecision{}, domain.ErrNotFound
		}
		return domain.TradeDecision{}, fmt.Errorf("postgres: get decision %s: %w", id, err)
	}
	return d, nil
}

// ListOpenExecuted returns submitted decisions whose outcome is not yet
// recorded, oldest first.
func (s *DecisionStore) ListOpenExecuted(ctx context.Context) ([]domain.TradeDecision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+decisionSelectCols+` FROM trade_decisions
		 WHERE status = $1
		 ORDER BY created_at ASC`,
		string(domain.DecisionStatusSubmitted))
	if err != nil {
		return nil, fmt.Errorf("postgres: list open decisions: %w", err)
	}
	defer rows.Close()

	decisions, err := scanDecisionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open decisions: %w", err)
	}
	return decisions, nil
}

// SumDailyPnLR sums realized PnL in risk units for the UTC day of t.
func (s *DecisionStore) SumDailyPnLR(ctx context.Context, t time.Time) (float64, error) {
	day := t.UTC().Truncate(24 * time.Hour)

	var sum float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(pnl_r), 0) FROM trade_decisions
		 WHERE resolved_at >= $1 AND resolved_at < $2`,
		day, day.Add(24*time.Hour),
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum daily pnl: %w", err)
	}
	return sum, nil
}

// ListResolvedBefore returns resolved decisions older than cutoff, oldest
// first, for cold-storage archival.
func (s *DecisionStore) ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TradeDecision, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+decisionSelectCols+` FROM trade_decisions
		 WHERE status = $1 AND resolved_at < $2
		 ORDER BY resolved_at ASC
		 LIMIT $3`,
		string(domain.DecisionStatusResolved), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved decisions: %w", err)
	}
	defer rows.Close()

	decisions, err := scanDecisionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan resolved decisions: %w", err)
	}
	return decisions, nil
}

// DeleteByIDs removes decisions after successful archival and returns the
// number of rows deleted.
func (s *DecisionStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trade_decisions WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete decisions: %w", err)
	}
	return tag.RowsAffected(), nil
}
