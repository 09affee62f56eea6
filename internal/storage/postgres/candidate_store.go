package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// CandidateStore implements storage.CandidateStore using PostgreSQL.
type CandidateStore struct {
	pool *Pool
}

// NewCandidateStore creates a new CandidateStore.
func NewCandidateStore(pool *Pool) *CandidateStore {
	return &CandidateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CandidateStore = (*CandidateStore)(nil)

const candidateColumns = `
	candidate_id, source, sku, kind, title, brand, region,
	cost, estimated_resale, estimated_fees, net_margin, confidence,
	seller_score, sell_through_days, quantity,
	status, notes, risk_score,
	discovered_at, processed_at, created_at
`

// Insert adds a new candidate. Returns ErrDuplicateKey if candidate_id exists.
func (s *CandidateStore) Insert(ctx context.Context, c *domain.DealCandidate) error {
	query := `
		INSERT INTO deal_candidates (
			candidate_id, source, sku, kind, title, brand, region,
			cost, estimated_resale, estimated_fees, net_margin, confidence,
			seller_score, sell_through_days, quantity,
			status, notes, risk_score,
			discovered_at, processed_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15,
			$16, $17, $18,
			$19, $20, $21
		)
	`

	createdAt := c.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	_, err := s.pool.Exec(ctx, query,
		c.CandidateID, string(c.Source), c.SKU, string(c.Kind), c.Title, c.Brand, c.Region,
		c.Cost, c.EstimatedResale, c.EstimatedFees, c.NetMargin, c.Confidence,
		c.SellerScore, c.SellThroughDays, c.Quantity,
		string(c.Status), c.Notes, c.RiskScore,
		c.DiscoveredAt, c.ProcessedAt, createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

// GetByID retrieves a candidate by its ID. Returns ErrNotFound if not exists.
func (s *CandidateStore) GetByID(ctx context.Context, candidateID string) (*domain.DealCandidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM deal_candidates WHERE candidate_id = $1`

	row := s.pool.QueryRow(ctx, query, candidateID)
	c, err := scanCandidate(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get candidate by id: %w", err)
	}
	return c, nil
}

// GetByStatus retrieves candidates in a status, best deals first.
func (s *CandidateStore) GetByStatus(ctx context.Context, status domain.CandidateStatus, limit int) ([]*domain.DealCandidate, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM deal_candidates
		WHERE status = $1
		ORDER BY net_margin DESC, confidence DESC, candidate_id ASC
	`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get candidates by status: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// GetBySource retrieves all candidates discovered from a supply source.
func (s *CandidateStore) GetBySource(ctx context.Context, source domain.SupplySource) ([]*domain.DealCandidate, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM deal_candidates
		WHERE source = $1
		ORDER BY discovered_at ASC, candidate_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(source))
	if err != nil {
		return nil, fmt.Errorf("get candidates by source: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// Update overwrites a candidate by ID. Returns ErrNotFound if not exists.
func (s *CandidateStore) Update(ctx context.Context, c *domain.DealCandidate) error {
	query := `
		UPDATE deal_candidates SET
			source = $2, sku = $3, kind = $4, title = $5, brand = $6, region = $7,
			cost = $8, estimated_resale = $9, estimated_fees = $10, net_margin = $11,
			confidence = $12, seller_score = $13, sell_through_days = $14, quantity = $15,
			status = $16, notes = $17, risk_score = $18,
			discovered_at = $19, processed_at = $20
		WHERE candidate_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		c.CandidateID, string(c.Source), c.SKU, string(c.Kind), c.Title, c.Brand, c.Region,
		c.Cost, c.EstimatedResale, c.EstimatedFees, c.NetMargin,
		c.Confidence, c.SellerScore, c.SellThroughDays, c.Quantity,
		string(c.Status), c.Notes, c.RiskScore,
		c.DiscoveredAt, c.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanCandidate scans a single row into a DealCandidate.
func scanCandidate(row pgx.Row) (*domain.DealCandidate, error) {
	var c domain.DealCandidate
	var source, kind, status string

	err := row.Scan(
		&c.CandidateID, &source, &c.SKU, &kind, &c.Title, &c.Brand, &c.Region,
		&c.Cost, &c.EstimatedResale, &c.EstimatedFees, &c.NetMargin, &c.Confidence,
		&c.SellerScore, &c.SellThroughDays, &c.Quantity,
		&status, &c.Notes, &c.RiskScore,
		&c.DiscoveredAt, &c.ProcessedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Source = domain.SupplySource(source)
	c.Kind = domain.InventoryKind(kind)
	c.Status = domain.CandidateStatus(status)
	return &c, nil
}

// scanCandidates scans multiple rows into a slice of DealCandidate.
func scanCandidates(rows pgx.Rows) ([]*domain.DealCandidate, error) {
	var candidates []*domain.DealCandidate

	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate row: %w", err)
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate rows: %w", err)
	}

	return candidates, nil
}
