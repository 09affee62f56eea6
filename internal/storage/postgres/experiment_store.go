package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
)

// ExperimentStore implements storage.ExperimentStore using PostgreSQL.
type ExperimentStore struct {
	pool *Pool
}

// NewExperimentStore creates a new ExperimentStore.
func NewExperimentStore(pool *Pool) *ExperimentStore {
	return &ExperimentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExperimentStore = (*ExperimentStore)(nil)

const experimentColumns = `
	experiment_id, type, name, variant_a, variant_b,
	samples_a, samples_b, mean_a, mean_b, stddev_a, stddev_b,
	status, winner, lift, p_value, reasoning,
	started_at, completed_at, created_at
`

// Insert adds a new experiment. Returns ErrDuplicateKey if experiment_id exists.
func (s *ExperimentStore) Insert(ctx context.Context, e *domain.Experiment) error {
	query := `
		INSERT INTO experiments (
			experiment_id, type, name, variant_a, variant_b,
			samples_a, samples_b, mean_a, mean_b, stddev_a, stddev_b,
			status, winner, lift, p_value, reasoning,
			started_at, completed_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19
		)
	`

	createdAt := e.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	_, err := s.pool.Exec(ctx, query,
		e.ExperimentID, string(e.Type), e.Name, e.VariantA, e.VariantB,
		e.SamplesA, e.SamplesB, e.MeanA, e.MeanB, e.StdDevA, e.StdDevB,
		string(e.Status), string(e.Winner), e.Lift, e.PValue, e.Reasoning,
		e.StartedAt, e.CompletedAt, createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert experiment: %w", err)
	}
	return nil
}

// GetByID retrieves an experiment by its ID. Returns ErrNotFound if not exists.
func (s *ExperimentStore) GetByID(ctx context.Context, experimentID string) (*domain.Experiment, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments WHERE experiment_id = $1`

	row := s.pool.QueryRow(ctx, query, experimentID)
	e, err := scanExperiment(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get experiment by id: %w", err)
	}
	return e, nil
}

// GetByStatus retrieves all experiments in a status, oldest first.
func (s *ExperimentStore) GetByStatus(ctx context.Context, status domain.ExperimentStatus) ([]*domain.Experiment, error) {
	query := `
		SELECT ` + experimentColumns + `
		FROM experiments
		WHERE status = $1
		ORDER BY started_at ASC, experiment_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("get experiments by status: %w", err)
	}
	defer rows.Close()

	return scanExperiments(rows)
}

// GetAll retrieves every experiment, oldest first.
func (s *ExperimentStore) GetAll(ctx context.Context) ([]*domain.Experiment, error) {
	query := `
		SELECT ` + experimentColumns + `
		FROM experiments
		ORDER BY started_at ASC, experiment_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all experiments: %w", err)
	}
	defer rows.Close()

	return scanExperiments(rows)
}

// Update overwrites an experiment by ID. Returns ErrNotFound if not exists.
func (s *ExperimentStore) Update(ctx context.Context, e *domain.Experiment) error {
	query := `
		UPDATE experiments SET
			type = $2, name = $3, variant_a = $4, variant_b = $5,
			samples_a = $6, samples_b = $7, mean_a = $8, mean_b = $9,
			stddev_a = $10, stddev_b = $11,
			status = $12, winner = $13, lift = $14, p_value = $15, reasoning = $16,
			started_at = $17, completed_at = $18
		WHERE experiment_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		e.ExperimentID, string(e.Type), e.Name, e.VariantA, e.VariantB,
		e.SamplesA, e.SamplesB, e.MeanA, e.MeanB,
		e.StdDevA, e.StdDevB,
		string(e.Status), string(e.Winner), e.Lift, e.PValue, e.Reasoning,
		e.StartedAt, e.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update experiment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanExperiment(row pgx.Row) (*domain.Experiment, error) {
	var e domain.Experiment
	var typ, status, winner string

	err := row.Scan(
		&e.ExperimentID, &typ, &e.Name, &e.VariantA, &e.VariantB,
		&e.SamplesA, &e.SamplesB, &e.MeanA, &e.MeanB, &e.StdDevA, &e.StdDevB,
		&status, &winner, &e.Lift, &e.PValue, &e.Reasoning,
		&e.StartedAt, &e.CompletedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Type = domain.ExperimentType(typ)
	e.Status = domain.ExperimentStatus(status)
	e.Winner = domain.ExperimentWinner(winner)
	return &e, nil
}

func scanExperiments(rows pgx.Rows) ([]*domain.Experiment, error) {
	var experiments []*domain.Experiment

	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan experiment row: %w", err)
		}
		experiments = append(experiments, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiment rows: %w", err)
	}

	return experiments, nil
}
