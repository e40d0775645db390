package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Reducta/internal/domain"
)

// ExperimentRepo — репозиторий экспериментов (RB numbers).
type ExperimentRepo struct {
	pool *pgxpool.Pool
}

// NewExperimentRepo создаёт новый ExperimentRepo.
func NewExperimentRepo(pool *pgxpool.Pool) *ExperimentRepo {
	return &ExperimentRepo{pool: pool}
}

// GetOrCreate возвращает эксперимент по номеру RB, создавая запись
// при первом обращении. Атомарный upsert. RB = 0 — калибровочная
// корзина для run'ов с некорректным номером.
func (r *ExperimentRepo) GetOrCreate(ctx context.Context, referenceNumber int) (*domain.Experiment, error) {
	query := `
		INSERT INTO experiments (id, reference_number, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (reference_number) DO UPDATE SET reference_number = EXCLUDED.reference_number
		RETURNING id, reference_number, created_at
	`
	var exp domain.Experiment
	err := r.pool.QueryRow(ctx, query, uuid.New(), referenceNumber, time.Now().UTC()).Scan(
		&exp.ID,
		&exp.ReferenceNumber,
		&exp.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get or create experiment: %w", asConflict(err))
	}
	return &exp, nil
}

// GetByID возвращает эксперимент по ID.
func (r *ExperimentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Experiment, error) {
	query := `
		SELECT id, reference_number, created_at
		FROM experiments
		WHERE id = $1
	`
	var exp domain.Experiment
	err := r.pool.QueryRow(ctx, query, id).Scan(&exp.ID, &exp.ReferenceNumber, &exp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get experiment: %w", err)
	}
	return &exp, nil
}
