package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Reducta/internal/domain"
)

// LocationRepo — репозиторий путей данных и результатов run.
type LocationRepo struct {
	pool *pgxpool.Pool
}

// NewLocationRepo создаёт новый LocationRepo.
func NewLocationRepo(pool *pgxpool.Pool) *LocationRepo {
	return &LocationRepo{pool: pool}
}

// CreateDataLocation записывает путь входного файла run.
func (r *LocationRepo) CreateDataLocation(ctx context.Context, loc *domain.DataLocation) error {
	query := `
		INSERT INTO data_locations (id, reduction_run_id, file_path)
		VALUES ($1, $2, $3)
	`
	_, err := r.pool.Exec(ctx, query, loc.ID, loc.ReductionRunID, loc.FilePath)
	if err != nil {
		return fmt.Errorf("insert data location: %w", asConflict(err))
	}
	return nil
}

// CreateReductionLocations записывает пути артефактов успешной редукции.
func (r *LocationRepo) CreateReductionLocations(ctx context.Context, locs []domain.ReductionLocation) error {
	for _, loc := range locs {
		query := `
			INSERT INTO reduction_locations (id, reduction_run_id, file_path)
			VALUES ($1, $2, $3)
		`
		if _, err := r.pool.Exec(ctx, query, loc.ID, loc.ReductionRunID, loc.FilePath); err != nil {
			return fmt.Errorf("insert reduction location: %w", asConflict(err))
		}
	}
	return nil
}

// ListReductionLocations возвращает артефакты run.
func (r *LocationRepo) ListReductionLocations(ctx context.Context, runID uuid.UUID) ([]domain.ReductionLocation, error) {
	query := `
		SELECT id, reduction_run_id, file_path
		FROM reduction_locations
		WHERE reduction_run_id = $1
		ORDER BY file_path ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list reduction locations: %w", err)
	}
	defer rows.Close()

	var locs []domain.ReductionLocation
	for rows.Next() {
		var loc domain.ReductionLocation
		if err := rows.Scan(&loc.ID, &loc.ReductionRunID, &loc.FilePath); err != nil {
			return nil, fmt.Errorf("scan reduction location: %w", err)
		}
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

// GetDataLocation возвращает путь входного файла run.
func (r *LocationRepo) GetDataLocation(ctx context.Context, runID uuid.UUID) (*domain.DataLocation, error) {
	query := `
		SELECT id, reduction_run_id, file_path
		FROM data_locations
		WHERE reduction_run_id = $1
		LIMIT 1
	`
	var loc domain.DataLocation
	err := r.pool.QueryRow(ctx, query, runID).Scan(&loc.ID, &loc.ReductionRunID, &loc.FilePath)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get data location: %w", err)
	}
	return &loc, nil
}
