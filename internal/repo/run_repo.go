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

// RunRepo — репозиторий для работы с reduction runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт новый run. Уникальность
// (experiment_id, run_number, run_version) гарантирует БД:
// гонка двух создателей одной версии даёт ErrConflict.
func (r *RunRepo) Create(ctx context.Context, run *domain.ReductionRun) error {
	query := `
		INSERT INTO reduction_runs (
			id, instrument_id, experiment_id, run_number, run_version,
			status, script_text, arguments, description, message,
			reduction_log, admin_log, started, finished, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.InstrumentID,
		run.ExperimentID,
		run.RunNumber,
		run.RunVersion,
		run.Status,
		run.ScriptText,
		nullString(run.Arguments),
		nullString(run.Description),
		nullString(run.Message),
		nullString(run.ReductionLog),
		nullString(run.AdminLog),
		run.Started,
		run.Finished,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", asConflict(err))
	}
	return nil
}

// NextRunVersion возвращает следующую версию для пары
// (experiment, run_number): MAX(run_version)+1, для первого run — 0.
func (r *RunRepo) NextRunVersion(ctx context.Context, experimentID uuid.UUID, runNumber int) (int, error) {
	query := `
		SELECT COALESCE(MAX(run_version) + 1, 0)
		FROM reduction_runs
		WHERE experiment_id = $1 AND run_number = $2
	`
	var version int
	if err := r.pool.QueryRow(ctx, query, experimentID, runNumber).Scan(&version); err != nil {
		return 0, fmt.Errorf("next run version: %w", err)
	}
	return version, nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReductionRun, error) {
	query := selectRun + ` WHERE id = $1`
	return r.scanRun(r.pool.QueryRow(ctx, query, id))
}

// Latest возвращает run с наибольшей версией для пары
// (instrument, run_number). ErrNotFound, если run ещё не редуцировался.
func (r *RunRepo) Latest(ctx context.Context, instrumentID uuid.UUID, runNumber int) (*domain.ReductionRun, error) {
	query := selectRun + `
		WHERE instrument_id = $1 AND run_number = $2
		ORDER BY run_version DESC
		LIMIT 1
	`
	return r.scanRun(r.pool.QueryRow(ctx, query, instrumentID, runNumber))
}

// List возвращает runs с фильтрацией.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.ReductionRun, error) {
	query := selectRun + `
		WHERE ($1::uuid IS NULL OR instrument_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::int IS NULL OR run_number = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.InstrumentID),
		nullString(string(filter.Status)),
		filter.RunNumber,
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return r.collectRuns(rows)
}

// Update обновляет изменяемые поля run.
func (r *RunRepo) Update(ctx context.Context, run *domain.ReductionRun) error {
	query := `
		UPDATE reduction_runs
		SET status = $2, arguments = $3, message = $4, reduction_log = $5,
		    admin_log = $6, started = $7, finished = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		nullString(run.Arguments),
		nullString(run.Message),
		nullString(run.ReductionLog),
		nullString(run.AdminLog),
		run.Started,
		run.Finished,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOrphaned возвращает runs, застрявшие в QUEUED дольше age.
// Такие runs остались без владельца после падения оркестратора.
func (r *RunRepo) ListOrphaned(ctx context.Context, age time.Duration, limit int) ([]domain.ReductionRun, error) {
	return r.listStale(ctx, domain.RunStatusQueued, age, limit)
}

// ListStuckProcessing возвращает runs в PROCESSING дольше age.
func (r *RunRepo) ListStuckProcessing(ctx context.Context, age time.Duration, limit int) ([]domain.ReductionRun, error) {
	return r.listStale(ctx, domain.RunStatusProcessing, age, limit)
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	InstrumentID *uuid.UUID
	Status       domain.RunStatus
	RunNumber    *int
	Limit        int
	Offset       int
}

const selectRun = `
	SELECT id, instrument_id, experiment_id, run_number, run_version,
	       status, script_text, arguments, description, message,
	       reduction_log, admin_log, started, finished, created_at
	FROM reduction_runs
`

func (r *RunRepo) listStale(ctx context.Context, status domain.RunStatus, age time.Duration, limit int) ([]domain.ReductionRun, error) {
	query := selectRun + `
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`
	cutoff := time.Now().UTC().Add(-age)
	rows, err := r.pool.Query(ctx, query, status, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale runs: %w", err)
	}
	defer rows.Close()
	return r.collectRuns(rows)
}

func (r *RunRepo) collectRuns(rows pgx.Rows) ([]domain.ReductionRun, error) {
	var runs []domain.ReductionRun
	for rows.Next() {
		run, err := scanRunFields(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanRun сканирует одну строку в ReductionRun.
func (r *RunRepo) scanRun(row pgx.Row) (*domain.ReductionRun, error) {
	run, err := scanRunFields(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

func scanRunFields(row pgx.Row) (*domain.ReductionRun, error) {
	var run domain.ReductionRun
	var arguments, description, message, reductionLog, adminLog *string

	err := row.Scan(
		&run.ID,
		&run.InstrumentID,
		&run.ExperimentID,
		&run.RunNumber,
		&run.RunVersion,
		&run.Status,
		&run.ScriptText,
		&arguments,
		&description,
		&message,
		&reductionLog,
		&adminLog,
		&run.Started,
		&run.Finished,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Arguments = deref(arguments)
	run.Description = deref(description)
	run.Message = deref(message)
	run.ReductionLog = deref(reductionLog)
	run.AdminLog = deref(adminLog)
	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
