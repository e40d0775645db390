package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Reducta/internal/domain"
	"github.com/shaiso/Reducta/internal/variables"
)

// VariableRepo — репозиторий переменных конфигурации.
// Реализует variables.Store.
type VariableRepo struct {
	pool *pgxpool.Pool
}

// NewVariableRepo создаёт новый VariableRepo.
func NewVariableRepo(pool *pgxpool.Pool) *VariableRepo {
	return &VariableRepo{pool: pool}
}

// ListPossible возвращает строки, применимые к run: привязанные к его
// эксперименту ЛИБО с start_run не больше номера run.
func (r *VariableRepo) ListPossible(ctx context.Context, instrumentID uuid.UUID, experimentReference, runNumber int) ([]domain.InstrumentVariable, error) {
	query := selectVariable + `
		WHERE instrument_id = $1
		  AND (experiment_reference = $2 OR start_run <= $3)
		ORDER BY name ASC, created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, instrumentID, experimentReference, runNumber)
	if err != nil {
		return nil, fmt.Errorf("list possible variables: %w", err)
	}
	defer rows.Close()
	return collectVariables(rows)
}

// ListByInstrument возвращает все строки переменных инструмента.
func (r *VariableRepo) ListByInstrument(ctx context.Context, instrumentID uuid.UUID) ([]domain.InstrumentVariable, error) {
	query := selectVariable + `
		WHERE instrument_id = $1
		ORDER BY name ASC, created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	defer rows.Close()
	return collectVariables(rows)
}

// Apply применяет план разрешения и фиксирует снимок RunVariable
// для run — всё в одной транзакции. Нарушение целостности
// (параллельное создание той же строки) — ErrConflict; вызывающий
// не ретраит, сообщение уходит брокеру на redelivery.
func (r *VariableRepo) Apply(ctx context.Context, runID uuid.UUID, plan []variables.Planned) ([]domain.RunVariable, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range plan {
		switch p.Op {
		case variables.OpCreate:
			if err := insertVariable(ctx, tx, &p.Variable); err != nil {
				return nil, err
			}
		case variables.OpUpdate:
			if err := updateVariable(ctx, tx, &p.Variable); err != nil {
				return nil, err
			}
		}
	}

	snapshot := make([]domain.RunVariable, 0, len(plan))
	for _, p := range plan {
		rv := domain.SnapshotOf(runID, &p.Variable)
		query := `
			INSERT INTO run_variables (
				id, reduction_run_id, variable_id,
				name, value, type, help_text, is_advanced
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err := tx.Exec(ctx, query,
			rv.ID, rv.ReductionRunID, rv.VariableID,
			rv.Name, rv.Value, rv.Type, nullString(rv.HelpText), rv.IsAdvanced,
		)
		if err != nil {
			return nil, fmt.Errorf("insert run variable: %w", asConflict(err))
		}
		snapshot = append(snapshot, rv)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", asConflict(err))
	}
	return snapshot, nil
}

// ListForRun возвращает снимок переменных run.
func (r *VariableRepo) ListForRun(ctx context.Context, runID uuid.UUID) ([]domain.RunVariable, error) {
	query := `
		SELECT id, reduction_run_id, variable_id,
		       name, value, type, help_text, is_advanced
		FROM run_variables
		WHERE reduction_run_id = $1
		ORDER BY name ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list run variables: %w", err)
	}
	defer rows.Close()

	var vars []domain.RunVariable
	for rows.Next() {
		var v domain.RunVariable
		var helpText *string
		err := rows.Scan(&v.ID, &v.ReductionRunID, &v.VariableID,
			&v.Name, &v.Value, &v.Type, &helpText, &v.IsAdvanced)
		if err != nil {
			return nil, fmt.Errorf("scan run variable: %w", err)
		}
		v.HelpText = deref(helpText)
		vars = append(vars, v)
	}
	return vars, rows.Err()
}

// SetTracksScript переключает флаг tracks_script строки.
func (r *VariableRepo) SetTracksScript(ctx context.Context, id uuid.UUID, tracks bool) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE instrument_variables SET tracks_script = $2 WHERE id = $1`,
		id, tracks,
	)
	if err != nil {
		return fmt.Errorf("set tracks_script: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

const selectVariable = `
	SELECT id, instrument_id, name, value, type, help_text,
	       is_advanced, tracks_script, experiment_reference, start_run, created_at
	FROM instrument_variables
`

func insertVariable(ctx context.Context, tx pgx.Tx, v *domain.InstrumentVariable) error {
	query := `
		INSERT INTO instrument_variables (
			id, instrument_id, name, value, type, help_text,
			is_advanced, tracks_script, experiment_reference, start_run, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := tx.Exec(ctx, query,
		v.ID, v.InstrumentID, v.Name, v.Value, v.Type, nullString(v.HelpText),
		v.IsAdvanced, v.TracksScript, v.ExperimentReference, v.StartRun, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert variable: %w", asConflict(err))
	}
	return nil
}

func updateVariable(ctx context.Context, tx pgx.Tx, v *domain.InstrumentVariable) error {
	query := `
		UPDATE instrument_variables
		SET value = $2, type = $3, help_text = $4, tracks_script = $5
		WHERE id = $1
	`
	result, err := tx.Exec(ctx, query,
		v.ID, v.Value, v.Type, nullString(v.HelpText), v.TracksScript,
	)
	if err != nil {
		return fmt.Errorf("update variable: %w", asConflict(err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectVariables(rows pgx.Rows) ([]domain.InstrumentVariable, error) {
	var vars []domain.InstrumentVariable
	for rows.Next() {
		var v domain.InstrumentVariable
		var helpText *string
		err := rows.Scan(
			&v.ID, &v.InstrumentID, &v.Name, &v.Value, &v.Type, &helpText,
			&v.IsAdvanced, &v.TracksScript, &v.ExperimentReference, &v.StartRun, &v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan variable: %w", err)
		}
		v.HelpText = deref(helpText)
		vars = append(vars, v)
	}
	return vars, rows.Err()
}
