package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Reducta/internal/domain"
)

// InstrumentRepo — репозиторий инструментов.
type InstrumentRepo struct {
	pool *pgxpool.Pool
}

// NewInstrumentRepo создаёт новый InstrumentRepo.
func NewInstrumentRepo(pool *pgxpool.Pool) *InstrumentRepo {
	return &InstrumentRepo{pool: pool}
}

// GetOrCreate возвращает инструмент по имени, создавая запись при
// первом обращении. Атомарный upsert: параллельные вызовы с одним
// именем получают одну и ту же строку. Имя нормализуется к верхнему
// регистру. Новый инструмент активен и не на паузе.
func (r *InstrumentRepo) GetOrCreate(ctx context.Context, name string) (*domain.Instrument, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("instrument name is empty")
	}

	query := `
		INSERT INTO instruments (id, name, is_active, is_paused, created_at)
		VALUES ($1, $2, TRUE, FALSE, $3)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, is_active, is_paused, created_at
	`
	var inst domain.Instrument
	err := r.pool.QueryRow(ctx, query, uuid.New(), name, time.Now().UTC()).Scan(
		&inst.ID,
		&inst.Name,
		&inst.IsActive,
		&inst.IsPaused,
		&inst.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get or create instrument: %w", asConflict(err))
	}
	return &inst, nil
}

// GetByName возвращает инструмент по имени.
func (r *InstrumentRepo) GetByName(ctx context.Context, name string) (*domain.Instrument, error) {
	query := `
		SELECT id, name, is_active, is_paused, created_at
		FROM instruments
		WHERE name = $1
	`
	var inst domain.Instrument
	err := r.pool.QueryRow(ctx, query, strings.ToUpper(strings.TrimSpace(name))).Scan(
		&inst.ID,
		&inst.Name,
		&inst.IsActive,
		&inst.IsPaused,
		&inst.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get instrument: %w", err)
	}
	return &inst, nil
}

// List возвращает все инструменты по имени.
func (r *InstrumentRepo) List(ctx context.Context) ([]domain.Instrument, error) {
	query := `
		SELECT id, name, is_active, is_paused, created_at
		FROM instruments
		ORDER BY name ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	var instruments []domain.Instrument
	for rows.Next() {
		var inst domain.Instrument
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.IsActive, &inst.IsPaused, &inst.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}
	return instruments, rows.Err()
}

// SetActive выставляет флаг is_active.
func (r *InstrumentRepo) SetActive(ctx context.Context, name string, active bool) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE instruments SET is_active = $2 WHERE name = $1`,
		strings.ToUpper(strings.TrimSpace(name)), active,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPaused выставляет флаг is_paused.
func (r *InstrumentRepo) SetPaused(ctx context.Context, name string, paused bool) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE instruments SET is_paused = $2 WHERE name = $1`,
		strings.ToUpper(strings.TrimSpace(name)), paused,
	)
	if err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
