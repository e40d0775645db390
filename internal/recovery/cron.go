package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений расписания обхода.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// DefaultSchedule — обход каждые десять минут.
const DefaultSchedule = "*/10 * * * *"

// ValidateSchedule проверяет cron-выражение расписания.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", expr, err)
	}
	return nil
}

// Run выполняет Tick по cron-расписанию до отмены контекста.
// Первый обход — сразу при старте, чтобы подхватить runs,
// потерянные пока janitor был выключен.
func (j *Janitor) Run(ctx context.Context, scheduleExpr string, logger *slog.Logger) error {
	if scheduleExpr == "" {
		scheduleExpr = DefaultSchedule
	}
	schedule, err := cronParser.Parse(scheduleExpr)
	if err != nil {
		return fmt.Errorf("parse sweep schedule %q: %w", scheduleExpr, err)
	}

	if err := j.Tick(ctx); err != nil {
		logger.Error("recovery sweep failed", "error", err)
	}

	for {
		next := schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if err := j.Tick(ctx); err != nil {
				logger.Error("recovery sweep failed", "error", err)
			}
		}
	}
}
