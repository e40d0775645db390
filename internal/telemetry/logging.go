package telemetry

import (
	"log/slog"
	"os"
)

// LogLevel читает уровень логирования из LOG_LEVEL.
// Возможные значения: DEBUG, INFO, WARN, ERROR (по умолчанию INFO).
func LogLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger инициализирует глобальный логгер.
//
// Формат определяется переменной LOG_FORMAT:
//   - "json" (по умолчанию) — для production
//   - "text" — человекочитаемый, для разработки
func SetupLogger() *slog.Logger {
	level := LogLevel()
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// WithRun возвращает логгер с полями конкретного run.
// Записи жизненного цикла несут эти три поля, по ним
// склеивается история редукции в агрегаторе логов.
func WithRun(logger *slog.Logger, instrument string, runNumber, runVersion int) *slog.Logger {
	return logger.With(
		"instrument", instrument,
		"run_number", runNumber,
		"run_version", runVersion,
	)
}

// WithInstrument возвращает логгер с добавленным instrument.
func WithInstrument(logger *slog.Logger, instrument string) *slog.Logger {
	return logger.With("instrument", instrument)
}
