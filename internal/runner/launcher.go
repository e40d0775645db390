package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Reducta/internal/mq"
)

// Config — конфигурация запуска внешнего процесса редукции.
type Config struct {
	// Command — исполняемый файл процесса редукции.
	Command string

	// Args — аргументы перед путями input/output.
	Args []string

	// WorkDir — каталог для временных файлов обмена.
	// Пустой — системный temp.
	WorkDir string

	// Timeout — предел времени одной редукции.
	Timeout time.Duration
}

// ProcessLauncher запускает редукцию как внешний процесс
// и читает результат из выходного файла.
type ProcessLauncher struct {
	cfg    Config
	logger *slog.Logger
}

// NewProcessLauncher создаёт ProcessLauncher.
func NewProcessLauncher(cfg Config, logger *slog.Logger) *ProcessLauncher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 6 * time.Hour
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &ProcessLauncher{cfg: cfg, logger: logger}
}

// Launch записывает сообщение во входной файл, запускает процесс
// и возвращает дополненное сообщение из выходного файла.
//
// Ошибка запуска или разбора выхода — ошибка run (не инфраструктуры):
// вызывающий финализирует run как ERROR, не возвращая сообщение брокеру.
func (l *ProcessLauncher) Launch(ctx context.Context, msg *mq.ReductionMessage) (*mq.ReductionMessage, error) {
	dir, err := os.MkdirTemp(l.cfg.WorkDir, "reducta-run-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inputPath := filepath.Join(dir, "input.json")
	outputPath := filepath.Join(dir, "output.json")

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}
	if err := os.WriteFile(inputPath, body, 0o644); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	args := append(append([]string{}, l.cfg.Args...), inputPath, outputPath)
	cmd := exec.CommandContext(ctx, l.cfg.Command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	correlation := uuid.New().String()
	l.logger.Info("launching reduction process",
		"command", l.cfg.Command,
		"instrument", msg.Instrument,
		"run_number", msg.RunNumber.Int(),
		"correlation_id", correlation,
	)

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("reduction process: %w", err)
	}

	out, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	result, err := mq.ParseReductionMessage(out)
	if err != nil {
		return nil, fmt.Errorf("parse output: %w", err)
	}

	l.logger.Info("reduction process finished",
		"instrument", msg.Instrument,
		"run_number", msg.RunNumber.Int(),
		"duration", time.Since(start).Round(time.Second).String(),
		"correlation_id", correlation,
	)
	return result, nil
}
