// Reducta Orchestrator — ведёт жизненный цикл reduction runs.
//
// Orchestrator:
//   - Получает data_ready сообщения из RabbitMQ
//   - Создаёт версионированные runs и снимки переменных
//   - Запускает внешний процесс редукции
//   - Финализирует run и публикует событие исхода
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Reducta/internal/mq"
	"github.com/shaiso/Reducta/internal/orchestrator"
	"github.com/shaiso/Reducta/internal/repo"
	"github.com/shaiso/Reducta/internal/runner"
	"github.com/shaiso/Reducta/internal/scripts"
	"github.com/shaiso/Reducta/internal/telemetry"
	"github.com/shaiso/Reducta/internal/variables"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting reducta-orchestrator")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	instrumentRepo := repo.NewInstrumentRepo(pool)
	experimentRepo := repo.NewExperimentRepo(pool)
	runRepo := repo.NewRunRepo(pool)
	locationRepo := repo.NewLocationRepo(pool)
	variableRepo := repo.NewVariableRepo(pool)

	// RabbitMQ — без брокера оркестратору нечего делать
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	// Создаём топологию
	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	logger.Debug("topology ready", "layout", mq.TopologyInfo())

	publisher := mq.NewPublisher(mqConn, logger)

	// Каталог скриптов редукции
	scriptsRoot := os.Getenv("SCRIPTS_ROOT")
	if scriptsRoot == "" {
		scriptsRoot = "/autoreduce/scripts"
	}
	provider := scripts.NewProvider(scriptsRoot)

	// Watcher синхронизирует флаг is_active с наличием reduce.py
	watcher := scripts.NewWatcher(provider, instrumentRepo, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Warn("script watcher stopped", "error", err)
		}
	}()

	// Сервис переменных: defaults скрипта + сохранённые версии
	variableService := variables.NewService(variableRepo, provider, logger)

	// Внешний процесс редукции
	launcher := runner.NewProcessLauncher(runner.Config{
		Command: envOr("REDUCTION_CMD", "python3"),
		Args:    splitArgs(os.Getenv("REDUCTION_ARGS")),
		WorkDir: os.Getenv("REDUCTION_WORKDIR"),
		Timeout: envDuration("REDUCTION_TIMEOUT", 6*time.Hour),
	}, logger)

	// Создаём orchestrator
	orch := orchestrator.New(orchestrator.Config{
		Instruments: instrumentRepo,
		Experiments: experimentRepo,
		Runs:        runRepo,
		Locations:   locationRepo,
		Scripts:     provider,
		Variables:   variableService,
		Launcher:    launcher,
		Publisher:   publisher,
		Conn:        mqConn,
		Prefetch:    envInt("ORCH_PREFETCH", 1),
		Logger:      logger,
	})

	// Запускаем orchestrator
	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if orch.IsStopped() || !mqConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("ORCH_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем orchestrator
	orch.Stop()
	logger.Info("reducta-orchestrator stopped")
}

// --- Helpers ---

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitArgs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
