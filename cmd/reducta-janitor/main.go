// Reducta Janitor — закрывает зависшие runs по расписанию.
//
// Janitor:
//   - Находит runs, застрявшие в QUEUED или PROCESSING
//   - Финализирует их как ERROR с пояснением
//   - Через advisory lock гарантирует единственного sweeper-а
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Reducta/internal/recovery"
	"github.com/shaiso/Reducta/internal/repo"
	"github.com/shaiso/Reducta/internal/telemetry"
)

const janitorLockKey int64 = 727272

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting reducta-janitor")

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

	runRepo := repo.NewRunRepo(pool)

	schedule := os.Getenv("JANITOR_SCHEDULE")
	if schedule == "" {
		schedule = recovery.DefaultSchedule
	}
	if err := recovery.ValidateSchedule(schedule); err != nil {
		logger.Error("invalid schedule", "schedule", schedule, "error", err)
		os.Exit(1)
	}

	janitor := recovery.New(recovery.Config{
		Store:         runRepo,
		Logger:        logger,
		QueuedAge:     envDuration("JANITOR_QUEUED_AGE", 0),
		ProcessingAge: envDuration("JANITOR_PROCESSING_AGE", 0),
	})

	// sweep loop: работает только лидер
	go func() {
		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", janitorLockKey)
			}
		}()

		// Ждём лидерство, затем запускаем цикл обхода
		tk := time.NewTicker(5 * time.Second)
		defer tk.Stop()
		for !hasLock {
			select {
			case <-tk.C:
				if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", janitorLockKey).Scan(&hasLock); err != nil {
					logger.Warn("advisory lock attempt failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}

		logger.Info("acquired sweep lock, this janitor is the leader")
		if err := janitor.Run(ctx, schedule, logger); err != nil && ctx.Err() == nil {
			logger.Error("janitor loop error", "error", err)
			cancel()
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8084"
	if v := os.Getenv("JANITOR_PORT"); v != "" {
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
	logger.Info("reducta-janitor stopped")
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
