package scripts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ActivationStore — переключение активности инструмента.
// Реализуется repo.InstrumentRepo.
type ActivationStore interface {
	SetActive(ctx context.Context, name string, active bool) error
}

// Watcher следит за каталогом скриптов и переключает активность
// инструментов: инструмент активен, пока у него есть reduce.py.
type Watcher struct {
	provider *Provider
	store    ActivationStore
	logger   *slog.Logger
}

// NewWatcher создаёт Watcher.
func NewWatcher(provider *Provider, store ActivationStore, logger *slog.Logger) *Watcher {
	return &Watcher{provider: provider, store: store, logger: logger}
}

// Run выполняет начальную синхронизацию и следит за изменениями
// до отмены контекста.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.syncAll(ctx); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new fs watcher: %w", err)
	}
	defer fw.Close()

	// Каталог скриптов плоский: по подкаталогу на инструмент.
	// Следим и за корнем (новые инструменты), и за подкаталогами.
	if err := fw.Add(w.provider.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.provider.root, err)
	}
	entries, err := os.ReadDir(w.provider.root)
	if err != nil {
		return fmt.Errorf("read script root: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := fw.Add(filepath.Join(w.provider.root, e.Name())); err != nil {
				w.logger.Warn("failed to watch instrument dir", "dir", e.Name(), "error", err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return fmt.Errorf("fs watcher closed")
			}
			w.handleEvent(ctx, fw, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return fmt.Errorf("fs watcher closed")
			}
			w.logger.Warn("fs watcher error", "error", err)
		}
	}
}

// handleEvent реагирует на одно событие файловой системы.
func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	// Новый каталог инструмента — добавляем под наблюдение.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch new dir", "dir", event.Name, "error", err)
			}
		}
	}

	if filepath.Base(event.Name) != scriptFile {
		return
	}

	instrument := strings.ToUpper(filepath.Base(filepath.Dir(event.Name)))
	active := w.provider.HasScript(instrument)

	if err := w.store.SetActive(ctx, instrument, active); err != nil {
		w.logger.Warn("failed to toggle instrument",
			"instrument", instrument,
			"active", active,
			"error", err,
		)
		return
	}
	w.logger.Info("instrument script presence changed",
		"instrument", instrument,
		"active", active,
	)
}

// syncAll приводит активность всех инструментов в каталоге
// в соответствие с наличием скриптов.
func (w *Watcher) syncAll(ctx context.Context) error {
	entries, err := os.ReadDir(w.provider.root)
	if err != nil {
		return fmt.Errorf("read script root: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		instrument := strings.ToUpper(e.Name())
		active := w.provider.HasScript(instrument)
		if err := w.store.SetActive(ctx, instrument, active); err != nil {
			w.logger.Warn("failed to sync instrument",
				"instrument", instrument,
				"error", err,
			)
		}
	}
	return nil
}
