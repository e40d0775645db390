package api

import (
	"log/slog"

	"github.com/shaiso/Reducta/internal/mq"
	"github.com/shaiso/Reducta/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	instrumentRepo *repo.InstrumentRepo
	experimentRepo *repo.ExperimentRepo
	runRepo        *repo.RunRepo
	locationRepo   *repo.LocationRepo
	variableRepo   *repo.VariableRepo
	publisher      *mq.Publisher
	logger         *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	InstrumentRepo *repo.InstrumentRepo
	ExperimentRepo *repo.ExperimentRepo
	RunRepo        *repo.RunRepo
	LocationRepo   *repo.LocationRepo
	VariableRepo   *repo.VariableRepo
	Publisher      *mq.Publisher
	Logger         *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		instrumentRepo: cfg.InstrumentRepo,
		experimentRepo: cfg.ExperimentRepo,
		runRepo:        cfg.RunRepo,
		locationRepo:   cfg.LocationRepo,
		variableRepo:   cfg.VariableRepo,
		publisher:      cfg.Publisher,
		logger:         cfg.Logger,
	}
}
