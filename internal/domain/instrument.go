package domain

import (
	"time"

	"github.com/google/uuid"
)

// Instrument — инструмент, с которого поступают данные.
//
// Создаётся лениво при первом событии с неизвестным именем.
// Имя уникально без учёта регистра.
type Instrument struct {
	// ID — уникальный идентификатор инструмента.
	ID uuid.UUID `json:"id"`

	// Name — имя инструмента (например, "WISH", "MARI").
	Name string `json:"name"`

	// IsActive — есть ли у инструмента скрипт редукции на диске.
	// Переключается, когда наличие скрипта расходится с флагом.
	IsActive bool `json:"is_active"`

	// IsPaused — флаг паузы. Runs для инструмента на паузе
	// создаются со статусом SKIPPED и не запускаются.
	IsPaused bool `json:"is_paused"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// Experiment — эксперимент (RB number), группирующий runs.
//
// Создаётся лениво по семантике get-or-create.
type Experiment struct {
	// ID — уникальный идентификатор эксперимента.
	ID uuid.UUID `json:"id"`

	// ReferenceNumber — RB number эксперимента.
	// 0 — плейсхолдер для калибровочных runs с невалидным номером.
	ReferenceNumber int `json:"reference_number"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}
