package mq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// IntLike — целое, терпимое к формату на проводе.
//
// Внешние продюсеры шлют номера то числом, то строкой, иногда
// мусором ("12a"). Неразборчивое значение становится нулём —
// дальше его ловит валидация, а не разбор JSON.
type IntLike int

// UnmarshalJSON принимает число, строку с числом или мусор (→ 0).
func (n *IntLike) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		*n = 0
		return nil
	}
	*n = IntLike(v)
	return nil
}

// MarshalJSON всегда пишет число.
func (n IntLike) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(n))), nil
}

// Int возвращает значение как int.
func (n IntLike) Int() int { return int(n) }

// ReductionMessage — плоский JSON документ, который несут все
// очереди: вход data_ready от стримеров данных и исходящие события
// жизненного цикла от оркестратора.
type ReductionMessage struct {
	// RunNumber — номер run с инструмента.
	RunNumber IntLike `json:"run_number"`

	// Instrument — имя инструмента.
	Instrument string `json:"instrument"`

	// RBNumber — номер эксперимента (RB number).
	RBNumber IntLike `json:"rb_number"`

	// RunVersion — версия редукции; заполняется оркестратором.
	RunVersion IntLike `json:"run_version"`

	// Data — путь к входному файлу данных.
	Data string `json:"data"`

	// Facility — источник данных.
	Facility string `json:"facility,omitempty"`

	// StartedBy — кто инициировал: отрицательное — автоматика,
	// иначе id пользователя (повторная отправка).
	StartedBy int `json:"started_by,omitempty"`

	// Overwrite — перезаписывать ли существующие артефакты.
	Overwrite bool `json:"overwrite,omitempty"`

	// Description — описание run.
	Description string `json:"description,omitempty"`

	// ReductionScript — текст скрипта; заполняется оркестратором.
	ReductionScript string `json:"reduction_script,omitempty"`

	// ReductionArguments — разрешённые аргументы
	// {"standard_vars": {...}, "advanced_vars": {...}}.
	ReductionArguments map[string]map[string]any `json:"reduction_arguments,omitempty"`

	// ReductionData — пути артефактов, заполняет внешний процесс.
	ReductionData []string `json:"reduction_data,omitempty"`

	// Message — причина skip/error от внешнего процесса.
	Message string `json:"message,omitempty"`

	// ReductionLog — лог редукции от внешнего процесса.
	ReductionLog string `json:"reduction_log,omitempty"`

	// AdminLog — служебный лог от внешнего процесса.
	AdminLog string `json:"admin_log,omitempty"`
}

// ParseReductionMessage разбирает входное сообщение.
// Числа в reduction_arguments остаются json.Number, чтобы разрешение
// переменных различало integer и float.
func ParseReductionMessage(body []byte) (*ReductionMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var msg ReductionMessage
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("parse reduction message: %w", err)
	}
	return &msg, nil
}

// Validate проверяет минимальный контракт входного сообщения.
// Некорректный RB number валидацию НЕ проваливает — такой run
// уходит в калибровочную корзину (RB = 0).
func (m *ReductionMessage) Validate() error {
	if m.Instrument == "" {
		return fmt.Errorf("instrument is required")
	}
	if m.RunNumber <= 0 {
		return fmt.Errorf("run_number must be positive, got %d", m.RunNumber)
	}
	if m.Data == "" {
		return fmt.Errorf("data path is required")
	}
	return nil
}

// ValidRBNumber проверяет номер эксперимента: положительное
// целое из семи цифр. Всё остальное — калибровка (RB = 0).
func ValidRBNumber(n int) bool {
	return n >= 1000000 && n <= 9999999
}
