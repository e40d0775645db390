package scripts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shaiso/Reducta/internal/variables"
)

// Ошибки провайдера скриптов.
var (
	// ErrNoScript — у инструмента нет reduce.py.
	ErrNoScript = errors.New("no reduction script")

	// ErrNoDefaults — у инструмента нет reduce_vars.json.
	ErrNoDefaults = errors.New("no reduction defaults")

	// ErrBadDefaults — reduce_vars.json не разобрался как JSON.
	ErrBadDefaults = errors.New("malformed reduction defaults")
)

const (
	scriptFile   = "reduce.py"
	defaultsFile = "reduce_vars.json"
)

// Provider читает скрипты редукции из каталога скриптов.
// Реализует variables.DefaultsLoader.
type Provider struct {
	root string
}

// NewProvider создаёт Provider над каталогом root.
func NewProvider(root string) *Provider {
	return &Provider{root: root}
}

// ScriptPath возвращает путь к reduce.py инструмента.
func (p *Provider) ScriptPath(instrument string) string {
	return filepath.Join(p.root, strings.ToUpper(instrument), scriptFile)
}

// Text возвращает текст скрипта редукции инструмента.
// Отсутствие файла — ErrNoScript.
func (p *Provider) Text(instrument string) (string, error) {
	data, err := os.ReadFile(p.ScriptPath(instrument))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNoScript, instrument)
	}
	if err != nil {
		return "", fmt.Errorf("read script for %s: %w", instrument, err)
	}
	return string(data), nil
}

// HasScript проверяет наличие reduce.py у инструмента.
func (p *Provider) HasScript(instrument string) bool {
	_, err := os.Stat(p.ScriptPath(instrument))
	return err == nil
}

// LoadDefaults читает reduce_vars.json инструмента.
// Числа остаются json.Number, чтобы разрешение переменных
// различало integer и float. Отсутствие файла — ErrNoDefaults.
func (p *Provider) LoadDefaults(instrument string) (*variables.ScriptDefaults, error) {
	path := filepath.Join(p.root, strings.ToUpper(instrument), defaultsFile)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoDefaults, instrument)
	}
	if err != nil {
		return nil, fmt.Errorf("read defaults for %s: %w", instrument, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var defaults variables.ScriptDefaults
	if err := dec.Decode(&defaults); err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrBadDefaults, instrument, err)
	}

	if defaults.Standard == nil {
		defaults.Standard = map[string]any{}
	}
	if defaults.Advanced == nil {
		defaults.Advanced = map[string]any{}
	}
	return &defaults, nil
}
