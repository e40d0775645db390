package variables

import (
	"sort"

	"github.com/shaiso/Reducta/internal/domain"
)

// Ключи словарей аргументов в сообщениях и в variable_help.
const (
	KeyStandard = "standard_vars"
	KeyAdvanced = "advanced_vars"
)

// ScriptDefaults — объявленные скриптом редукции значения по
// умолчанию и справка (содержимое reduce_vars.json).
type ScriptDefaults struct {
	Standard map[string]any               `json:"standard_vars"`
	Advanced map[string]any               `json:"advanced_vars"`
	Help     map[string]map[string]string `json:"variable_help"`
}

// Arguments — слитый набор аргументов редукции:
// значения по умолчанию из скрипта плюс переопределения.
type Arguments struct {
	Standard map[string]Value
	Advanced map[string]Value
	Help     map[string]map[string]string
}

// Merge сливает значения по умолчанию с переопределениями.
//
// Переопределение приводится к типу, установленному скриптом для
// этого имени; переопределение для неизвестного имени молча
// отбрасывается — набор имён определяет скрипт, не вызывающий.
func Merge(defaults *ScriptDefaults, overrides map[string]map[string]any) Arguments {
	args := Arguments{
		Standard: make(map[string]Value, len(defaults.Standard)),
		Advanced: make(map[string]Value, len(defaults.Advanced)),
		Help:     defaults.Help,
	}

	for name, raw := range defaults.Standard {
		args.Standard[name] = Infer(raw)
	}
	for name, raw := range defaults.Advanced {
		args.Advanced[name] = Infer(raw)
	}

	applyOverrides(args.Standard, overrides[KeyStandard])
	applyOverrides(args.Advanced, overrides[KeyAdvanced])

	return args
}

func applyOverrides(vars map[string]Value, overrides map[string]any) {
	for name, raw := range overrides {
		established, ok := vars[name]
		if !ok {
			continue
		}
		vars[name] = Coerce(raw, established.Type)
	}
}

// HelpFor возвращает санитизированную справку для переменной.
func (a Arguments) HelpFor(name string, advanced bool) string {
	key := KeyStandard
	if advanced {
		key = KeyAdvanced
	}
	if section, ok := a.Help[key]; ok {
		if help, ok := section[name]; ok {
			return SanitizeHelp(help)
		}
	}
	return ""
}

// names возвращает имена словаря в детерминированном порядке.
func names(vars map[string]Value) []string {
	out := make([]string, 0, len(vars))
	for name := range vars {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ArgumentsPayload строит словарь аргументов для исходящего
// сообщения из итоговых строк переменных.
func ArgumentsPayload(vars []domain.InstrumentVariable) map[string]map[string]any {
	payload := map[string]map[string]any{
		KeyStandard: {},
		KeyAdvanced: {},
	}
	for i := range vars {
		v := &vars[i]
		key := KeyStandard
		if v.IsAdvanced {
			key = KeyAdvanced
		}
		payload[key][v.Name] = ParseValue(v.Value, v.Type).Native()
	}
	return payload
}
