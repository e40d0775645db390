package variables

import (
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/shaiso/Reducta/internal/domain"
)

// Value — значение переменной с явным тегом типа.
//
// Заменяет неявный вывод типа из литералов: значение всегда
// сериализуется в текст, тип восстанавливается по тегу, а не по
// форме значения.
type Value struct {
	Type domain.VarType

	text    string
	integer int64
	float   float64
	boolean bool
	list    []string
}

// Конструкторы по типам.

func Text(s string) Value      { return Value{Type: domain.VarTypeText, text: s} }
func Integer(i int64) Value    { return Value{Type: domain.VarTypeInteger, integer: i} }
func Float(f float64) Value    { return Value{Type: domain.VarTypeFloat, float: f} }
func Boolean(b bool) Value     { return Value{Type: domain.VarTypeBoolean, boolean: b} }
func List(ss []string) Value   { return Value{Type: domain.VarTypeList, list: ss} }

// Infer выводит Value из сырого значения, пришедшего из JSON
// (string, bool, json.Number, float64, []any) или из Go-литерала.
func Infer(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Text("")
	case string:
		return Text(v)
	case bool:
		return Boolean(v)
	case json.Number:
		if i, err := v.Int64(); err == nil && !strings.ContainsAny(v.String(), ".eE") {
			return Integer(i)
		}
		f, _ := v.Float64()
		return Float(f)
	case int:
		return Integer(int64(v))
	case int64:
		return Integer(v)
	case float64:
		return Float(v)
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = Infer(item).Serialize()
		}
		return List(items)
	case []string:
		return List(v)
	default:
		return Text(fmt.Sprint(v))
	}
}

// Coerce приводит сырое значение к целевому типу.
//
// Используется для переопределений: их значения приводятся к типу,
// уже установленному скриптом для этого имени, а не к собственной
// форме. Приведение тотально: неразборчивое значение даёт нулевое
// значение целевого типа.
func Coerce(raw any, target domain.VarType) Value {
	inferred := Infer(raw)
	if inferred.Type == target {
		return inferred
	}

	switch target {
	case domain.VarTypeText:
		return Text(inferred.Serialize())

	case domain.VarTypeInteger:
		switch inferred.Type {
		case domain.VarTypeFloat:
			return Integer(int64(inferred.float))
		case domain.VarTypeBoolean:
			if inferred.boolean {
				return Integer(1)
			}
			return Integer(0)
		default:
			i, _ := strconv.ParseInt(strings.TrimSpace(inferred.Serialize()), 10, 64)
			return Integer(i)
		}

	case domain.VarTypeFloat:
		if inferred.Type == domain.VarTypeInteger {
			return Float(float64(inferred.integer))
		}
		f, _ := strconv.ParseFloat(strings.TrimSpace(inferred.Serialize()), 64)
		return Float(f)

	case domain.VarTypeBoolean:
		s := strings.ToLower(strings.TrimSpace(inferred.Serialize()))
		return Boolean(s == "true" || s == "1" || s == "yes")

	case domain.VarTypeList:
		if inferred.Serialize() == "" {
			return List(nil)
		}
		parts := strings.Split(inferred.Serialize(), ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return List(parts)

	default:
		return inferred
	}
}

// ParseValue восстанавливает Value из сериализованного текста и тега.
func ParseValue(s string, t domain.VarType) Value {
	switch t {
	case domain.VarTypeInteger:
		i, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return Integer(i)
	case domain.VarTypeFloat:
		f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return Float(f)
	case domain.VarTypeBoolean:
		return Boolean(strings.EqualFold(strings.TrimSpace(s), "true"))
	case domain.VarTypeList:
		if s == "" {
			return List(nil)
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return List(parts)
	default:
		return Text(s)
	}
}

// Serialize сериализует значение в текст для хранения.
// Списки — через запятую, без скобок.
func (v Value) Serialize() string {
	switch v.Type {
	case domain.VarTypeInteger:
		return strconv.FormatInt(v.integer, 10)
	case domain.VarTypeFloat:
		return strconv.FormatFloat(v.float, 'g', -1, 64)
	case domain.VarTypeBoolean:
		return strconv.FormatBool(v.boolean)
	case domain.VarTypeList:
		return strings.Join(v.list, ", ")
	default:
		return v.text
	}
}

// Native возвращает значение как нативный Go-тип
// (для включения в исходящее сообщение).
func (v Value) Native() any {
	switch v.Type {
	case domain.VarTypeInteger:
		return v.integer
	case domain.VarTypeFloat:
		return v.float
	case domain.VarTypeBoolean:
		return v.boolean
	case domain.VarTypeList:
		return v.list
	default:
		return v.text
	}
}

// Equal сравнивает значения по типу и сериализованной форме.
func (v Value) Equal(other Value) bool {
	return v.Type == other.Type && v.Serialize() == other.Serialize()
}

// SanitizeHelp подготавливает справку переменной к хранению:
// экранирует HTML, переводит переносы строк и табуляции
// в разметку для отображения.
func SanitizeHelp(help string) string {
	help = html.EscapeString(help)
	help = strings.ReplaceAll(help, "\n", "<br>")
	help = strings.ReplaceAll(help, "\t", "&nbsp;&nbsp;&nbsp;&nbsp;")
	return help
}
