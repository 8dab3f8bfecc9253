package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/annel0/geography/internal/errkind"
)

// Record универсальная запись ключ/значение, в которой хранятся сериализуемые
// структуры ядра (позиции, описания узлов). Имена полей являются частью внешнего
// контракта и не должны меняться.
type Record map[string]interface{}

// Storable реализуют типы, которые умеют превращаться в Record.
type Storable interface {
	ToRecord() Record
}

// Int возвращает целочисленное поле.
// Числа после JSON приходят как json.Number или float64, поэтому обрабатываем оба случая.
func (r Record) Int(key string) (int, error) {
	raw, ok := r[key]
	if !ok {
		return 0, errkind.InvalidArgument("record field %q is missing", key)
	}

	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint32:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, errkind.InvalidArgument("record field %q is not an integer: %v", key, v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, errkind.InvalidArgument("record field %q is not an integer: %v", key, v)
		}
		return int(n), nil
	default:
		return 0, errkind.InvalidArgument("record field %q has type %T, expected integer", key, raw)
	}
}

// String возвращает строковое поле.
func (r Record) String(key string) (string, error) {
	raw, ok := r[key]
	if !ok {
		return "", errkind.InvalidArgument("record field %q is missing", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", errkind.InvalidArgument("record field %q has type %T, expected string", key, raw)
	}
	return s, nil
}

// Nested возвращает вложенную запись.
func (r Record) Nested(key string) (Record, error) {
	raw, ok := r[key]
	if !ok {
		return nil, errkind.InvalidArgument("record field %q is missing", key)
	}

	switch v := raw.(type) {
	case Record:
		return v, nil
	case map[string]interface{}:
		return Record(v), nil
	case Storable:
		return v.ToRecord(), nil
	default:
		return nil, errkind.InvalidArgument("record field %q has type %T, expected record", key, raw)
	}
}

// Marshal сериализует запись в JSON.
func Marshal(s Storable) ([]byte, error) {
	data, err := json.Marshal(s.ToRecord())
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации записи: %w", err)
	}
	return data, nil
}

// Unmarshal разбирает JSON в Record, сохраняя целые числа как json.Number.
func Unmarshal(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, errkind.InvalidArgument("malformed record: %v", err)
	}
	if rec == nil {
		return nil, errkind.InvalidArgument("malformed record: null")
	}
	return rec, nil
}
