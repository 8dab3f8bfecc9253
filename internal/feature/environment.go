package feature

import (
	"strings"

	"github.com/annel0/geography/internal/errkind"
	"gopkg.in/yaml.v3"
)

// Environment задаёт тип мира (измерения)
type Environment int

const (
	EnvNormal Environment = iota // обычный мир
	EnvNether                    // адское измерение
	EnvTheEnd                    // край
)

// String возвращает строковое представление окружения
func (e Environment) String() string {
	switch e {
	case EnvNormal:
		return "normal"
	case EnvNether:
		return "nether"
	case EnvTheEnd:
		return "the_end"
	default:
		return "unknown"
	}
}

// Special сообщает, относится ли мир к особым измерениям
func (e Environment) Special() bool {
	return e != EnvNormal
}

// ParseEnvironment разбирает имя окружения из конфига
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "overworld", "":
		return EnvNormal, nil
	case "nether", "hell":
		return EnvNether, nil
	case "the_end", "end":
		return EnvTheEnd, nil
	default:
		return EnvNormal, errkind.InvalidArgument("unknown world environment %q", s)
	}
}

// UnmarshalYAML позволяет задавать окружение строкой
func (e *Environment) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseEnvironment(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// MarshalText записывает окружение строкой
func (e Environment) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText разбирает окружение из строки
func (e *Environment) UnmarshalText(text []byte) error {
	parsed, err := ParseEnvironment(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
