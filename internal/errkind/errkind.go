package errkind

import (
	"errors"
	"fmt"
)

// Error представляет класс ошибки ядра.
// Конкретные ошибки оборачивают один из экземпляров ниже через %w,
// поэтому проверка выполняется через errors.Is.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError создаёт новый класс ошибки.
func NewError(message string) *Error {
	return &Error{Message: message}
}

// Классы ошибок
var (
	// ErrInvalidArgument: некорректные входные данные (например, позиция без имени мира).
	ErrInvalidArgument = NewError("invalid argument")
	// ErrCollaboratorUnavailable: внешний участник (мир, хранилище высот/биомов) не смог ответить.
	ErrCollaboratorUnavailable = NewError("collaborator unavailable")
)

// InvalidArgument оборачивает ErrInvalidArgument с пояснением.
func InvalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// CollaboratorUnavailable оборачивает ErrCollaboratorUnavailable с пояснением.
func CollaboratorUnavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCollaboratorUnavailable, fmt.Sprintf(format, args...))
}

// IsInvalidArgument проверяет, относится ли ошибка к классу InvalidArgument.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsCollaboratorUnavailable проверяет, относится ли ошибка к классу CollaboratorUnavailable.
func IsCollaboratorUnavailable(err error) bool {
	return errors.Is(err, ErrCollaboratorUnavailable)
}
