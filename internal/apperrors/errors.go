package apperrors

import (
	"errors"
	"fmt"
)

// ErrorType классифицирует ошибку для политики ретраев
type ErrorType string

const (
	TypeTransientPage   ErrorType = "TRANSIENT_PAGE"
	TypeSessionStale    ErrorType = "SESSION_STALE"
	TypeConfig          ErrorType = "CONFIG"
	TypeStorage         ErrorType = "STORAGE"
	TypeParse           ErrorType = "PARSE"
	TypeInvalidArgument ErrorType = "INVALID_ARGUMENT"
)

type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext добавляет ключ/значение к ошибке (symbol, section, path)
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func New(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewTransientPageError: элемент не появился за таймаут. Ретраится.
func NewTransientPageError(message string, cause error) *AppError {
	return New(TypeTransientPage, message, cause)
}

// NewSessionStaleError: сессия браузера сломана. Нужен reboot.
func NewSessionStaleError(message string, cause error) *AppError {
	return New(TypeSessionStale, message, cause)
}

func NewConfigError(message string, cause error) *AppError {
	return New(TypeConfig, message, cause)
}

func NewStorageError(message string, cause error) *AppError {
	return New(TypeStorage, message, cause)
}

func NewParseError(message string, cause error) *AppError {
	return New(TypeParse, message, cause)
}

func NewInvalidArgumentError(message string) *AppError {
	return New(TypeInvalidArgument, message, nil)
}

// TypeOf возвращает тип первой AppError в цепочке или "" если её нет
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

func IsTransientPage(err error) bool { return TypeOf(err) == TypeTransientPage }

func IsSessionStale(err error) bool { return TypeOf(err) == TypeSessionStale }

func IsConfig(err error) bool { return TypeOf(err) == TypeConfig }

func IsStorage(err error) bool { return TypeOf(err) == TypeStorage }

func IsParse(err error) bool { return TypeOf(err) == TypeParse }

func IsInvalidArgument(err error) bool { return TypeOf(err) == TypeInvalidArgument }
