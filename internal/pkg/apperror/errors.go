package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation     ErrorCode = "VALIDATION_ERROR"
	ErrCodeDelivery       ErrorCode = "DELIVERY_ERROR"
	ErrCodeImportFormat   ErrorCode = "IMPORT_FORMAT_ERROR"
	ErrCodeNoData         ErrorCode = "NO_DATA"
	ErrCodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"
	ErrCodeTooLarge       ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeDatabaseError  ErrorCode = "DATABASE_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	// Fields ошибки по полям формы для VALIDATION_ERROR.
	Fields map[string]string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Validation создаёт ошибку валидации с сообщениями по полям.
func Validation(message string, fields map[string]string) *AppError {
	e := New(ErrCodeValidation, message)
	e.Fields = fields
	return e
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeImportFormat, ErrCodeNoData:
		return http.StatusBadRequest
	case ErrCodeDelivery:
		return http.StatusBadGateway
	case ErrCodeNotImplemented:
		return http.StatusNotImplemented
	case ErrCodeTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// As извлекает AppError из цепочки ошибок.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

func IsDelivery(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeDelivery
}

func IsImportFormat(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeImportFormat
}

var (
	ErrSessionNotFound    = New(ErrCodeNotFound, "сессия формы не найдена")
	ErrUnauthorized       = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrInvalidCredentials = New(ErrCodeUnauthorized, "неверный пароль")
	ErrSessionExpired     = New(ErrCodeUnauthorized, "сессия истекла")
	ErrNoDataToExport     = New(ErrCodeNoData, "нет данных для экспорта")
	ErrAlreadySubmitted   = New(ErrCodeBadRequest, "форма уже отправлена")
	ErrTooManyAssets      = New(ErrCodeBadRequest, "превышено количество файлов")
	ErrAssetTooLarge      = New(ErrCodeTooLarge, "файл слишком большой")
	ErrUnsupportedAsset   = New(ErrCodeBadRequest, "недопустимый тип файла")
	ErrNextVersion        = New(ErrCodeNotImplemented, "функция появится в следующей версии")
	ErrDraftPending       = New(ErrCodeBadRequest, "сначала ответьте на предложение восстановить черновик")
	ErrNotReviewStep      = New(ErrCodeBadRequest, "отправка доступна только на шаге обзора")
	ErrLastStep           = New(ErrCodeBadRequest, "это последний шаг формы")
)
