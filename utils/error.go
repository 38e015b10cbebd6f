package utils

import (
	"errors"
	"fmt"
	"net/http"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type ErrorCode string

const (
	ErrorCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrorCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrorCodeConflict      ErrorCode = "CONFLICT"
	ErrorCodeUnprocessable ErrorCode = "UNPROCESSABLE_ENTITY"
	ErrorCodeInternal      ErrorCode = "INTERNAL"
)

// AppError is the structured failure raised inside transactions and mapped
// 1:1 to the HTTP error envelope at the boundary.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *AppError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func NotFound(format string, args ...interface{}) *AppError {
	return &AppError{Code: ErrorCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...interface{}) *AppError {
	return &AppError{Code: ErrorCodeBadRequest, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) *AppError {
	return &AppError{Code: ErrorCodeConflict, Message: fmt.Sprintf(format, args...)}
}

func Unprocessable(format string, args ...interface{}) *AppError {
	return &AppError{Code: ErrorCodeUnprocessable, Message: fmt.Sprintf(format, args...)}
}

// HTTPStatus maps an error to its response status.
// Unclassified errors are internal and must not leak detail to the caller.
func HTTPStatus(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeBadRequest:
		return http.StatusBadRequest
	case ErrorCodeConflict:
		return http.StatusConflict
	case ErrorCodeUnprocessable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// IsDuplicateKeyErr reports whether err is a unique-constraint violation.
// MySQL error 1062 in production; gorm's translated error covers sqlite in tests.
func IsDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
