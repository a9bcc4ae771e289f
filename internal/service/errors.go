package service

import (
	"errors"
	"strings"

	"github.com/langchou/meterbook/internal/auth"
	"github.com/langchou/meterbook/internal/repository"
	"github.com/langchou/meterbook/internal/tariff"
)

// 业务错误，由 handler 层映射为 HTTP 状态码
var (
	ErrNotFound           = repository.ErrNotFound
	ErrNoActiveTariff     = errors.New("no active tariff configured")
	ErrActiveTariffDelete = errors.New("cannot delete the active tariff")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrTooManyAttempts    = auth.ErrTooManyAttempts
	ErrUnpricedUsage      = tariff.ErrUnpricedUsage
)

// ValidationError 请求参数校验失败
type ValidationError struct {
	Msg     string
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Msg
	}
	return e.Msg + ": " + strings.Join(e.Details, "; ")
}

func invalid(msg string, details ...string) error {
	return &ValidationError{Msg: msg, Details: details}
}

// IsValidation 是否为参数校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
