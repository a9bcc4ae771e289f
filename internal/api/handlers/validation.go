package handlers

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validatorsOnce sync.Once

// registerValidators 注册自定义校验规则
func registerValidators(logger *zap.Logger) {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			logger.Warn("Binding validator is not go-playground/validator, custom rules disabled")
			return
		}
		if err := v.RegisterValidation("yearmonth", validYearMonth); err != nil {
			logger.Error("Failed to register yearmonth validator", zap.Error(err))
		}
	})
}

// validYearMonth YYYY-MM
func validYearMonth(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01", fl.Field().String())
	return err == nil
}
