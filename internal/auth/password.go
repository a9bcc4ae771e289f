package auth

import (
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

var validate = validator.New()

// HashPassword 生成 bcrypt 哈希
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword 校验密码
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidEmail 邮箱格式校验
func ValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// PasswordProblems 返回密码强度的全部不满足项，为空表示通过
func PasswordProblems(password string) []string {
	var (
		upper, lower, digit, special bool
		problems                     []string
	)
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	if len([]rune(password)) < 8 {
		problems = append(problems, "password must be at least 8 characters long")
	}
	if !upper {
		problems = append(problems, "password must contain at least one uppercase letter")
	}
	if !lower {
		problems = append(problems, "password must contain at least one lowercase letter")
	}
	if !digit {
		problems = append(problems, "password must contain at least one number")
	}
	if !special {
		problems = append(problems, "password must contain at least one special character")
	}
	return problems
}
