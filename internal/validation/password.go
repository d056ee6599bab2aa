package validation

import (
	"errors"
	"strings"
	"unicode"
)

// MinPasswordLength минимальная длина пароля оператора дашборда.
const MinPasswordLength = 8

// PasswordProblems перечисляет нарушенные требования к паролю оператора.
// Пустой результат означает, что пароль подходит.
func PasswordProblems(password string) []string {
	var problems []string
	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, "не короче 8 символов")
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		problems = append(problems, "заглавная буква")
	}
	if !lower {
		problems = append(problems, "строчная буква")
	}
	if !digit {
		problems = append(problems, "цифра")
	}
	return problems
}

// ValidatePassword возвращает ошибку со списком нарушенных требований.
func ValidatePassword(password string) error {
	problems := PasswordProblems(password)
	if len(problems) == 0 {
		return nil
	}
	return errors.New("слабый пароль дашборда, требуется: " + strings.Join(problems, ", "))
}
