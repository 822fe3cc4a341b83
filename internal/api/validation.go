package api

import (
	"fmt"
	"unicode"
)

const (
	usernameMinLength = 3
	usernameMaxLength = 30
	passwordMinLength = 8
	reviewMaxLength   = 500
)

func validateUsername(username string) error {
	if len(username) < usernameMinLength || len(username) > usernameMaxLength {
		return fmt.Errorf("username must be between %d and %d characters", usernameMinLength, usernameMaxLength)
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("username must contain only letters and numbers")
		}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < passwordMinLength {
		return fmt.Errorf("password must be at least %d characters long", passwordMinLength)
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("password must contain at least one uppercase letter, one lowercase letter, and one number")
	}
	return nil
}

func validateReview(text string) error {
	if len(text) > reviewMaxLength {
		return fmt.Errorf("review must be at most %d characters", reviewMaxLength)
	}
	return nil
}
