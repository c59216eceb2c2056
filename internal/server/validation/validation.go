// Package validation checks registration input before any storage access.
// Every function here is pure.
package validation

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/fitaccounts/internal/common"
	"github.com/dmitrijs2005/fitaccounts/internal/server/models"
)

const (
	minPasswordLength = 8
	minNicknameLength = 3
	maxNicknameLength = 30
)

var (
	phonePattern    = regexp.MustCompile(`^\+[1-9][0-9]{9,14}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nicknamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// ValidateRegistration checks phone, email, nickname and then the auth
// method, returning the first *common.ValidationError found.
func ValidateRegistration(r models.Registration) error {
	if err := ValidatePhone(r.Phone); err != nil {
		return err
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if err := ValidateNickname(r.Nickname); err != nil {
		return err
	}
	return ValidateAuthMethod(r.Auth)
}

// ValidatePhone expects E.164 with a leading plus, e.g. +79991234567.
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return common.NewValidationError("phone", common.ReasonPhoneFormat)
	}
	return nil
}

func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return common.NewValidationError("email", common.ReasonEmailFormat)
	}
	return nil
}

func ValidateNickname(nickname string) error {
	if nickname == "" {
		return common.NewValidationError("nickname", common.ReasonNicknameEmpty)
	}
	if len(nickname) < minNicknameLength || len(nickname) > maxNicknameLength {
		return common.NewValidationError("nickname", common.ReasonNicknameLength)
	}
	if !nicknamePattern.MatchString(nickname) {
		return common.NewValidationError("nickname", common.ReasonNicknameFormat)
	}
	return nil
}

// ValidateAuthMethod applies the password policy (at least 8 characters,
// one letter and one digit) or requires a non-empty provider user id.
func ValidateAuthMethod(m models.AuthMethod) error {
	switch a := m.(type) {
	case models.PasswordAuth:
		return ValidatePassword(a.Secret)
	case models.ExternalAuth:
		if a.ProviderUserID == "" {
			return common.NewValidationError("provider_user_id", common.ReasonExternalIDEmpty)
		}
		return nil
	default:
		return common.NewValidationError("auth", common.ReasonUnknownAuthMethod)
	}
}

func ValidatePassword(secret string) error {
	if utf8.RuneCountInString(secret) < minPasswordLength {
		return common.NewValidationError("password", common.ReasonPasswordTooShort)
	}

	var hasLetter, hasDigit bool
	for _, r := range secret {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return common.NewValidationError("password", common.ReasonPasswordMissingDigitOrLetter)
	}
	return nil
}
