package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/go-playground/validator/v10"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

var usernamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	return v
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Email    string  `validate:"required,email,max=255"`
	Username string  `validate:"required,min=3,max=50,username"`
	Password string  `validate:"required,min=8,max=100,bcryptlen"`
	FullName *string `validate:"omitempty,max=100"`
}

func (in RegisterInput) Validate() error {
	return validationError(validate.Struct(in))
}

func validatePatch(p models.UserPatch) error {
	if p.Email != nil {
		if err := validate.Var(*p.Email, "required,email,max=255"); err != nil {
			return fieldError("email", err)
		}
	}
	if p.FullName != nil {
		if err := validate.Var(*p.FullName, "max=100"); err != nil {
			return fieldError("full_name", err)
		}
	}
	if p.Password != nil {
		if err := validate.Var(*p.Password, "required,min=8,max=100,bcryptlen"); err != nil {
			return fieldError("password", err)
		}
	}
	return nil
}

// ValidatePasswordStrength requires at least eight characters with an upper
// case letter, a lower case letter, a digit and a special character.
func ValidatePasswordStrength(password string) error {
	if len([]rune(password)) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", common.ErrorValidation)
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(`!@#$%^&*(),.?":{}|<>`, r):
			special = true
		}
	}

	switch {
	case !upper:
		return fmt.Errorf("%w: password must contain an upper case letter", common.ErrorValidation)
	case !lower:
		return fmt.Errorf("%w: password must contain a lower case letter", common.ErrorValidation)
	case !digit:
		return fmt.Errorf("%w: password must contain a digit", common.ErrorValidation)
	case !special:
		return fmt.Errorf("%w: password must contain a special character", common.ErrorValidation)
	}
	return nil
}

// validationError converts validator output into a common.ErrorValidation
// naming the offending fields.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(toSnake(fe.Field()), fe))
	}
	return fmt.Errorf("%w: %s", common.ErrorValidation, strings.Join(msgs, "; "))
}

func fieldError(field string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s", common.ErrorValidation, describe(field, verrs[0]))
	}
	return fmt.Errorf("%w: %s: %v", common.ErrorValidation, field, err)
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "username":
		return field + " must start with a letter and contain only letters, digits, '_' or '-'"
	case "bcryptlen":
		return fmt.Sprintf("%s must be at most %d bytes", field, maxPasswordBytes)
	default:
		return field + " is invalid"
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
