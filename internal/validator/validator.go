// Package validator validates user supplied profile fields
package validator

import (
	"errors"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// PasswordRule is the tag applied to every new password
const PasswordRule = "min=6,max=64"

var birthdayLayouts = []string{"2006-01-02", "02/01/2006"}

// Validator checks `validate` struct tags. It satisfies echo.Validator.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// New creates a validator with the profile rules registered: name, cpf,
// celular and birthday
func New() *Validator {
	v := &Validator{validate: validator.New(validator.WithRequiredStructEnabled()), now: time.Now}

	// report fields by their json name
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.register("name", Name)
	v.register("cpf", CPF)
	v.register("celular", Celular)
	v.register("birthday", func(s string) bool { return Birthday(s, v.now()) })
	return v
}

func (v *Validator) register(tag string, fn func(string) bool) {
	// only fails on an empty tag or a nil func
	_ = v.validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	})
}

// Validate checks the struct tags of i
func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// Password checks the length bounds of a new password
func (v *Validator) Password(password string) bool {
	return v.validate.Var(password, PasswordRule) == nil
}

// InvalidField returns the json name of the first field that failed
func InvalidField(err error) (string, bool) {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "", false
	}
	return errs[0].Field(), true
}

// Name checks the characters of a first or last name. Length is left to
// the max tag.
func Name(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && r != ' ' && r != '-' && r != '\'' && r != '.' {
			return false
		}
	}
	return true
}

// Birthday accepts YYYY-MM-DD or DD/MM/YYYY dates that are not in the future
func Birthday(birthday string, now time.Time) bool {
	for _, layout := range birthdayLayouts {
		t, err := time.Parse(layout, birthday)
		if err == nil {
			return !t.After(now) && t.Year() >= 1900
		}
	}
	return false
}

// Celular accepts 10 or 11 digits once common separators are stripped
func Celular(celular string) bool {
	digits, ok := stripDigits(celular, "()- +")
	return ok && (len(digits) == 10 || len(digits) == 11)
}

// CPF validates a Brazilian taxpayer number including its check digits.
// Dots and dashes are ignored.
func CPF(cpf string) bool {
	digits, ok := stripDigits(cpf, ".-")
	if !ok || len(digits) != 11 {
		return false
	}
	if strings.Count(digits, digits[:1]) == 11 {
		return false
	}
	return cpfCheckDigit(digits[:9]) == digits[9] && cpfCheckDigit(digits[:10]) == digits[10]
}

func cpfCheckDigit(base string) byte {
	sum := 0
	weight := len(base) + 1
	for i := 0; i < len(base); i++ {
		sum += int(base[i]-'0') * weight
		weight--
	}
	rest := sum % 11
	if rest < 2 {
		return '0'
	}
	return byte('0' + 11 - rest)
}

func stripDigits(s, separators string) (string, bool) {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case strings.ContainsRune(separators, r):
		default:
			return "", false
		}
	}
	return sb.String(), true
}
