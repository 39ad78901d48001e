// Package validation adapts go-playground/validator to Echo and
// registers the tags used by request bodies.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/hospital-guest-access/internal/access"
	"github.com/iliyamo/hospital-guest-access/internal/model"
)

var phoneRe = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// Validator implements echo.Validator.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the custom tags registered:
//
//	passtype  one_time or frequent
//	visitdate YYYY-MM-DD
//	phone     7 to 15 digits with an optional leading +
//	action    a check-in or check-out spelling accepted by access.ParseAction
//	staffrole a staff role a hospital admin may create (NURSE, SECURITY)
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("passtype", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == model.PassOneTime || s == model.PassFrequent
	})
	_ = v.RegisterValidation("visitdate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("action", func(fl validator.FieldLevel) bool {
		_, ok := access.ParseAction(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("staffrole", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == model.RoleNurse || s == model.RoleSecurity
	})
	return &Validator{v: v}
}

// Validate checks i and flattens field errors into one readable error.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, message(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func message(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return f + " is required"
	case "email":
		return f + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", f, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", f, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be less than %s", f, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", f, fe.Param())
	case "passtype":
		return f + " must be one_time or frequent"
	case "visitdate":
		return f + " must be YYYY-MM-DD"
	case "phone":
		return f + " must be a phone number"
	case "action":
		return f + " must be check-in or check-out"
	case "staffrole":
		return f + " must be NURSE or SECURITY"
	}
	return fmt.Sprintf("%s is invalid (%s)", f, fe.Tag())
}
