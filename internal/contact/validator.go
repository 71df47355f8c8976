package contact

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks that a Submission can be relayed. It performs no I/O
// and is safe for concurrent use.
type Validator struct {
	validate    *validator.Validate
	strictEmail bool
}

// NewValidator creates a Validator. With strictEmail the submitter
// address must also be syntactically valid; otherwise any non-empty
// string is accepted.
func NewValidator(strictEmail bool) *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their form names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &Validator{validate: validate, strictEmail: strictEmail}
}

// Validate returns a *ValidationError naming the first empty field in the
// order name, email, message.
func (v *Validator) Validate(sub Submission) error {
	if err := v.validate.Struct(sub); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return err
		}
		return &ValidationError{Kind: MissingField, Field: fieldErrs[0].Field()}
	}

	if v.strictEmail {
		if err := v.validate.Var(sub.Email, "email"); err != nil {
			return &ValidationError{Kind: InvalidEmail, Field: "email"}
		}
	}
	return nil
}
