package errs

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// newValidator builds a struct validator with JSON tag names in its
// error messages instead of Go field names, mirroring
// dc4eu-vc/pkg/helpers.NewValidator.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate runs s's `validate:"..."` tags and wraps any failure into
// a KindSync Error, the way NewErrorFromError folds
// validator.ValidationErrors into its own error taxonomy.
func Validate(s any) error {
	if err := newValidator().Struct(s); err != nil {
		return Wrap(KindSync, "validation_failed", err)
	}
	return nil
}
