package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationErrors flattens validator output into field -> message.
func validationErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"request": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		field := e.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch e.Tag() {
		case "required":
			out[field] = "field is required"
		case "min", "gte":
			out[field] = fmt.Sprintf("must be at least %s", e.Param())
		case "max", "lte":
			out[field] = fmt.Sprintf("must not exceed %s", e.Param())
		case "gt":
			out[field] = fmt.Sprintf("must be greater than %s", e.Param())
		case "len":
			out[field] = fmt.Sprintf("must have length %s", e.Param())
		case "oneof":
			out[field] = fmt.Sprintf("must be one of [%s]", e.Param())
		default:
			out[field] = fmt.Sprintf("validation failed (%s)", e.Tag())
		}
	}
	return out
}
