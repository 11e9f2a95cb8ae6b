package httpapi

import (
	"errors"
	"reflect"
	"strings"

	"qms/walkin-queue/internal/store"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError reports the first failing field as a store.ValidationError.
func validationError(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return store.Invalid("", "invalid request payload")
	}
	fe := fieldErrors[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return store.Invalid(field, field+" is required")
	case "uuid":
		return store.Invalid(field, field+" must be a UUID")
	case "max":
		return store.Invalid(field, field+" must be at most "+fe.Param()+" characters")
	case "gte", "min":
		return store.Invalid(field, field+" must be at least "+fe.Param())
	case "lte":
		return store.Invalid(field, field+" must be at most "+fe.Param())
	case "oneof":
		return store.Invalid(field, field+" must be one of: "+fe.Param())
	default:
		return store.Invalid(field, field+" is invalid")
	}
}
