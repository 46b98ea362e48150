package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrMalformedJSON is returned by DecodeAndValidate when the body is not valid JSON
var ErrMalformedJSON = errors.New("malformed JSON body")

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// report fields by their JSON names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		d, ok := v.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})
}

// ValidateRequest validates the request body against a struct with validation tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// DecodeAndValidate decodes JSON request body and validates it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return ValidateRequest(v)
}

// FormatValidationErrors converts validator errors to messages keyed by
// field path, e.g. "items.0.quantity"
func FormatValidationErrors(err error) map[string][]string {
	errs := make(map[string][]string)

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			field := fieldPath(e.Namespace())
			errs[field] = append(errs[field], getErrorMessage(e, field))
		}
	}

	return errs
}

// fieldPath turns "registerRequest.items[0].product_id" into "items.0.product_id"
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		namespace = namespace[i+1:]
	}
	namespace = strings.ReplaceAll(namespace, "[", ".")
	return strings.ReplaceAll(namespace, "]", "")
}

func getErrorMessage(e validator.FieldError, field string) string {
	name := field
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, "_", " ")

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", name)
	case "uuid", "uuid4":
		return fmt.Sprintf("The %s field must be a valid UUID.", name)
	case "url":
		return fmt.Sprintf("The %s field must be a valid URL.", name)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", name)
	case "eqfield":
		return fmt.Sprintf("The %s field must match %s.", name, strings.ToLower(e.Param()))
	case "min":
		return sizeMessage(e, name, "at least")
	case "max":
		return sizeMessage(e, name, "not be greater than")
	case "gte":
		return fmt.Sprintf("The %s field must be at least %s.", name, e.Param())
	case "lte":
		return fmt.Sprintf("The %s field must not be greater than %s.", name, e.Param())
	case "gt":
		return fmt.Sprintf("The %s field must be greater than %s.", name, e.Param())
	case "lt":
		return fmt.Sprintf("The %s field must be less than %s.", name, e.Param())
	default:
		return fmt.Sprintf("The %s field is invalid.", name)
	}
}

func sizeMessage(e validator.FieldError, name, bound string) string {
	switch e.Kind() {
	case reflect.String:
		return fmt.Sprintf("The %s field must %s %s characters.", name, bePrefix(bound), e.Param())
	case reflect.Slice, reflect.Array, reflect.Map:
		return fmt.Sprintf("The %s field must %s %s items.", name, havePrefix(bound), e.Param())
	default:
		return fmt.Sprintf("The %s field must %s %s.", name, bePrefix(bound), e.Param())
	}
}

func bePrefix(bound string) string {
	if bound == "at least" {
		return "be at least"
	}
	return bound
}

func havePrefix(bound string) string {
	if bound == "at least" {
		return "have at least"
	}
	return "not have more than"
}
