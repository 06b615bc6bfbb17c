package utils

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// PhoneMessage is returned when a phone number is not a Taiwanese mobile number.
const PhoneMessage = "Phone number must be in the format 09xxxxxxxx"

var phonePattern = regexp.MustCompile(`^09\d{8}$`)

// FieldError describes one invalid request field.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

var registerOnce sync.Once

// RegisterValidators installs the custom tags on gin's validator and makes
// errors report JSON or form field names.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("twphone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
	})
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// FormatValidationError turns a binding error into field errors.
func FormatValidationError(err error) []FieldError {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		out := make([]FieldError, 0, len(errs))
		for _, e := range errs {
			out = append(out, FieldError{
				Loc:  []string{"body", e.Field()},
				Msg:  validationMessage(e),
				Type: "value_error." + e.Tag(),
			})
		}
		return out
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return []FieldError{{Loc: []string{"body", typeErr.Field}, Msg: "invalid type, expected " + typeErr.Type.String(), Type: "type_error"}}
	case errors.As(err, &syntaxErr):
		return []FieldError{{Loc: []string{"body"}, Msg: "request body is not valid JSON", Type: "value_error.jsondecode"}}
	}
	return []FieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field required"
	case "email":
		return "value is not a valid email address"
	case "twphone":
		return PhoneMessage
	case "min":
		if e.Kind() == reflect.String {
			return "ensure this value has at least " + e.Param() + " characters"
		}
		return "ensure this value is greater than or equal to " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "ensure this value has at most " + e.Param() + " characters"
		}
		return "ensure this value is less than or equal to " + e.Param()
	case "oneof":
		return "value is not one of: " + e.Param()
	case "datetime":
		return "invalid date format, expected YYYY-MM-DD"
	}
	return "failed on the '" + e.Tag() + "' rule"
}

// BindAndValidate binds the request body (JSON or form) to a struct and validates it.
// If validation fails, it sends a 422 response and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	RegisterValidators()
	if err := c.ShouldBind(obj); err != nil {
		UnprocessableEntity(c, FormatValidationError(err))
		return false
	}
	return true
}

// BindQuery binds and validates query string parameters.
func BindQuery(c *gin.Context, obj interface{}) bool {
	RegisterValidators()
	if err := c.ShouldBindQuery(obj); err != nil {
		fields := FormatValidationError(err)
		for i := range fields {
			if len(fields[i].Loc) > 0 {
				fields[i].Loc[0] = "query"
			}
		}
		UnprocessableEntity(c, fields)
		return false
	}
	return true
}
