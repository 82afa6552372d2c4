// Package validate wires go-playground/validator into gin binding and turns
// binding failures into field-level error details.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/traveldiary/server/internal/pkg/response"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	registerOnce    sync.Once
)

// Register installs the custom tags and JSON field naming on gin's validator.
func Register() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
	})
}

// BindJSON decodes and validates the request body into dto. On failure it
// writes a 400 with details and returns false.
func BindJSON(c *gin.Context, dto interface{}) bool {
	Register()
	if err := c.ShouldBindJSON(dto); err != nil {
		response.ValidationFailed(c, Details(err))
		return false
	}
	return true
}

// Details converts a binding error into field errors.
func Details(err error) []response.FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]response.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, response.FieldError{Field: fe.Field(), Message: message(fe)})
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return []response.FieldError{{Field: field, Message: fmt.Sprintf("must be of type %s", typeErr.Type.String())}}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return []response.FieldError{{Field: "body", Message: "malformed JSON"}}
	}
	if errors.Is(err, io.EOF) {
		return []response.FieldError{{Field: "body", Message: "request body is required"}}
	}
	return []response.FieldError{{Field: "body", Message: err.Error()}}
}

// Field builds a single field error.
func Field(field, msg string) []response.FieldError {
	return []response.FieldError{{Field: field, Message: msg}}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "username":
		return "may only contain letters, numbers and underscores"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}
