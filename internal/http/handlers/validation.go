package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/creditoya/backend/internal/validate"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the "rut" and "cl_mobile" tags to gin's binding
// engine and reports fields by their json names.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("rut", func(fl validator.FieldLevel) bool {
			return validate.IsValidRUT(fl.Field().String())
		})
		_ = v.RegisterValidation("cl_mobile", func(fl validator.FieldLevel) bool {
			return validate.IsValidMobilePhone(validate.NormalizePhone(fl.Field().String()))
		})
	})
}

// bindJSON decodes the body and turns the first failed rule into a
// FieldError.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return validate.Field(verrs[0].Field(), ruleMessage(verrs[0]))
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return validate.Field(typeErr.Field, "has the wrong type")
	}
	if errors.Is(err, io.EOF) {
		return validate.Field("body", "is required")
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return validate.Field("body", "is too large")
	}
	return validate.Field("body", "is not valid json")
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "rut":
		return "invalid rut"
	case "cl_mobile":
		return "invalid chilean mobile number"
	case "email":
		return "invalid email"
	case "min":
		return fmt.Sprintf("must have at least %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return "is invalid"
	}
}
