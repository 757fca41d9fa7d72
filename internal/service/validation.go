package service

import (
	"errors"
	"fmt"
	"geohost/internal/misc"
	"geohost/internal/types"
	"github.com/go-playground/validator/v10"
	"strings"
)

const (
	appNameFormatError = "Name may only contain lowercase letters, numbers or dashes."
	appNameTakenError  = "App name is already taken."
)

// NewValidator returns the validator shared by the request DTOs, with the
// appname tag registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("appname", func(fl validator.FieldLevel) bool {
		return misc.IsValidAppName(fl.Field().String())
	})
	return v
}

// validateStruct turns validator errors into a single ValidationError.
func validateStruct(v *validator.Validate, value interface{}) error {
	err := v.Struct(value)
	if err == nil {
		return nil
	}

	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return err
	}

	messages := make([]string, 0, len(vErrs))
	for _, next := range vErrs {
		if next.Tag() == "appname" {
			messages = append(messages, appNameFormatError)
			continue
		}
		messages = append(messages, fmt.Sprintf("invalid value provided for: %s", strings.ToLower(next.Field())))
	}
	return types.NewValidationError("%s", strings.Join(messages, ", "))
}
