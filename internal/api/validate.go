package api

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/careconnect/scheduling-service/internal/scheduling"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("time_slot", validateTimeSlot)
}

func validateTimeSlot(fl validator.FieldLevel) bool {
	_, err := scheduling.ParseTimeSlot(fl.Field().String())
	return err == nil
}

// firstValidationError flattens validator output into a single
// human-readable message for the error response.
func firstValidationError(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "request could not be processed"
	}

	first := verrs[0]
	field := strings.ToLower(first.Field())

	switch first.Tag() {
	case "required":
		return field + " is required"
	case "uuid":
		return field + " must be a valid UUID"
	case "datetime":
		return field + " must be formatted YYYY-MM-DD"
	case "time_slot":
		return field + " must be formatted HH:MM-HH:MM"
	case "oneof":
		return field + " must be one of: " + strings.Join(strings.Fields(first.Param()), ", ")
	case "max":
		return field + " is too long"
	default:
		return field + " is invalid"
	}
}
