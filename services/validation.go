package services

import (
	"strings"

	"coopledger/apperrors"

	"github.com/go-playground/validator/v10"
)

// validateStruct runs validator tags over a DTO and converts failures into
// a single validation error with a readable message per field.
func validateStruct(v *validator.Validate, dto interface{}) error {
	err := v.Struct(dto)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Wrap(apperrors.KindValidation, "invalid request", err)
	}

	var errorMessages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			errorMessages = append(errorMessages, "field "+e.Field()+" is required")
		case "gt":
			errorMessages = append(errorMessages, "field "+e.Field()+" must be greater than "+e.Param())
		case "gte":
			errorMessages = append(errorMessages, "field "+e.Field()+" must be at least "+e.Param())
		case "lte":
			errorMessages = append(errorMessages, "field "+e.Field()+" must be at most "+e.Param())
		case "min":
			errorMessages = append(errorMessages, "field "+e.Field()+" must have at least "+e.Param()+" characters")
		case "max":
			errorMessages = append(errorMessages, "field "+e.Field()+" must have at most "+e.Param()+" characters")
		case "email":
			errorMessages = append(errorMessages, "field "+e.Field()+" must be a valid email address")
		case "oneof":
			errorMessages = append(errorMessages, "field "+e.Field()+" must be one of: "+e.Param())
		default:
			errorMessages = append(errorMessages, "field "+e.Field()+" is invalid")
		}
	}

	return apperrors.Validation(strings.Join(errorMessages, "; "))
}
