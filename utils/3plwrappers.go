package utils

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

func GetUUID() string {
	return uuid.New().String()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs the struct's `validate` tags.
func Validate(v any) error {
	return validate.Struct(v)
}
