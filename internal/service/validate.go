package service

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// checkStruct runs tag-based validation and folds failures into
// domain.ErrValidation with the offending field named.
func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		return fmt.Errorf("%w: campo %s no cumple la regla %s", domain.ErrValidation, errs[0].Field(), errs[0].Tag())
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}
