package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// bindingError turns a gin binding failure into a client-facing message.
// Only the first field error is reported; callers fix one thing at a time.
func bindingError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", field)
		case "gt":
			return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
		case "min":
			return fmt.Sprintf("%s must be at least %s", field, fe.Param())
		}
		return fmt.Sprintf("%s is invalid", field)
	}
	return "invalid request"
}
