package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/entraops/guestgate/pkg/errors"
	"github.com/entraops/guestgate/pkg/response"
	appValidator "github.com/entraops/guestgate/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return false
	}

	return true
}

func formatValidationError(err error) string {
	ve, ok := err.(appValidator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return "invalid request payload"
	}

	messages := make([]string, 0, len(ve))
	for _, failure := range ve {
		switch failure.Tag {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", failure.Field))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", failure.Field, failure.Param))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", failure.Field, failure.Param))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation: %s", failure.Field, failure.Tag))
		}
	}
	return strings.Join(messages, "; ")
}
