package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

var tagMessages = map[string]string{
	"required":       "is required",
	"email":          "must be a valid email address",
	"datetime":       "must be a date in YYYY-MM-DD format",
	"gt":             "must be greater than %s",
	"min":            "is too short",
	"oneof":          "must be one of: %s",
	"gender":         "must be one of: male, female, other",
	"blood_type":     "must be a valid blood type",
	"payment_method": "must be one of: cash, card, transfer, insurance",
}

// BindJSON decodes and validates the request body into dst. On failure it
// writes a 400 and returns false.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondError(c, apperrors.BadRequest(validationMessage(err), err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return strings.Join(msgs, "; ")
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return "malformed JSON body"
	case errors.As(err, &typeErr):
		return fmt.Sprintf("%s has the wrong type", typeErr.Field)
	case errors.Is(err, io.EOF):
		return "request body is required"
	}
	return "invalid request body"
}

func fieldMessage(fe validator.FieldError) string {
	tmpl, ok := tagMessages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
	if strings.Contains(tmpl, "%s") {
		tmpl = fmt.Sprintf(tmpl, fe.Param())
	}
	return fe.Field() + " " + tmpl
}
