package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"hrms-service/middleware"
	"hrms-service/models"
	"hrms-service/services"

	"github.com/go-playground/validator/v10"
)

type JSONResponse map[string]interface{}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads and validates a request body, answering 400 with a
// readable message on failure.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return middleware.NewAppError(http.StatusBadRequest, FormatValidationError(err), err)
	}
	if err := validate.Struct(dst); err != nil {
		return middleware.NewAppError(http.StatusBadRequest, FormatValidationError(err), err)
	}
	return nil
}

func FormatValidationError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, io.EOF) {
		return "Request body is empty"
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("Invalid JSON at byte offset %d", syntaxErr.Offset)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("Field '%s' should be of type %s", typeErr.Field, typeErr.Type.String())
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make([]string, 0, len(ve))
		for _, fe := range ve {
			out = append(out, formatFieldError(fe))
		}
		return strings.Join(out, ", ")
	}
	return "Invalid request payload"
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field '%s' is required", fe.Field())
	case "email":
		return fmt.Sprintf("Field '%s' must be a valid email", fe.Field())
	case "min":
		return fmt.Sprintf("Field '%s' must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("Field '%s' must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("Field '%s' must be one of: %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("Field '%s' failed validation for '%s'", fe.Field(), fe.Tag())
}

// dateParam reads an optional YYYY-MM-DD or RFC3339 query parameter.
func dateParam(r *http.Request, key string) (*models.DateOnly, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil, nil
	}
	if date, err := models.ParseDate(value); err == nil {
		return &date, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		date := models.DateOf(t)
		return &date, nil
	}
	return nil, middleware.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid %s, expected YYYY-MM-DD", key), nil)
}

func dateRange(r *http.Request) (start, end *models.DateOnly, err error) {
	if start, err = dateParam(r, "startDate"); err != nil {
		return nil, nil, err
	}
	if end, err = dateParam(r, "endDate"); err != nil {
		return nil, nil, err
	}
	if start != nil && end != nil && start.After(end.Time) {
		return nil, nil, middleware.NewAppError(http.StatusBadRequest, "startDate must not be after endDate", nil)
	}
	return start, end, nil
}

// inputError maps credential input rejections to 400 and anything else to 500.
func inputError(err error) error {
	switch {
	case errors.Is(err, services.ErrNameRequired):
		return middleware.NewAppError(http.StatusBadRequest, "Field 'name' is required", err)
	case errors.Is(err, services.ErrPasswordTooLong):
		return middleware.NewAppError(http.StatusBadRequest, "Field 'password' must be at most 72 bytes", err)
	}
	return internalError(err)
}

func internalError(err error) error {
	return middleware.NewAppError(http.StatusInternalServerError, "Internal server error", err)
}

func notAuthenticated() error {
	return middleware.NewAppError(http.StatusUnauthorized, "Not authenticated", nil)
}
