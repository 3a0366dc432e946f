// Package handler exposes the reservation engine and the restaurant
// directory over HTTP.
package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/apperr"
	"github.com/iliyamo/restaurant-reservation/internal/logger"
)

type errorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// ErrorHandler renders every error returned by a handler or middleware as
// {"error": {"code", "message", "details"}}.  Messages of retryable server
// side failures are replaced by the public message for the code.
func ErrorHandler(logg *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ae := toAppError(err)
		meta := apperr.MetadataFor(ae.Code())

		body := errorBody{Code: ae.Code(), Message: ae.Message()}
		if meta.HTTPStatus >= http.StatusInternalServerError || body.Message == "" {
			body.Message = meta.PublicMessage
		}
		if meta.DetailsAllowed {
			body.Details = ae.Details()
		}
		if meta.HTTPStatus >= http.StatusInternalServerError && logg != nil {
			logg.Error(c.Request().Context(), "request error", err)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(meta.HTTPStatus)
		} else {
			writeErr = c.JSON(meta.HTTPStatus, errorEnvelope{Error: body})
		}
		if writeErr != nil && logg != nil {
			logg.Error(c.Request().Context(), "write error response", writeErr)
		}
	}
}

func toAppError(err error) *apperr.Error {
	if ae := apperr.As(err); ae != nil {
		return ae
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, _ := he.Message.(string)
		return apperr.Wrap(codeForStatus(he.Code), err, msg)
	}
	return apperr.Wrap(apperr.CodeInternal, err, "")
}

func codeForStatus(status int) apperr.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return apperr.CodeValidation
	case http.StatusUnauthorized:
		return apperr.CodeUnauthorized
	case http.StatusForbidden:
		return apperr.CodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperr.CodeNotFound
	case http.StatusConflict:
		return apperr.CodeConflict
	case http.StatusTooManyRequests:
		return apperr.CodeRateLimit
	case http.StatusServiceUnavailable:
		return apperr.CodeUnavailable
	}
	return apperr.CodeInternal
}

// Validator adapts go-playground/validator to echo, reporting fields by
// their JSON or query names.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query", "param"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid request")
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = describe(fe)
	}
	return apperr.Wrap(apperr.CodeValidation, err, "validation failed").WithDetails(details)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "datetime":
		return "must match layout " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}

// bindValid binds path, query and body into dst and validates it.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "malformed request")
	}
	return c.Validate(dst)
}

func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.New(apperr.CodeValidation, "invalid "+name).
			WithDetails(map[string]string{name: "must be a positive integer"})
	}
	return id, nil
}
