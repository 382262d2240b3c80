package api

import (
	stderrors "errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/gyber/go-custody"
)

// ErrorResponse is the body written for every failed request
type ErrorResponse struct {
	Detail   string `json:"detail"`
	TextCode string `json:"text_code,omitempty"`
}

var categoryStatus = map[errors.Category]int{
	errors.CategoryAuth:       http.StatusUnauthorized,
	errors.CategoryAuthz:      http.StatusForbidden,
	errors.CategoryNotFound:   http.StatusNotFound,
	errors.CategoryConflict:   http.StatusConflict,
	errors.CategoryValidation: http.StatusUnprocessableEntity,
	errors.CategoryBadInput:   http.StatusBadRequest,
	errors.CategoryOperation:  http.StatusServiceUnavailable,
}

// StatusFor maps an error to the HTTP status and body clients see.
// Rich errors carry their own code, the category is a fallback.
func StatusFor(err error) (int, ErrorResponse) {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		status := richErr.Code
		if status < 400 || status > 599 {
			status = categoryStatus[richErr.Category]
		}
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, ErrorResponse{Detail: richErr.Message, TextCode: richErr.TextCode}
	}

	var fiberErr *fiber.Error
	if stderrors.As(err, &fiberErr) {
		return fiberErr.Code, ErrorResponse{Detail: fiberErr.Message}
	}

	return http.StatusInternalServerError, ErrorResponse{Detail: http.StatusText(http.StatusInternalServerError)}
}

// ErrorHandler renders errors as {"detail", "text_code"} JSON
func ErrorHandler(logger custody.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := StatusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"error", err,
			)
		}
		return c.Status(status).JSON(body)
	}
}

// badRequest wraps body decoding failures
func badRequest(err error) error {
	return errors.Wrap(err, errors.CategoryValidation, "Request Body Is Not Valid").
		WithTextCode(custody.TextCodeValidation).
		WithCode(http.StatusUnprocessableEntity)
}

// downstream reports a persistence failure the workflows did not classify
func downstream(err error) error {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}
	return errors.Wrap(err, custody.ErrDownstreamUnavailable.Category, custody.ErrDownstreamUnavailable.Message).
		WithTextCode(custody.TextCodeDownstreamUnavailable).
		WithCode(custody.ErrDownstreamUnavailable.Code)
}

// ErrInvalidLink is returned when a verification or reset link does not resolve
var ErrInvalidLink = errors.New("Invalid Token", errors.CategoryAuth).
	WithTextCode(custody.TextCodeTokenInvalid).
	WithCode(http.StatusUnauthorized)
