package handlers

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"umlrender/internal/domain"
	"umlrender/internal/infra/logging"
)

// RequestError is a malformed request body. It is reported with per-field
// messages, separately from pipeline failures.
type RequestError struct {
	Message string
	Fields  map[string]string
}

func (e *RequestError) Error() string { return e.Message }

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error       string            `json:"error"`
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	Timestamp   int64             `json:"timestamp"`
}

func newErrorResponse(code, msg string) ErrorResponse {
	return ErrorResponse{Error: code, Message: msg, Timestamp: time.Now().UnixMilli()}
}

// ErrorHandler is the outermost error boundary of the app. Pipeline failures
// keep their kind; anything unclassified becomes INTERNAL_ERROR with a generic
// message while the detail goes to the log only.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		logging.Warn("Invalid request", "path", c.Path(), "message", reqErr.Message)
		body := newErrorResponse(string(domain.KindValidation), reqErr.Message)
		body.FieldErrors = reqErr.Fields
		return c.Status(fiber.StatusBadRequest).JSON(body)
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		logging.Warn("Request failed", "path", c.Path(), "status", fe.Code, "message", fe.Message)
		return c.Status(fe.Code).JSON(newErrorResponse(StatusCode(fe.Code), fe.Message))
	}

	de := domain.Classify(err)
	status := de.Kind.HTTPStatus()
	if status >= fiber.StatusInternalServerError {
		logging.Error("Request failed", "path", c.Path(), "status", status, "code", de.Code(), "error", err)
	} else {
		logging.Warn("Request rejected", "path", c.Path(), "status", status, "code", de.Code(), "message", de.Message)
	}
	return c.Status(status).JSON(newErrorResponse(de.Code(), de.Message))
}

// StatusCode turns an HTTP status into an upper snake case error code,
// e.g. 413 -> REQUEST_ENTITY_TOO_LARGE.
func StatusCode(status int) string {
	text := utils.StatusMessage(status)
	if text == "" {
		return string(domain.KindInternal)
	}
	var b strings.Builder
	underscore := false
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
