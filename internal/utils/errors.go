package utils

import (
	"errors"
	"strings"

	"github.com/fathima-sithara/placement-service/internal/services"
	"github.com/gofiber/fiber/v2"
)

const RequestIDKey = "request_id"

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrMissingRequiredField, fiber.StatusBadRequest, "missing_required_field"},
	{services.ErrValidation, fiber.StatusBadRequest, "validation_error"},
	{services.ErrDuplicateEmail, fiber.StatusConflict, "duplicate_email"},
	{services.ErrDuplicateRollNumber, fiber.StatusConflict, "duplicate_roll_number"},
	{services.ErrExpiredCode, fiber.StatusGone, "expired_code"},
	{services.ErrCodeMismatch, fiber.StatusBadRequest, "code_mismatch"},
	{services.ErrExpiredToken, fiber.StatusGone, "expired_token"},
	{services.ErrTokenMismatch, fiber.StatusBadRequest, "token_mismatch"},
	{services.ErrAlreadyVerified, fiber.StatusConflict, "already_verified"},
	{services.ErrInvalidTransition, fiber.StatusConflict, "invalid_transition"},
	{services.ErrInvalidCredentials, fiber.StatusUnauthorized, "invalid_credentials"},
	{services.ErrUnauthenticated, fiber.StatusUnauthorized, "unauthenticated"},
	{services.ErrEmailNotVerified, fiber.StatusForbidden, "email_not_verified"},
	{services.ErrApprovalPending, fiber.StatusForbidden, "approval_pending"},
	{services.ErrAccountRejected, fiber.StatusForbidden, "account_rejected"},
	{services.ErrForbidden, fiber.StatusForbidden, "forbidden"},
	{services.ErrAccountNotFound, fiber.StatusNotFound, "not_found"},
}

// Classify maps an error to its HTTP status, stable error code and client message.
func Classify(err error) (status int, code, message string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.code, clientMessage(err, e.err)
		}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, codeForStatus(fe.Code), fe.Message
	}
	return fiber.StatusInternalServerError, "internal_error", "internal server error"
}

// clientMessage keeps the detail of validation errors but never echoes token or
// storage internals for authentication failures.
func clientMessage(err, sentinel error) string {
	switch sentinel {
	case services.ErrUnauthenticated:
		return "missing or invalid access token"
	case services.ErrValidation, services.ErrMissingRequiredField, services.ErrInvalidTransition, services.ErrCodeMismatch:
		msg := err.Error()
		// drop wrapping prefixes added by the service layer
		if i := strings.Index(msg, sentinel.Error()); i > 0 {
			msg = msg[i:]
		}
		return msg
	}
	return sentinel.Error()
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusUnauthorized:
		return "unauthenticated"
	case fiber.StatusForbidden:
		return "forbidden"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	case fiber.StatusServiceUnavailable:
		return "unavailable"
	}
	if status >= fiber.StatusInternalServerError {
		return "internal_error"
	}
	return "error"
}
