package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/modules/auth"
)

// statusFor maps an error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return fiber.StatusUnauthorized, "invalid_credentials"
	}
	switch kind := domain.KindOf(err); kind {
	case domain.KindValidation:
		return fiber.StatusBadRequest, string(kind)
	case domain.KindNotAMember:
		return fiber.StatusForbidden, string(kind)
	case domain.KindNotFound:
		return fiber.StatusNotFound, string(kind)
	case domain.KindAlreadyBound:
		return fiber.StatusConflict, string(kind)
	case domain.KindAttachmentUnresolved:
		return fiber.StatusUnprocessableEntity, string(kind)
	case domain.KindPersistenceFailed:
		return fiber.StatusServiceUnavailable, string(kind)
	}
	return fiber.StatusInternalServerError, "internal_error"
}

// errorMessage returns the client-facing message for err. Unclassified
// errors are not echoed back.
func errorMessage(err error) string {
	if e, ok := domain.AsError(err); ok {
		if e.Message != "" {
			return e.Message
		}
		return string(e.Kind)
	}
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return "Invalid email or password"
	}
	return "Internal server error"
}

// respondError writes err as an ErrorResponse.
func (m *APIModule) respondError(c *fiber.Ctx, err error) error {
	status, code := statusFor(err)
	if status == fiber.StatusInternalServerError {
		m.logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:   code,
		Message: errorMessage(err),
	})
}

// parseAndValidate decodes the body into req and runs its validate tags.
func (m *APIModule) parseAndValidate(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return domain.Validation("invalid request body")
	}
	if err := m.validate.Struct(req); err != nil {
		return domain.Validation("%s", formatValidationErrors(err))
	}
	return nil
}

// formatValidationErrors renders validator errors as one readable line.
func formatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required", "required_if", "required_without":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// customErrorHandler handles errors that escape the route handlers.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   strings.ReplaceAll(strings.ToLower(utils.StatusMessage(code)), " ", "_"),
		Message: message,
	})
}
