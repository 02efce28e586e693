package services

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// Error classes the route boundary maps to HTTP statuses. Handlers classify
// failures locally and return a DomainError; nothing retries internally.
type ErrorCode string

const (
	CodeNotFound     ErrorCode = "not_found"     // entity id unresolved → 404
	CodeInvalidModel ErrorCode = "invalid_model" // operation doesn't match the bounty's claiming model → 400
	CodeBadRequest   ErrorCode = "bad_request"   // malformed/missing input, unsupported action → 400
	CodeConflict     ErrorCode = "conflict"      // state precondition violated → 409
	CodeForbidden    ErrorCode = "forbidden"     // actor identity mismatch → 403
	CodeServer       ErrorCode = "server"        // invariant violated → 500
)

type DomainError struct {
	Code    ErrorCode
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func notFound(msg string) *DomainError     { return &DomainError{Code: CodeNotFound, Message: msg} }
func invalidModel(msg string) *DomainError { return &DomainError{Code: CodeInvalidModel, Message: msg} }
func badRequest(msg string) *DomainError   { return &DomainError{Code: CodeBadRequest, Message: msg} }
func conflict(msg string) *DomainError     { return &DomainError{Code: CodeConflict, Message: msg} }
func forbidden(msg string) *DomainError    { return &DomainError{Code: CodeForbidden, Message: msg} }
func serverError(msg string) *DomainError  { return &DomainError{Code: CodeServer, Message: msg} }

func httpStatus(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeInvalidModel, CodeBadRequest:
		return fiber.StatusBadRequest
	case CodeConflict:
		return fiber.StatusConflict
	case CodeForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError maps a handler failure to the HTTP contract. Untyped errors
// surface as a generic 500 — internal detail never reaches the client.
func respondError(c *fiber.Ctx, err error) error {
	var de *DomainError
	if errors.As(err, &de) {
		return c.Status(httpStatus(de.Code)).JSON(fiber.Map{"error": de.Message})
	}
	log.Printf("❌ [API] unexpected error on %s: %v", c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
}

func respondData(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}
