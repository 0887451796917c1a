// Package nethttp holds the thin HTTP plumbing shared by the two endpoints
// the core owns directly (the scheduler tick entry point and the OAuth
// callback, §6). Everything else — the full CRUD REST API — is an external
// collaborator and lives outside this module.
package nethttp

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/banktrail/ingestor/internal/platform/apperr"
)

// ResponseError is the JSON envelope returned for any mapped error.
type ResponseError struct {
	Code    string `json:"code,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

func OK(c *fiber.Ctx, payload any) error {
	return c.Status(fiber.StatusOK).JSON(payload)
}

func Created(c *fiber.Ctx, payload any) error {
	return c.Status(fiber.StatusCreated).JSON(payload)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func NotFound(c *fiber.Ctx, code, title, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(ResponseError{Code: code, Title: title, Message: message})
}

func Conflict(c *fiber.Ctx, code, title, message string) error {
	return c.Status(fiber.StatusConflict).JSON(ResponseError{Code: code, Title: title, Message: message})
}

func BadRequest(c *fiber.Ctx, code, title, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ResponseError{Code: code, Title: title, Message: message})
}

func Unauthorized(c *fiber.Ctx, code, title, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ResponseError{Code: code, Title: title, Message: message})
}

func Forbidden(c *fiber.Ctx, code, title, message string) error {
	return c.Status(fiber.StatusForbidden).JSON(ResponseError{Code: code, Title: title, Message: message})
}

func InternalServerError(c *fiber.Ctx, code, title, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(ResponseError{Code: code, Title: title, Message: message})
}

// WithError maps the apperr taxonomy onto HTTP responses. Per §7, per-tick
// errors are caught here and never propagate to the caller beyond a status
// code.
func WithError(c *fiber.Ctx, err error) error {
	var notFound apperr.EntityNotFoundError
	if errors.As(err, &notFound) {
		return NotFound(c, notFound.Code, notFound.Title, notFound.Error())
	}

	var conflict apperr.EntityConflictError
	if errors.As(err, &conflict) {
		return Conflict(c, conflict.Code, conflict.Title, conflict.Error())
	}

	var validation apperr.ValidationError
	if errors.As(err, &validation) {
		return BadRequest(c, validation.Code, validation.Title, validation.Error())
	}

	var unauthorized apperr.UnauthorizedError
	if errors.As(err, &unauthorized) {
		return Unauthorized(c, unauthorized.Code, unauthorized.Title, unauthorized.Error())
	}

	var authFailure apperr.AuthFailure
	if errors.As(err, &authFailure) {
		return Unauthorized(c, "0041", "Authorization Failed", authFailure.Error())
	}

	var forbidden apperr.ForbiddenError
	if errors.As(err, &forbidden) {
		return Forbidden(c, forbidden.Code, forbidden.Title, forbidden.Error())
	}

	var referenced apperr.ReferencedEntityError
	if errors.As(err, &referenced) {
		return Conflict(c, "0040", "Entity Referenced", referenced.Error())
	}

	return InternalServerError(c, "0001", "Internal Server Error", "An unexpected error occurred.")
}

// Pagination mirrors the teacher's mpostgres.Pagination response envelope.
type Pagination struct {
	Items any `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (p *Pagination) SetItems(items any) { p.Items = items }
