package server

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"strings"

	"vidhub/internal/auth"
	"vidhub/internal/media"
	"vidhub/internal/middleware"
	"vidhub/internal/models"

	"github.com/gofiber/fiber/v2"
)

// respondErr writes err with the status its code maps to. Internal causes are
// logged here and never reach the client.
func respondErr(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, err)
}

// respond writes the success envelope.
func respond(c *fiber.Ctx, status int, data any, message string) error {
	return c.Status(status).JSON(models.NewAPIResponse(status, data, message))
}

// parseBody decodes a JSON, urlencoded or multipart body into dst. An empty
// body leaves dst untouched.
func parseBody(c *fiber.Ctx, dst any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dst); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// formFile returns the first file uploaded under field, or nil when the
// request is not multipart or carries no such file.
func formFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil || len(form.File[field]) == 0 {
		return nil
	}
	return form.File[field][0]
}

// stage saves an uploaded file to the staging directory. A nil header yields
// an empty path.
func (s *Server) stage(fh *multipart.FileHeader, field string) (string, error) {
	if fh == nil {
		return "", nil
	}
	maxBytes := int64(s.config.MaxUploadSizeMB) * 1024 * 1024
	path, err := media.Stage(fh, s.config.UploadTempDir, maxBytes)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) {
			return "", models.NewValidationError(field + " exceeds the maximum upload size")
		}
		return "", models.NewInternalError(err)
	}
	return path, nil
}

// currentUser returns the user resolved by AuthRequired.
func currentUser(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals("user").(*models.User)
	return user, ok && user != nil
}

// currentClaims returns the access token claims resolved by AuthRequired.
func currentClaims(c *fiber.Ctx) *auth.AccessClaims {
	claims, _ := c.Locals("claims").(*auth.AccessClaims)
	return claims
}
