package server

import (
	"vidhub/internal/models"
	"vidhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" form:"oldPassword"`
	NewPassword string `json:"newPassword" form:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullname" form:"fullname"`
	Email    string `json:"email" form:"email"`
}

// ChangePassword handles POST /api/v1/users/change-password
// @Summary Change password
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{oldPassword=string,newPassword=string} true "Current and new password"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /users/change-password [post]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return respondErr(c, models.NewUnauthorizedError(service.MsgUnauthorized))
	}

	var req changePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return respondErr(c, err)
	}

	if err := s.authService.ChangePassword(c.UserContext(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, nil, "Password changed successfully")
}

// CurrentUser handles GET /api/v1/users/current-user
// @Summary Get the authenticated user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse{data=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Router /users/current-user [get]
func (s *Server) CurrentUser(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return respondErr(c, models.NewUnauthorizedError(service.MsgUnauthorized))
	}
	return respond(c, fiber.StatusOK, user, "Current user fetched successfully")
}

// UpdateAccount handles PATCH /api/v1/users/update-account
// @Summary Update full name and email
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{fullname=string,email=string} true "Account details"
// @Success 200 {object} models.APIResponse{data=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/update-account [patch]
func (s *Server) UpdateAccount(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return respondErr(c, models.NewUnauthorizedError(service.MsgUnauthorized))
	}

	var req updateAccountRequest
	if err := parseBody(c, &req); err != nil {
		return respondErr(c, err)
	}

	updated, err := s.authService.UpdateAccount(c.UserContext(), user.ID, req.FullName, req.Email)
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, updated.Sanitized(), "Account details updated")
}
