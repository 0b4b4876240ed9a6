package server

import (
	"vidhub/internal/media"
	"vidhub/internal/middleware"
	"vidhub/internal/models"
	"vidhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	FullName string `json:"fullname" form:"fullname"`
	Email    string `json:"email" form:"email"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

// Register handles POST /api/v1/users/register
// @Summary Register a user
// @Description Create an account with an avatar and an optional cover image
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Param fullname formData string true "Full name"
// @Param email formData string true "Email"
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Param avatar formData file true "Avatar file"
// @Param coverImage formData file false "Cover image"
// @Success 201 {object} models.APIResponse{data=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return respondErr(c, err)
	}

	// Not multipart means no files; the service reports the missing avatar.
	form, _ := c.MultipartForm()

	var staged []string
	defer func() { media.Cleanup(staged...) }()

	avatarPath, err := s.stage(formFile(form, "avatar"), "avatar")
	if err != nil {
		return respondErr(c, err)
	}
	staged = append(staged, avatarPath)

	coverPath, err := s.stage(formFile(form, "coverImage"), "coverImage")
	if err != nil {
		return respondErr(c, err)
	}
	staged = append(staged, coverPath)

	user, err := s.authService.Register(c.UserContext(), service.RegisterInput{
		FullName:       req.FullName,
		Email:          req.Email,
		Username:       req.Username,
		Password:       req.Password,
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		return respondErr(c, err)
	}

	return respond(c, fiber.StatusCreated, user, "User registered successfully")
}

// Login handles POST /api/v1/users/login
// @Summary Log in
// @Description Verify credentials, start a session and set the token cookies
// @Tags users
// @Accept json,x-www-form-urlencoded,multipart/form-data
// @Produce json
// @Param request body object{username=string,email=string,password=string} true "Credentials, username or email"
// @Success 200 {object} models.APIResponse{data=models.LoginResult}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return respondErr(c, err)
	}

	result, err := s.authService.Login(c.UserContext(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondErr(c, err)
	}

	s.setAuthCookies(c, result.AccessToken, result.RefreshToken)
	return respond(c, fiber.StatusOK, result, "User logged in successfully")
}

// Logout handles POST /api/v1/users/logout
// @Summary Log out
// @Description End the session, revoke the access token and clear the cookies
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /users/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return respondErr(c, models.NewUnauthorizedError(service.MsgUnauthorized))
	}

	if err := s.authService.Logout(c.UserContext(), user.ID, currentClaims(c)); err != nil {
		return respondErr(c, err)
	}

	clearAuthCookies(c)
	return respond(c, fiber.StatusOK, nil, "User logged out successfully")
}

// RefreshToken handles POST /api/v1/users/refresh-token
// @Summary Rotate the session tokens
// @Description Exchange the current refresh token (cookie or body) for a new pair
// @Tags users
// @Accept json
// @Produce json
// @Param request body object{refreshToken=string} false "Refresh token when no cookie is sent"
// @Success 200 {object} models.APIResponse{data=models.TokenPair}
// @Failure 401 {object} models.ErrorResponse
// @Router /users/refresh-token [post]
func (s *Server) RefreshToken(c *fiber.Ctx) error {
	token := c.Cookies(refreshTokenCookie)
	if token == "" {
		// An unreadable body counts as a missing token.
		var req refreshRequest
		if err := parseBody(c, &req); err == nil {
			token = req.RefreshToken
		}
	}

	pair, err := s.authService.Refresh(c.UserContext(), token)
	if err != nil {
		return respondErr(c, err)
	}

	s.setAuthCookies(c, pair.AccessToken, pair.RefreshToken)
	return respond(c, fiber.StatusOK, pair, "Access token refreshed")
}

// AuthRequired resolves the access token from the accessToken cookie or the
// Authorization header and loads the user into locals.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(accessTokenCookie)
		if token == "" {
			token = bearerToken(c.Get(fiber.HeaderAuthorization))
		}

		user, claims, err := s.authService.Authenticate(c.UserContext(), token)
		if err != nil {
			return respondErr(c, err)
		}

		c.Locals("user", user)
		c.Locals("userID", user.ID)
		c.Locals("claims", claims)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), user.ID))

		return c.Next()
	}
}
