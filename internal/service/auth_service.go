// Package service implements the account session workflows.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"vidhub/internal/auth"
	"vidhub/internal/cache"
	"vidhub/internal/media"
	"vidhub/internal/middleware"
	"vidhub/internal/models"
	"vidhub/internal/observability"
	"vidhub/internal/repository"
	"vidhub/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const component = "AuthService"

// User-facing messages shared with the HTTP layer and tests.
const (
	MsgUnauthorized         = "Unauthorized request"
	MsgAccessTokenExpired   = "Access token expired"
	MsgInvalidAccessToken   = "Invalid access token"
	MsgTokenRevoked         = "Token has been revoked"
	MsgInvalidRefreshToken  = "Invalid refresh token"
	MsgRefreshTokenReused   = "Refresh token is expired or used"
	MsgAllFieldsRequired    = "All fields are required"
	MsgUserExists           = "User with email or username already exists"
	MsgAvatarRequired       = "Avatar file is required"
	MsgAvatarUploadFailed   = "Avatar upload failed"
	MsgIdentifierRequired   = "Username or email is required"
	MsgPasswordRequired     = "Password is required"
	MsgUserNotFound         = "User does not exist"
	MsgInvalidCredentials   = "Invalid user credentials"
	MsgPasswordsRequired    = "Old and new password are required"
	MsgInvalidOldPassword   = "Invalid old password"
	MsgFullNameEmailMissing = "Full name and email are required"
)

// AuthService issues, verifies and rotates session tokens.
type AuthService struct {
	users    repository.UserRepository
	tokens   *auth.TokenManager
	hasher   auth.PasswordHasher
	uploader media.Uploader
	denylist *cache.Denylist
}

// NewAuthService wires the service. denylist may be disabled (nil client).
func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, hasher auth.PasswordHasher, uploader media.Uploader, denylist *cache.Denylist) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		uploader: uploader,
		denylist: denylist,
	}
}

// RegisterInput carries registration fields. Image paths point at staged files.
type RegisterInput struct {
	FullName       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// LoginInput accepts either identifier.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// Register validates input, uploads images and creates the user.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (user *models.User, err error) {
	ctx, span := observability.StartSpan(ctx, component, "Register")
	defer func() {
		observability.EndSpan(span, err)
		observability.RecordAuthEvent("register", err)
	}()

	fullName := strings.TrimSpace(in.FullName)
	email := models.NormalizeIdentifier(in.Email)
	username := models.NormalizeIdentifier(in.Username)
	if fullName == "" || email == "" || username == "" || strings.TrimSpace(in.Password) == "" {
		return nil, models.NewValidationError(MsgAllFieldsRequired)
	}

	existing, err := s.users.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError(MsgUserExists)
	}

	if in.AvatarPath == "" {
		return nil, models.NewValidationError(MsgAvatarRequired)
	}
	describeUpload(ctx, "avatar", in.AvatarPath)
	if in.CoverImagePath != "" {
		describeUpload(ctx, "coverImage", in.CoverImagePath)
	}

	avatarURL, err := s.uploader.Upload(ctx, in.AvatarPath)
	if err != nil || avatarURL == "" {
		return nil, &models.AppError{Code: models.CodeValidation, Message: MsgAvatarUploadFailed, Err: err}
	}

	var coverURL string
	if in.CoverImagePath != "" {
		// A failed cover upload leaves the optional field empty.
		if coverURL, err = s.uploader.Upload(ctx, in.CoverImagePath); err != nil {
			middleware.Logger.WarnContext(ctx, "cover image upload failed", slog.String("error", err.Error()))
			coverURL = ""
		}
	}

	created, err := s.users.Create(ctx, repository.NewUser{
		Username:   username,
		Email:      email,
		FullName:   fullName,
		Password:   in.Password,
		Avatar:     avatarURL,
		CoverImage: coverURL,
	})
	if err != nil {
		s.discardUploads(ctx, avatarURL, coverURL)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("user.id", int64(created.ID)))
	middleware.Logger.InfoContext(ctx, "user registered", slog.Uint64("user_id", uint64(created.ID)))
	return created.Sanitized(), nil
}

// Login verifies credentials and starts a new session, replacing any previous refresh token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (result *models.LoginResult, err error) {
	ctx, span := observability.StartSpan(ctx, component, "Login")
	defer func() {
		observability.EndSpan(span, err)
		observability.RecordAuthEvent("login", err)
	}()

	if strings.TrimSpace(in.Username) == "" && strings.TrimSpace(in.Email) == "" {
		return nil, models.NewValidationError(MsgIdentifierRequired)
	}
	if in.Password == "" {
		return nil, models.NewValidationError(MsgPasswordRequired)
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundMessage(MsgUserNotFound)
	}

	if !s.hasher.Compare(user.Password, in.Password) {
		return nil, models.NewUnauthorizedError(MsgInvalidCredentials)
	}

	pair, err := s.IssueTokens(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "user logged in", slog.Uint64("user_id", uint64(user.ID)))
	return &models.LoginResult{
		User:         user.Sanitized(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// IssueTokens signs a fresh pair for userID and persists the refresh token.
// Nothing is returned unless the write succeeded.
func (s *AuthService) IssueTokens(ctx context.Context, userID uint) (pair *models.TokenPair, err error) {
	ctx, span := observability.StartSpan(ctx, component, "IssueTokens", attribute.Int64("user.id", int64(userID)))
	defer func() { observability.EndSpan(span, err) }()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, asInternal(err)
	}

	access, err := s.tokens.IssueAccess(auth.Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	if err := s.users.UpdateRefreshToken(ctx, user.ID, &refresh); err != nil {
		return nil, asInternal(err)
	}

	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Authenticate verifies an access token and loads the sanitized user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (user *models.User, claims *auth.AccessClaims, err error) {
	if token == "" {
		return nil, nil, models.NewUnauthorizedError(MsgUnauthorized)
	}

	claims, err = s.tokens.ParseAccess(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, nil, models.NewUnauthorizedError(MsgAccessTokenExpired)
		}
		return nil, nil, models.NewUnauthorizedError(MsgInvalidAccessToken)
	}

	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "token denylist unavailable", slog.String("error", err.Error()))
	} else if revoked {
		return nil, nil, models.NewUnauthorizedError(MsgTokenRevoked)
	}

	userID, err := auth.UserID(claims.RegisteredClaims)
	if err != nil {
		return nil, nil, models.NewUnauthorizedError(MsgInvalidAccessToken)
	}

	user, err = s.users.FindPublicByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, nil, models.NewUnauthorizedError(MsgInvalidAccessToken)
		}
		return nil, nil, err
	}
	return user, claims, nil
}

// Logout clears the stored refresh token and revokes the presented access token.
func (s *AuthService) Logout(ctx context.Context, userID uint, claims *auth.AccessClaims) (err error) {
	ctx, span := observability.StartSpan(ctx, component, "Logout", attribute.Int64("user.id", int64(userID)))
	defer func() {
		observability.EndSpan(span, err)
		observability.RecordAuthEvent("logout", err)
	}()

	if err := s.users.UpdateRefreshToken(ctx, userID, nil); err != nil {
		return err
	}

	if claims != nil {
		if err := s.denylist.Revoke(ctx, claims.ID, s.tokens.RemainingTTL(claims.RegisteredClaims)); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to revoke access token", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.InfoContext(ctx, "user logged out", slog.Uint64("user_id", uint64(userID)))
	return nil
}

// Refresh rotates the session. A token other than the one currently stored is rejected.
func (s *AuthService) Refresh(ctx context.Context, token string) (pair *models.TokenPair, err error) {
	ctx, span := observability.StartSpan(ctx, component, "Refresh")
	defer func() {
		observability.EndSpan(span, err)
		observability.RecordAuthEvent("refresh", err)
	}()

	if token == "" {
		return nil, models.NewUnauthorizedError(MsgUnauthorized)
	}

	claims, err := s.tokens.ParseRefresh(token)
	if err != nil {
		return nil, models.NewUnauthorizedError(MsgInvalidRefreshToken)
	}
	userID, err := auth.UserID(claims.RegisteredClaims)
	if err != nil {
		return nil, models.NewUnauthorizedError(MsgInvalidRefreshToken)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError(MsgInvalidRefreshToken)
		}
		return nil, err
	}

	if user.RefreshToken == nil || subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(token)) != 1 {
		middleware.Logger.WarnContext(ctx, "refresh token reuse rejected", slog.Uint64("user_id", uint64(userID)))
		return nil, models.NewUnauthorizedError(MsgRefreshTokenReused)
	}

	return s.IssueTokens(ctx, user.ID)
}

// ChangePassword replaces the credential after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) (err error) {
	ctx, span := observability.StartSpan(ctx, component, "ChangePassword", attribute.Int64("user.id", int64(userID)))
	defer func() {
		observability.EndSpan(span, err)
		observability.RecordAuthEvent("change_password", err)
	}()

	if oldPassword == "" || newPassword == "" {
		return models.NewValidationError(MsgPasswordsRequired)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(user.Password, oldPassword) {
		return models.NewValidationError(MsgInvalidOldPassword)
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}

	return s.users.UpdatePassword(ctx, userID, newPassword)
}

// CurrentUser returns the sanitized record of userID.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.users.FindPublicByID(ctx, userID)
}

// UpdateAccount changes the full name and email of userID.
func (s *AuthService) UpdateAccount(ctx context.Context, userID uint, fullName, email string) (user *models.User, err error) {
	ctx, span := observability.StartSpan(ctx, component, "UpdateAccount", attribute.Int64("user.id", int64(userID)))
	defer func() { observability.EndSpan(span, err) }()

	fullName = strings.TrimSpace(fullName)
	email = models.NormalizeIdentifier(email)
	if fullName == "" || email == "" {
		return nil, models.NewValidationError(MsgFullNameEmailMissing)
	}
	if err := validation.ValidateFullName(fullName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	return s.users.UpdateAccount(ctx, userID, fullName, email)
}

// RevokeSessions clears the stored refresh token of the user identified by
// login (username or email), forcing a new login once access tokens expire.
func (s *AuthService) RevokeSessions(ctx context.Context, login string) (*models.User, error) {
	user, err := s.LookupUser(ctx, login)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateRefreshToken(ctx, user.ID, nil); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "sessions revoked by operator", slog.Uint64("user_id", uint64(user.ID)))
	return user.Sanitized(), nil
}

// LookupUser finds a user by username or email.
func (s *AuthService) LookupUser(ctx context.Context, login string) (*models.User, error) {
	login = models.NormalizeIdentifier(login)
	if login == "" {
		return nil, models.NewValidationError(MsgIdentifierRequired)
	}
	user, err := s.users.FindByUsernameOrEmail(ctx, login, login)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundMessage(MsgUserNotFound)
	}
	return user, nil
}

// discardUploads removes objects uploaded for a registration that was not stored.
func (s *AuthService) discardUploads(ctx context.Context, urls ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := s.uploader.Delete(ctx, url); err != nil {
			middleware.Logger.WarnContext(ctx, "orphaned upload left in storage",
				slog.String("url", url),
				slog.String("error", err.Error()),
			)
		}
	}
}

// describeUpload logs the staged file's image header when it has one. Any
// media type is accepted for upload.
func describeUpload(ctx context.Context, field, path string) {
	info, err := media.Inspect(path)
	if err != nil {
		middleware.Logger.DebugContext(ctx, "staged upload is not a decodable image", slog.String("field", field))
		return
	}
	middleware.Logger.DebugContext(ctx, "staged upload",
		slog.String("field", field),
		slog.String("format", info.Format),
		slog.Int("width", info.Width),
		slog.Int("height", info.Height),
	)
}

// asInternal keeps internal errors as they are and wraps everything else,
// so token issuance failures always surface as 500.
func asInternal(err error) error {
	if models.IsCode(err, models.CodeInternal) {
		return err
	}
	return models.NewInternalError(err)
}
