// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"vidhub/internal/auth"
	"vidhub/internal/cache"
	"vidhub/internal/models"
	"vidhub/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const usersTable = "users"

// publicColumns is the authenticator's projection: no password, no refresh token.
var publicColumns = []string{"id", "username", "email", "full_name", "avatar", "cover_image", "created_at", "updated_at"}

// NewUser carries the fields of a registration. Password is plaintext and is
// hashed by Create before it reaches the database.
type NewUser struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     string
	CoverImage string
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindPublicByID(ctx context.Context, id uint) (*models.User, error)
	Create(ctx context.Context, u NewUser) (*models.User, error)
	UpdateRefreshToken(ctx context.Context, id uint, token *string) error
	UpdatePassword(ctx context.Context, id uint, plaintext string) error
	UpdateAccount(ctx context.Context, id uint, fullName, email string) (*models.User, error)
}

type userRepository struct {
	db     *gorm.DB
	rdb    *redis.Client
	hasher auth.PasswordHasher
	log    *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation. rdb may be nil,
// in which case FindPublicByID always reads through to the database.
func NewUserRepository(db *gorm.DB, rdb *redis.Client, hasher auth.PasswordHasher) UserRepository {
	return &userRepository{
		db:     db,
		rdb:    rdb,
		hasher: hasher,
		log:    observability.NewRepoLogger(usersTable),
	}
}

func (r *userRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	defer observability.TrackQuery("find_by_identifier", usersTable)()

	username = models.NormalizeIdentifier(username)
	email = models.NormalizeIdentifier(email)
	if username == "" && email == "" {
		return nil, nil
	}

	q := r.db.WithContext(ctx).Model(&models.User{})
	switch {
	case username != "" && email != "":
		q = q.Where("username = ? OR email = ?", username, email)
	case username != "":
		q = q.Where("username = ?", username)
	default:
		q = q.Where("email = ?", email)
	}

	var user models.User
	if err := q.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.LogError(ctx, err, "find_by_identifier")
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	defer observability.TrackQuery("find_by_id", usersTable)()

	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		r.log.LogError(ctx, err, "find_by_id")
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) FindPublicByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, r.rdb, cache.UserKey(id), &user, cache.UserTTL, func() error {
		defer observability.TrackQuery("find_public_by_id", usersTable)()
		if err := r.db.WithContext(ctx).Select(publicColumns).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			r.log.LogError(ctx, err, "find_public_by_id")
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, u NewUser) (*models.User, error) {
	defer observability.TrackQuery("create", usersTable)()

	hash, err := r.hashPassword(u.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:   models.NormalizeIdentifier(u.Username),
		Email:      models.NormalizeIdentifier(u.Email),
		FullName:   strings.TrimSpace(u.FullName),
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		Password:   hash,
	}

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, models.NewConflictError("User with email or username already exists")
		}
		r.log.LogError(ctx, err, "create")
		return nil, models.NewInternalError(err)
	}

	r.log.LogWrite(ctx, "create", slog.Uint64("user_id", uint64(user.ID)))
	return user, nil
}

func (r *userRepository) UpdateRefreshToken(ctx context.Context, id uint, token *string) error {
	defer observability.TrackQuery("update_refresh_token", usersTable)()

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("refresh_token", token)
	if err := res.Error; err != nil {
		r.log.LogError(ctx, err, "update_refresh_token")
		return models.NewInternalError(err)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}

	cache.Invalidate(ctx, r.rdb, cache.UserKey(id))
	r.log.LogWrite(ctx, "update_refresh_token", slog.Uint64("user_id", uint64(id)), slog.Bool("cleared", token == nil))
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uint, plaintext string) error {
	defer observability.TrackQuery("update_password", usersTable)()

	hash, err := r.hashPassword(plaintext)
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hash)
	if err := res.Error; err != nil {
		r.log.LogError(ctx, err, "update_password")
		return models.NewInternalError(err)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}

	cache.Invalidate(ctx, r.rdb, cache.UserKey(id))
	r.log.LogWrite(ctx, "update_password", slog.Uint64("user_id", uint64(id)))
	return nil
}

func (r *userRepository) UpdateAccount(ctx context.Context, id uint, fullName, email string) (*models.User, error) {
	defer observability.TrackQuery("update_account", usersTable)()

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"full_name": strings.TrimSpace(fullName),
		"email":     models.NormalizeIdentifier(email),
	})
	if err := res.Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, models.NewConflictError("Email is already in use")
		}
		r.log.LogError(ctx, err, "update_account")
		return nil, models.NewInternalError(err)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("User", id)
	}

	cache.Invalidate(ctx, r.rdb, cache.UserKey(id))
	r.log.LogWrite(ctx, "update_account", slog.Uint64("user_id", uint64(id)))

	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}

// hashPassword reports bcrypt's input limit as a client error.
func (r *userRepository) hashPassword(plaintext string) (string, error) {
	hash, err := r.hasher.Hash(plaintext)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", models.NewValidationError("Password must not exceed 72 bytes")
	}
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return hash, nil
}
