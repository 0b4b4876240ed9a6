package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vidhub/internal/auth"
	"vidhub/internal/cache"
	"vidhub/internal/models"
	"vidhub/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testHasher = auth.NewBcryptHasher(bcrypt.MinCost)

// memoryUserRepo is an in-memory UserRepository with optional failure hooks.
type memoryUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User

	createFn             func(ctx context.Context, u repository.NewUser) (*models.User, error)
	updateRefreshTokenFn func(ctx context.Context, id uint, token *string) error
	findByIDFn           func(ctx context.Context, id uint) (*models.User, error)

	refreshWrites int
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[uint]*models.User{}}
}

func (r *memoryUserRepo) FindByUsernameOrEmail(_ context.Context, username, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	username = models.NormalizeIdentifier(username)
	email = models.NormalizeIdentifier(email)
	for _, u := range r.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	if r.findByIDFn != nil {
		return r.findByIDFn(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, models.NewNotFoundError("User", id)
	}
	c := *u
	return &c, nil
}

func (r *memoryUserRepo) FindPublicByID(ctx context.Context, id uint) (*models.User, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Sanitized(), nil
}

func (r *memoryUserRepo) Create(ctx context.Context, in repository.NewUser) (*models.User, error) {
	if r.createFn != nil {
		return r.createFn(ctx, in)
	}
	hash, err := testHasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u := &models.User{
		ID:         r.nextID,
		Username:   models.NormalizeIdentifier(in.Username),
		Email:      models.NormalizeIdentifier(in.Email),
		FullName:   in.FullName,
		Avatar:     in.Avatar,
		CoverImage: in.CoverImage,
		Password:   hash,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	r.users[u.ID] = u
	c := *u
	return &c, nil
}

func (r *memoryUserRepo) UpdateRefreshToken(ctx context.Context, id uint, token *string) error {
	if r.updateRefreshTokenFn != nil {
		return r.updateRefreshTokenFn(ctx, id, token)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return models.NewNotFoundError("User", id)
	}
	r.refreshWrites++
	if token == nil {
		u.RefreshToken = nil
		return nil
	}
	v := *token
	u.RefreshToken = &v
	return nil
}

func (r *memoryUserRepo) UpdatePassword(_ context.Context, id uint, plaintext string) error {
	hash, err := testHasher.Hash(plaintext)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return models.NewNotFoundError("User", id)
	}
	u.Password = hash
	return nil
}

func (r *memoryUserRepo) UpdateAccount(_ context.Context, id uint, fullName, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.users {
		if other.ID != id && other.Email == email {
			return nil, models.NewConflictError("Email is already in use")
		}
	}
	u, ok := r.users[id]
	if !ok {
		return nil, models.NewNotFoundError("User", id)
	}
	u.FullName = fullName
	u.Email = email
	return u.Sanitized(), nil
}

func (r *memoryUserRepo) storedRefresh(id uint) *string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok && u.RefreshToken != nil {
		v := *u.RefreshToken
		return &v
	}
	return nil
}

type stubUploader struct {
	mu      sync.Mutex
	calls   []string
	deleted []string
	err     error
	errOn   string
}

func (u *stubUploader) Upload(_ context.Context, path string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, path)
	if u.err != nil && (u.errOn == "" || u.errOn == path) {
		return "", u.err
	}
	return "http://media.local/" + filepath.Base(path), nil
}

func (u *stubUploader) Delete(_ context.Context, url string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, url)
	return nil
}

type fixture struct {
	svc      *AuthService
	repo     *memoryUserRepo
	tokens   *auth.TokenManager
	uploader *stubUploader
	redis    *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  "service-access-secret-for-tests-only",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "service-refresh-secret-for-tests-only",
		RefreshTTL:    7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := newMemoryUserRepo()
	up := &stubUploader{}
	return &fixture{
		svc:      NewAuthService(repo, tokens, testHasher, up, cache.NewDenylist(rdb)),
		repo:     repo,
		tokens:   tokens,
		uploader: up,
		redis:    mr,
	}
}

func writePNG(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	p := filepath.Join(t.TempDir(), "img.png")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o600))
	return p
}

func (f *fixture) register(t *testing.T, username, email, password string) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		FullName:   "Test User",
		Email:      email,
		Username:   username,
		Password:   password,
		AvatarPath: writePNG(t),
	})
	require.NoError(t, err)
	return u
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, models.IsCode(err, code), "expected %s, got %v", code, err)
}
