package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"vidhub/internal/models"
	"vidhub/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authed(req *http.Request, accessToken string) *http.Request {
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken)
	return req
}

func TestChangePassword(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantMsg    string
	}{
		{"Missing fields", map[string]string{"oldPassword": "secret123"}, fiber.StatusBadRequest, service.MsgPasswordsRequired},
		{"Wrong old password", map[string]string{"oldPassword": "nope12345", "newPassword": "another123"}, fiber.StatusBadRequest, service.MsgInvalidOldPassword},
		{"Weak new password", map[string]string{"oldPassword": "secret123", "newPassword": "short"}, fiber.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.registerUser(t, "ab", "a@x.com")
			session := e.login(t, "ab", "secret123")
			before := e.storedUser(t, "ab").Password

			resp, env := e.do(t, authed(jsonRequest(t, http.MethodPost, "/api/v1/users/change-password", tt.body), session.AccessToken))
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, env.Message)
			}
			assert.Equal(t, before, e.storedUser(t, "ab").Password)
		})
	}

	t.Run("Success", func(t *testing.T) {
		e := newTestEnv(t)
		e.registerUser(t, "ab", "a@x.com")
		session := e.login(t, "ab", "secret123")

		resp, env := e.do(t, authed(jsonRequest(t, http.MethodPost, "/api/v1/users/change-password",
			map[string]string{"oldPassword": "secret123", "newPassword": "another123"}), session.AccessToken))
		require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Message)

		resp, _ = e.do(t, jsonRequest(t, http.MethodPost, "/api/v1/users/login",
			map[string]string{"username": "ab", "password": "secret123"}))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

		e.login(t, "ab", "another123")
	})

	t.Run("Requires authentication", func(t *testing.T) {
		e := newTestEnv(t)
		resp, _ := e.do(t, jsonRequest(t, http.MethodPost, "/api/v1/users/change-password",
			map[string]string{"oldPassword": "a", "newPassword": "b"}))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestCurrentUser(t *testing.T) {
	e := newTestEnv(t)
	e.registerUser(t, "ab", "a@x.com")
	session := e.login(t, "ab", "secret123")

	resp, env := e.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil), session.AccessToken))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Message)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "ab", data["username"])
	assert.NotContains(t, data, "password")
	assert.NotContains(t, data, "refreshToken")
}

func TestUpdateAccount(t *testing.T) {
	t.Run("Updates and refreshes the cached user", func(t *testing.T) {
		e := newTestEnv(t)
		e.registerUser(t, "ab", "a@x.com")
		session := e.login(t, "ab", "secret123")

		// Warm the user cache.
		resp, _ := e.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil), session.AccessToken))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		resp, env := e.do(t, authed(jsonRequest(t, http.MethodPatch, "/api/v1/users/update-account",
			map[string]string{"fullname": "New Name", "email": "New@X.com"}), session.AccessToken))
		require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Message)

		var updated models.User
		require.NoError(t, json.Unmarshal(env.Data, &updated))
		assert.Equal(t, "New Name", updated.FullName)
		assert.Equal(t, "new@x.com", updated.Email)

		resp, env = e.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil), session.AccessToken))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var current models.User
		require.NoError(t, json.Unmarshal(env.Data, &current))
		assert.Equal(t, "new@x.com", current.Email)
	})

	t.Run("Email taken by another user", func(t *testing.T) {
		e := newTestEnv(t)
		e.registerUser(t, "ab", "a@x.com")
		e.registerUser(t, "cd", "c@x.com")
		session := e.login(t, "ab", "secret123")

		resp, env := e.do(t, authed(jsonRequest(t, http.MethodPatch, "/api/v1/users/update-account",
			map[string]string{"fullname": "A B", "email": "c@x.com"}), session.AccessToken))
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
		assert.False(t, env.Success)
	})

	t.Run("Missing fields", func(t *testing.T) {
		e := newTestEnv(t)
		e.registerUser(t, "ab", "a@x.com")
		session := e.login(t, "ab", "secret123")

		resp, env := e.do(t, authed(jsonRequest(t, http.MethodPatch, "/api/v1/users/update-account",
			map[string]string{"fullname": "A B"}), session.AccessToken))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, service.MsgFullNameEmailMissing, env.Message)
	})
}
