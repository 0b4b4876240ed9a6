package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// sessionCookie is HTTP-only, secure and same-site strict, expiring with its token.
func sessionCookie(name, value string, ttl time.Duration) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteStrictMode,
	}
}

func (s *Server) setAuthCookies(c *fiber.Ctx, accessToken, refreshToken string) {
	c.Cookie(sessionCookie(accessTokenCookie, accessToken, s.tokens.AccessTTL()))
	c.Cookie(sessionCookie(refreshTokenCookie, refreshToken, s.tokens.RefreshTTL()))
}

func clearAuthCookies(c *fiber.Ctx) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		cookie := sessionCookie(name, "", 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		c.Cookie(cookie)
	}
}
