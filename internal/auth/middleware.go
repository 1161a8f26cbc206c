package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	AdminSecretHeader = "X-Admin-Secret"
	SubjectKey        = "admin_subject"
)

// AdminMiddleware admits requests carrying the shared secret, either in
// X-Admin-Secret or as a bearer value, or a bearer admin JWT.
func (s *Service) AdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if s.secretMatches(req.Header.Get(AdminSecretHeader)) {
			c.Set(SubjectKey, "shared-secret")
			return next(c)
		}

		authHeader := req.Header.Get(echo.HeaderAuthorization)
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			bearer := strings.TrimSpace(authHeader[7:])
			if s.secretMatches(bearer) {
				c.Set(SubjectKey, "shared-secret")
				return next(c)
			}
			claims, err := s.ParseAdminToken(bearer)
			if err == nil {
				c.Set(SubjectKey, claims.Subject)
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func (s *Service) secretMatches(candidate string) bool {
	if candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.adminSecret)) == 1
}

// Subject returns who the admin middleware authenticated, or "".
func Subject(c echo.Context) string {
	v, _ := c.Get(SubjectKey).(string)
	return v
}
