package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/restausimplon/api/internal/models"
	"github.com/restausimplon/api/internal/tokens"
)

const userContextKey = "currentUser"

// Authenticator resolves a bearer access token into the user it names.
type Authenticator struct {
	DB        *gorm.DB
	JWTSecret []byte
}

// Middleware rejects the request with 401 unless a valid, non-expired
// access token resolves to an existing user.
func (a *Authenticator) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		claims, err := tokens.Parse(raw, a.JWTSecret)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		if claims.Type != tokens.TypeAccess {
			return echo.NewHTTPError(http.StatusUnauthorized, "not an access token")
		}

		var user models.User
		if err := a.DB.WithContext(c.Request().Context()).
			Where("email = ?", claims.Subject).First(&user).Error; err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unknown subject")
		}

		c.Set(userContextKey, &user)
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// CurrentUser returns the caller stored by Middleware, or nil.
func CurrentUser(c echo.Context) *models.User {
	if u, ok := c.Get(userContextKey).(*models.User); ok {
		return u
	}
	return nil
}

// SetCurrentUser injects a caller directly, used by handler tests.
func SetCurrentUser(c echo.Context, u *models.User) {
	c.Set(userContextKey, u)
}
