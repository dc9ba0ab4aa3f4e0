package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/restausimplon/api/internal/events"
	"github.com/restausimplon/api/internal/hash"
	"github.com/restausimplon/api/internal/logging"
	authmw "github.com/restausimplon/api/internal/middleware/auth"
	"github.com/restausimplon/api/internal/models"
	"github.com/restausimplon/api/internal/tokens"
)

type AuthHandler struct {
	DB         *gorm.DB
	JWTSecret  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Producer   *events.Producer
}

// Token authenticates with form credentials and issues an access and a
// refresh token. Unknown email and wrong password return the same detail
// so accounts cannot be enumerated.
func (h *AuthHandler) Token(c echo.Context) error {
	var req struct {
		Username string `form:"username" json:"username"`
		Password string `form:"password" json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	l := logging.FromContext(c.Request().Context()).With("handler", "auth.token")

	var user models.User
	if err := h.DB.WithContext(c.Request().Context()).
		Where("email = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login failed", "reason", "unknown email")
			return echo.NewHTTPError(http.StatusBadRequest, "incorrect email or password")
		}
		return serviceError(err)
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login failed", "reason", "wrong password", "user_id", user.ID)
		return echo.NewHTTPError(http.StatusBadRequest, "incorrect email or password")
	}

	access, err := tokens.SignAccess(user.Email, user.Role, h.JWTSecret, h.AccessTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create access token")
	}
	refresh, err := tokens.SignRefresh(user.Email, user.Role, h.JWTSecret, h.RefreshTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create refresh token")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
	})
}

// RefreshToken exchanges a valid refresh token for a new access token.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	claims, err := tokens.Parse(req.RefreshToken, h.JWTSecret)
	if err != nil || claims.Type != tokens.TypeRefresh {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token expired or invalid")
	}

	var user models.User
	if err := h.DB.WithContext(c.Request().Context()).
		Where("email = ?", claims.Subject).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token expired or invalid")
	}

	access, err := tokens.SignAccess(user.Email, user.Role, h.JWTSecret, h.AccessTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create access token")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": access,
		"token_type":   "bearer",
	})
}

// Register creates a client account. The role is always forced to client
// regardless of input.
func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		FirstName   string  `json:"first_name"`
		LastName    string  `json:"last_name"`
		Email       string  `json:"email"`
		Password    string  `json:"password"`
		AddressUser *string `json:"address_user"`
		Phone       *string `json:"phone"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.FirstName == "" || req.LastName == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "first_name, last_name and password are required")
	}
	if !validEmail(req.Email) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid email address")
	}
	if req.Phone != nil && !validPhone(*req.Phone) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "phone must be a valid french number")
	}

	var existing models.User
	err := h.DB.WithContext(c.Request().Context()).
		Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "this email is already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return serviceError(err)
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not hash password")
	}

	user := models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Role:         models.RoleClient,
		PasswordHash: pwHash,
		AddressUser:  req.AddressUser,
		Phone:        req.Phone,
	}
	if err := h.DB.WithContext(c.Request().Context()).Create(&user).Error; err != nil {
		return serviceError(err)
	}

	publish(c, h.Producer, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]any{
		"type":    "user_registered",
		"user_id": user.ID,
		"email":   user.Email,
	})

	return c.JSON(http.StatusCreated, user)
}

// Me returns the authenticated caller.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, authmw.CurrentUser(c))
}
