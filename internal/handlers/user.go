package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/restausimplon/api/internal/authz"
	"github.com/restausimplon/api/internal/events"
	"github.com/restausimplon/api/internal/hash"
	authmw "github.com/restausimplon/api/internal/middleware/auth"
	"github.com/restausimplon/api/internal/models"
	"github.com/restausimplon/api/internal/service/order"
)

type UserHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

func (h *UserHandler) ListUsers(c echo.Context) error {
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.UserList, authz.Nobody); err != nil {
		return serviceError(err)
	}

	var users []models.User
	if err := h.DB.WithContext(c.Request().Context()).Order("id ASC").Find(&users).Error; err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.UserRead, id); err != nil {
		return serviceError(err)
	}

	var user models.User
	if err := h.DB.WithContext(c.Request().Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) CreateUser(c echo.Context) error {
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.UserCreate, authz.Nobody); err != nil {
		return serviceError(err)
	}

	var req struct {
		FirstName   string      `json:"first_name"`
		LastName    string      `json:"last_name"`
		Email       string      `json:"email"`
		Role        models.Role `json:"role"`
		Password    string      `json:"password"`
		AddressUser *string     `json:"address_user"`
		Phone       *string     `json:"phone"`
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
	if !req.Role.IsValid() {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, fmt.Sprintf("unknown role %q", req.Role))
	}
	if req.Phone != nil && !validPhone(*req.Phone) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "phone must be a valid french number")
	}

	var existing models.User
	err := h.DB.WithContext(c.Request().Context()).Where("email = ?", req.Email).First(&existing).Error
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
		Role:         req.Role,
		PasswordHash: pwHash,
		AddressUser:  req.AddressUser,
		Phone:        req.Phone,
	}
	if err := h.DB.WithContext(c.Request().Context()).Create(&user).Error; err != nil {
		return serviceError(err)
	}

	publish(c, h.Producer, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]any{
		"type":    "user_created",
		"user_id": user.ID,
		"email":   user.Email,
	})
	return c.JSON(http.StatusCreated, user)
}

// PatchUser applies only the supplied fields. Changing the role requires
// admin even on one's own record.
func (h *UserHandler) PatchUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.UserUpdate, id); err != nil {
		return serviceError(err)
	}

	var req struct {
		FirstName   *string      `json:"first_name"`
		LastName    *string      `json:"last_name"`
		Email       *string      `json:"email"`
		Role        *models.Role `json:"role"`
		Password    *string      `json:"password"`
		AddressUser *string      `json:"address_user"`
		Phone       *string      `json:"phone"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.Role != nil && caller.Role != models.RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "only admins may change a user's role")
	}
	if req.Role != nil && !req.Role.IsValid() {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, fmt.Sprintf("unknown role %q", *req.Role))
	}
	if req.Email != nil && !validEmail(*req.Email) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid email address")
	}
	if req.Phone != nil && !validPhone(*req.Phone) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "phone must be a valid french number")
	}

	ctx := c.Request().Context()

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return serviceError(err)
	}

	if req.Email != nil && *req.Email != user.Email {
		var other models.User
		err := h.DB.WithContext(ctx).Where("email = ? AND id <> ?", *req.Email, id).First(&other).Error
		if err == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "this email is already registered")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return serviceError(err)
		}
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.AddressUser != nil {
		user.AddressUser = req.AddressUser
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.Password != nil {
		pwHash, err := hash.HashPassword(*req.Password)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "could not hash password")
		}
		user.PasswordHash = pwHash
	}

	if err := h.DB.WithContext(ctx).Save(&user).Error; err != nil {
		return serviceError(err)
	}

	publish(c, h.Producer, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]any{
		"type":    "user_updated",
		"user_id": user.ID,
	})
	return c.JSON(http.StatusOK, user)
}

// DeleteUser removes the user and cascades to all their orders.
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.UserDelete, id); err != nil {
		return serviceError(err)
	}

	ctx := c.Request().Context()
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d", order.ErrNotFound, id)
			}
			return err
		}
		if err := order.PurgeUserOrders(tx, id); err != nil {
			return err
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		return serviceError(err)
	}

	publish(c, h.Producer, events.TopicUserEvents, fmt.Sprint(id), map[string]any{
		"type":    "user_deleted",
		"user_id": id,
	})
	return c.NoContent(http.StatusNoContent)
}
