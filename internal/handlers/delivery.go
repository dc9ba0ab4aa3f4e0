package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/restausimplon/api/internal/authz"
	authmw "github.com/restausimplon/api/internal/middleware/auth"
	"github.com/restausimplon/api/internal/models"
)

type DeliveryHandler struct {
	DB *gorm.DB
}

func (h *DeliveryHandler) ListDeliveries(c echo.Context) error {
	if err := authz.Allow(authmw.CurrentUser(c), authz.DeliveryRead, authz.Nobody); err != nil {
		return serviceError(err)
	}
	var deliveries []models.Delivery
	if err := h.DB.WithContext(c.Request().Context()).Order("id ASC").Find(&deliveries).Error; err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, deliveries)
}

func (h *DeliveryHandler) GetDelivery(c echo.Context) error {
	if err := authz.Allow(authmw.CurrentUser(c), authz.DeliveryRead, authz.Nobody); err != nil {
		return serviceError(err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var delivery models.Delivery
	if err := h.DB.WithContext(c.Request().Context()).First(&delivery, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "delivery not found")
		}
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, delivery)
}

// CreateDelivery attaches a delivery to an existing order. An order can
// carry at most one delivery.
func (h *DeliveryHandler) CreateDelivery(c echo.Context) error {
	if err := authz.Allow(authmw.CurrentUser(c), authz.DeliveryWrite, authz.Nobody); err != nil {
		return serviceError(err)
	}

	var req struct {
		OrderID         uint                   `json:"order_id"`
		AddressDelivery string                 `json:"address_delivery"`
		Status          *models.DeliveryStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.AddressDelivery == "" || len(req.AddressDelivery) > 200 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "address_delivery must be between 1 and 200 characters")
	}
	status := models.DeliveryEnCours
	if req.Status != nil {
		if !req.Status.IsValid() {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, fmt.Sprintf("unknown delivery status %q", *req.Status))
		}
		status = *req.Status
	}

	ctx := c.Request().Context()

	var ord models.Order
	if err := h.DB.WithContext(ctx).First(&ord, req.OrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return serviceError(err)
	}

	var existing models.Delivery
	err := h.DB.WithContext(ctx).Where("order_id = ?", req.OrderID).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "this order already has a delivery")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return serviceError(err)
	}

	delivery := models.Delivery{
		OrderID:         req.OrderID,
		AddressDelivery: req.AddressDelivery,
		Status:          status,
	}
	if err := h.DB.WithContext(ctx).Create(&delivery).Error; err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, delivery)
}

func (h *DeliveryHandler) PatchDelivery(c echo.Context) error {
	if err := authz.Allow(authmw.CurrentUser(c), authz.DeliveryWrite, authz.Nobody); err != nil {
		return serviceError(err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		AddressDelivery *string                `json:"address_delivery"`
		Status          *models.DeliveryStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.AddressDelivery != nil && (*req.AddressDelivery == "" || len(*req.AddressDelivery) > 200) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "address_delivery must be between 1 and 200 characters")
	}
	if req.Status != nil && !req.Status.IsValid() {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, fmt.Sprintf("unknown delivery status %q", *req.Status))
	}

	var delivery models.Delivery
	if err := h.DB.WithContext(c.Request().Context()).First(&delivery, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "delivery not found")
		}
		return serviceError(err)
	}

	if req.AddressDelivery != nil {
		delivery.AddressDelivery = *req.AddressDelivery
	}
	if req.Status != nil {
		delivery.Status = *req.Status
	}
	if err := h.DB.WithContext(c.Request().Context()).Save(&delivery).Error; err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, delivery)
}

func (h *DeliveryHandler) DeleteDelivery(c echo.Context) error {
	if err := authz.Allow(authmw.CurrentUser(c), authz.DeliveryWrite, authz.Nobody); err != nil {
		return serviceError(err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var delivery models.Delivery
	if err := h.DB.WithContext(c.Request().Context()).First(&delivery, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "delivery not found")
		}
		return serviceError(err)
	}
	if err := h.DB.WithContext(c.Request().Context()).Delete(&models.Delivery{}, id).Error; err != nil {
		return serviceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
