package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/restausimplon/api/internal/authz"
	authmw "github.com/restausimplon/api/internal/middleware/auth"
	"github.com/restausimplon/api/internal/models"
	"github.com/restausimplon/api/internal/service/order"
)

// OrderItemHandler exposes staff-only maintenance of individual order
// lines, addressed by their composite (order_id, product_id) key. Every
// quantity change or removal refreshes the owning order's total.
type OrderItemHandler struct {
	DB *gorm.DB
}

func (h *OrderItemHandler) guard(c echo.Context, action authz.Action) error {
	if err := authz.Allow(authmw.CurrentUser(c), action, authz.Nobody); err != nil {
		return serviceError(err)
	}
	return nil
}

func (h *OrderItemHandler) ListOrderItems(c echo.Context) error {
	if err := h.guard(c, authz.OrderItemRead); err != nil {
		return err
	}
	var items []models.OrderItem
	if err := h.DB.WithContext(c.Request().Context()).
		Order("order_id ASC, product_id ASC").Find(&items).Error; err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *OrderItemHandler) ListByOrder(c echo.Context) error {
	if err := h.guard(c, authz.OrderItemRead); err != nil {
		return err
	}
	orderID, err := parseID(c, "order_id")
	if err != nil {
		return err
	}
	var items []models.OrderItem
	if err := h.DB.WithContext(c.Request().Context()).
		Where("order_id = ?", orderID).Order("product_id ASC").Find(&items).Error; err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *OrderItemHandler) ListByProduct(c echo.Context) error {
	if err := h.guard(c, authz.OrderItemRead); err != nil {
		return err
	}
	productID, err := parseID(c, "product_id")
	if err != nil {
		return err
	}
	var items []models.OrderItem
	if err := h.DB.WithContext(c.Request().Context()).
		Where("product_id = ?", productID).Order("order_id ASC").Find(&items).Error; err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *OrderItemHandler) find(c echo.Context) (*models.OrderItem, error) {
	orderID, err := parseID(c, "order_id")
	if err != nil {
		return nil, err
	}
	productID, err := parseID(c, "product_id")
	if err != nil {
		return nil, err
	}
	var item models.OrderItem
	err = h.DB.WithContext(c.Request().Context()).
		Where("order_id = ? AND product_id = ?", orderID, productID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "order item not found")
		}
		return nil, serviceError(err)
	}
	return &item, nil
}

func (h *OrderItemHandler) GetOrderItem(c echo.Context) error {
	if err := h.guard(c, authz.OrderItemRead); err != nil {
		return err
	}
	item, err := h.find(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *OrderItemHandler) PatchOrderItem(c echo.Context) error {
	if err := h.guard(c, authz.OrderItemWrite); err != nil {
		return err
	}
	item, err := h.find(c)
	if err != nil {
		return err
	}

	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Quantity != nil && *req.Quantity < 1 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "quantity must be >= 1")
	}

	if req.Quantity != nil {
		err := h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.OrderItem{}).
				Where("order_id = ? AND product_id = ?", item.OrderID, item.ProductID).
				Update("quantity", *req.Quantity).Error; err != nil {
				return err
			}
			return order.RecomputeTotal(tx, item.OrderID)
		})
		if err != nil {
			return serviceError(err)
		}
		item.Quantity = *req.Quantity
	}
	return c.JSON(http.StatusOK, item)
}

func (h *OrderItemHandler) DeleteOrderItem(c echo.Context) error {
	if err := h.guard(c, authz.OrderItemWrite); err != nil {
		return err
	}
	item, err := h.find(c)
	if err != nil {
		return err
	}

	err = h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ? AND product_id = ?", item.OrderID, item.ProductID).
			Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		return order.RecomputeTotal(tx, item.OrderID)
	})
	if err != nil {
		return serviceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
