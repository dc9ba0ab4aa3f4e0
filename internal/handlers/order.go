package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/restausimplon/api/internal/authz"
	"github.com/restausimplon/api/internal/events"
	"github.com/restausimplon/api/internal/logging"
	authmw "github.com/restausimplon/api/internal/middleware/auth"
	"github.com/restausimplon/api/internal/service/order"
)

type OrderHandler struct {
	Svc      *order.Service
	Producer *events.Producer
}

// CreateOrder creates an order for the caller (clients) or for the user
// named in the payload (staff).
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.OrderCreate, authz.Nobody); err != nil {
		return serviceError(err)
	}

	var req order.CreateInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	view, err := h.Svc.Create(c.Request().Context(), caller, req)
	if err != nil {
		logging.FromContext(c.Request().Context()).Warn("create order failed", "error", err)
		return serviceError(err)
	}

	publish(c, h.Producer, events.TopicOrderEvents, fmt.Sprint(view.ID), map[string]any{
		"type":     "order_created",
		"order_id": view.ID,
		"user_id":  view.UserID,
		"total":    view.TotalAmount,
	})
	return c.JSON(http.StatusCreated, view)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.OrderRead, authz.Nobody); err != nil {
		return serviceError(err)
	}

	views, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, views)
}

// ListOrdersByDate filters on the calendar day of creation.
func (h *OrderHandler) ListOrdersByDate(c echo.Context) error {
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.OrderRead, authz.Nobody); err != nil {
		return serviceError(err)
	}

	day, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	views, err := h.Svc.ListByDate(c.Request().Context(), day)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, views)
}

// ListOrdersByUser returns the orders of one user. An empty result is a
// valid answer, not an error.
func (h *OrderHandler) ListOrdersByUser(c echo.Context) error {
	userID, err := parseID(c, "user_id")
	if err != nil {
		return err
	}
	caller := authmw.CurrentUser(c)

	views, err := h.Svc.ListForUser(c.Request().Context(), caller, userID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, views)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	caller := authmw.CurrentUser(c)

	view, err := h.Svc.Get(c.Request().Context(), caller, id)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) PatchOrder(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.OrderWrite, authz.Nobody); err != nil {
		return serviceError(err)
	}

	var req order.PatchInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	view, err := h.Svc.Patch(c.Request().Context(), id, req)
	if err != nil {
		logging.FromContext(c.Request().Context()).Warn("patch order failed", "order_id", id, "error", err)
		return serviceError(err)
	}

	publish(c, h.Producer, events.TopicOrderEvents, fmt.Sprint(id), map[string]any{
		"type":     "order_updated",
		"order_id": id,
		"total":    view.TotalAmount,
	})
	return c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) DeleteOrder(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.OrderWrite, authz.Nobody); err != nil {
		return serviceError(err)
	}

	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return serviceError(err)
	}

	publish(c, h.Producer, events.TopicOrderEvents, fmt.Sprint(id), map[string]any{
		"type":     "order_deleted",
		"order_id": id,
	})
	return c.NoContent(http.StatusNoContent)
}
