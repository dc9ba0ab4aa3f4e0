package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/restausimplon/api/internal/models"
	"github.com/restausimplon/api/internal/service/order"
)

func newOrderHandler(t *testing.T) (*OrderHandler, *gorm.DB) {
	t.Helper()
	db := InitTestDB(t)
	return &OrderHandler{Svc: &order.Service{DB: db}}, db
}

func TestCreateOrderComputesTotal(t *testing.T) {
	h, db := newOrderHandler(t)
	client := seedUser(t, db, "client@example.com", models.RoleClient)
	burger := seedProduct(t, db, "Burger", 9.5)
	frites := seedProduct(t, db, "Frites", 3.25)

	c, rec := newContext(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{
			{"product_id": burger.ID, "quantity": 2},
			{"product_id": frites.ID, "quantity": 2},
		},
	}, client)
	require.NoError(t, h.CreateOrder(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	view := decode[order.View](t, rec)
	require.Equal(t, client.ID, view.UserID)
	require.Equal(t, models.OrderEnPreparation, view.Status)
	require.Equal(t, 25.5, view.TotalAmount)
	require.Len(t, view.Items, 2)
	require.Equal(t, "Burger", view.Items[0].ProductName)
}

func TestCreateOrderConsolidatesDuplicates(t *testing.T) {
	h, db := newOrderHandler(t)
	client := seedUser(t, db, "client@example.com", models.RoleClient)
	burger := seedProduct(t, db, "Burger", 9.5)

	c, rec := newContext(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{
			{"product_id": burger.ID, "quantity": 2},
			{"product_id": burger.ID, "quantity": 3},
		},
	}, client)
	require.NoError(t, h.CreateOrder(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	view := decode[order.View](t, rec)
	require.Len(t, view.Items, 1)
	require.Equal(t, 5, view.Items[0].Quantity)
	require.Equal(t, 47.5, view.TotalAmount)

	var count int64
	require.NoError(t, db.Model(&models.OrderItem{}).Where("order_id = ?", view.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateOrderValidation(t *testing.T) {
	h, db := newOrderHandler(t)
	client := seedUser(t, db, "client@example.com", models.RoleClient)
	burger := seedProduct(t, db, "Burger", 9.5)

	// empty item list
	c, _ := newContext(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{},
	}, client)
	requireHTTPError(t, h.CreateOrder(c), http.StatusUnprocessableEntity)

	// zero quantity, nothing may be persisted
	c, _ = newContext(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{{"product_id": burger.ID, "quantity": 0}},
	}, client)
	requireHTTPError(t, h.CreateOrder(c), http.StatusUnprocessableEntity)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateOrderUnknownProductRollsBack(t *testing.T) {
	h, db := newOrderHandler(t)
	client := seedUser(t, db, "client@example.com", models.RoleClient)
	burger := seedProduct(t, db, "Burger", 9.5)

	c, _ := newContext(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{
			{"product_id": burger.ID, "quantity": 1},
			{"product_id": 999, "quantity": 1},
		},
	}, client)
	requireHTTPError(t, h.CreateOrder(c), http.StatusNotFound)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateOrderClientAlwaysOwns(t *testing.T) {
	h, db := newOrderHandler(t)
	client := seedUser(t, db, "client@example.com", models.RoleClient)
	other := seedUser(t, db, "other@example.com", models.RoleClient)
	burger := seedProduct(t, db, "Burger", 9.5)

	// user_id in the payload is ignored for clients
	c, rec := newContext(t, http.MethodPost, "/orders", map[string]any{
		"user_id": other.ID,
		"items":   []map[string]any{{"product_id": burger.ID, "quantity": 1}},
	}, client)
	require.NoError(t, h.CreateOrder(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, client.ID, decode[order.View](t, rec).UserID)
}

func TestCreateOrderStaffNamesTarget(t *testing.T) {
	h, db := newOrderHandler(t)
	employee := seedUser(t, db, "emp@example.com", models.RoleEmployee)
	client := seedUser(t, db, "client@example.com", models.RoleClient)
	burger := seedProduct(t, db, "Burger", 9.5)

	// missing user_id
	c, _ := newContext(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{{"product_id": burger.ID, "quantity": 1}},
	}, employee)
	requireHTTPError(t, h.CreateOrder(c), http.StatusBadRequest)

	// unknown target user
	c, _ = newContext(t, http.MethodPost, "/orders", map[string]any{
		"user_id": 999,
		"items":   []map[string]any{{"product_id": burger.ID, "quantity": 1}},
	}, employee)
	requireHTTPError(t, h.CreateOrder(c), http.StatusNotFound)

	c, rec := newContext(t, http.MethodPost, "/orders", map[string]any{
		"user_id": client.ID,
		"items":   []map[string]any{{"product_id": burger.ID, "quantity": 1}},
	}, employee)
	require.NoError(t, h.CreateOrder(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, client.ID, decode[order.View](t, rec).UserID)
}

func TestGetOrderOwnership(t *testing.T) {
	h, db := newOrderHandler(t)
	client := seedUser(t, db, "client@example.com", models.RoleClient)
	other := seedUser(t, db, "other@example.com", models.RoleClient)
	employee := seedUser(t, db, "emp@example.com", models.RoleEmployee)
	burger := seedProduct(t, db, "Burger", 9.5)

	c, rec := newContext(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{{"product_id": burger.ID, "quantity": 1}},
	}, client)
	require.NoError(t, h.CreateOrder(c))
	view := decode[order.View](t, rec)

	get := func(caller *models.User) error {
		c, _ := newContext(t, http.MethodGet, "/orders/1", nil, caller)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(view.ID))
		return h.GetOrder(c)
	}
	require.NoError(t, get(client))
	require.NoError(t, get(employee))
	requireHTTPError(t, get(other), http.StatusForbidden)
}

func TestListOrdersStaffOnly(t *testing.T) {
	h, db := newOrderHandler(t)
	client := seedUser(t, db, "client@example.com", models.RoleClient)
	employee := seedUser(t, db, "emp@example.com", models.RoleEmployee)

	c, _ := newContext(t, http.MethodGet, "/orders", nil, client)
	requireHTTPError(t, h.ListOrders(c), http.StatusForbidden)

	c, rec := newContext(t, http.MethodGet, "/orders", nil, employee)
	require.NoError(t, h.ListOrders(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[[]order.View](t, rec))
}

func TestListOrdersByUser(t *testing.T) {
	h, db := newOrderHandler(t)
	client := seedUser(t, db, "client@example.com", models.RoleClient)
	other := seedUser(t, db, "other@example.com", models.RoleClient)
	burger := seedProduct(t, db, "Burger", 9.5)

	c, _ := newContext(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{{"product_id": burger.ID, "quantity": 1}},
	}, client)
	require.NoError(t, h.CreateOrder(c))

	// own orders
	c, rec := newContext(t, http.MethodGet, "/orders/user/1", nil, client)
	c.SetParamNames("user_id")
	c.SetParamValues(fmt.Sprint(client.ID))
	require.NoError(t, h.ListOrdersByUser(c))
	require.Len(t, decode[[]order.View](t, rec), 1)

	// a user with no orders gets an empty list, not an error
	c, rec = newContext(t, http.MethodGet, "/orders/user/2", nil, other)
	c.SetParamNames("user_id")
	c.SetParamValues(fmt.Sprint(other.ID))
	require.NoError(t, h.ListOrdersByUser(c))
	require.Empty(t, decode[[]order.View](t, rec))

	// someone else's orders
	c, _ = newContext(t, http.MethodGet, "/orders/user/1", nil, other)
	c.SetParamNames("user_id")
	c.SetParamValues(fmt.Sprint(client.ID))
	requireHTTPError(t, h.ListOrdersByUser(c), http.StatusForbidden)
}

func TestListOrdersByDate(t *testing.T) {
	h, db := newOrderHandler(t)
	client := seedUser(t, db, "client@example.com", models.RoleClient)
	employee := seedUser(t, db, "emp@example.com", models.RoleEmployee)
	burger := seedProduct(t, db, "Burger", 9.5)

	c, rec := newContext(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{{"product_id": burger.ID, "quantity": 1}},
	}, client)
	require.NoError(t, h.CreateOrder(c))
	view := decode[order.View](t, rec)
	day := view.CreatedAt.Format("2006-01-02")

	c, rec = newContext(t, http.MethodGet, "/orders/by-date?date="+day, nil, employee)
	require.NoError(t, h.ListOrdersByDate(c))
	require.Len(t, decode[[]order.View](t, rec), 1)

	c, rec = newContext(t, http.MethodGet, "/orders/by-date?date=1999-01-01", nil, employee)
	require.NoError(t, h.ListOrdersByDate(c))
	require.Empty(t, decode[[]order.View](t, rec))

	c, _ = newContext(t, http.MethodGet, "/orders/by-date?date=not-a-date", nil, employee)
	requireHTTPError(t, h.ListOrdersByDate(c), http.StatusBadRequest)
}

func TestPatchOrderReplacesItems(t *testing.T) {
	h, db := newOrderHandler(t)
	client := seedUser(t, db, "client@example.com", models.RoleClient)
	employee := seedUser(t, db, "emp@example.com", models.RoleEmployee)
	burger := seedProduct(t, db, "Burger", 9.5)
	frites := seedProduct(t, db, "Frites", 3.25)

	c, rec := newContext(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{{"product_id": burger.ID, "quantity": 2}},
	}, client)
	require.NoError(t, h.CreateOrder(c))
	view := decode[order.View](t, rec)

	c, rec = newContext(t, http.MethodPatch, "/orders/1", map[string]any{
		"status": string(models.OrderPrete),
		"items":  []map[string]any{{"product_id": frites.ID, "quantity": 4}},
	}, employee)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(view.ID))
	require.NoError(t, h.PatchOrder(c))
	require.Equal(t, http.StatusOK, rec.Code)

	patched := decode[order.View](t, rec)
	require.Equal(t, models.OrderPrete, patched.Status)
	require.Len(t, patched.Items, 1)
	require.Equal(t, frites.ID, patched.Items[0].ProductID)
	require.Equal(t, 13.0, patched.TotalAmount)
}

func TestPatchOrderValidation(t *testing.T) {
	h, db := newOrderHandler(t)
	client := seedUser(t, db, "client@example.com", models.RoleClient)
	employee := seedUser(t, db, "emp@example.com", models.RoleEmployee)
	burger := seedProduct(t, db, "Burger", 9.5)

	c, rec := newContext(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{{"product_id": burger.ID, "quantity": 2}},
	}, client)
	require.NoError(t, h.CreateOrder(c))
	view := decode[order.View](t, rec)

	// clients cannot patch, even their own order
	c, _ = newContext(t, http.MethodPatch, "/orders/1", map[string]any{
		"status": string(models.OrderPrete),
	}, client)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(view.ID))
	requireHTTPError(t, h.PatchOrder(c), http.StatusForbidden)

	// unknown status
	c, _ = newContext(t, http.MethodPatch, "/orders/1", map[string]any{
		"status": "Annulée",
	}, employee)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(view.ID))
	requireHTTPError(t, h.PatchOrder(c), http.StatusUnprocessableEntity)

	// unknown order
	c, _ = newContext(t, http.MethodPatch, "/orders/999", map[string]any{
		"status": string(models.OrderPrete),
	}, employee)
	c.SetParamNames("id")
	c.SetParamValues("999")
	requireHTTPError(t, h.PatchOrder(c), http.StatusNotFound)
}

func TestDeleteOrderCascades(t *testing.T) {
	h, db := newOrderHandler(t)
	client := seedUser(t, db, "client@example.com", models.RoleClient)
	employee := seedUser(t, db, "emp@example.com", models.RoleEmployee)
	burger := seedProduct(t, db, "Burger", 9.5)

	c, rec := newContext(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{{"product_id": burger.ID, "quantity": 1}},
	}, client)
	require.NoError(t, h.CreateOrder(c))
	view := decode[order.View](t, rec)

	require.NoError(t, db.Create(&models.Delivery{
		OrderID:         view.ID,
		AddressDelivery: "1 rue de la Paix",
		Status:          models.DeliveryEnCours,
	}).Error)

	c, rec = newContext(t, http.MethodDelete, "/orders/1", nil, employee)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(view.ID))
	require.NoError(t, h.DeleteOrder(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, db.Model(&models.OrderItem{}).Where("order_id = ?", view.ID).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.Delivery{}).Where("order_id = ?", view.ID).Count(&count).Error)
	require.Zero(t, count)
	require.ErrorIs(t, db.First(&models.Order{}, view.ID).Error, gorm.ErrRecordNotFound)
}
