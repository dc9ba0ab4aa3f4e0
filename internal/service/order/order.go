package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/restausimplon/api/internal/authz"
	"github.com/restausimplon/api/internal/models"
)

var (
	ErrValidation = errors.New("validation") // 422
	ErrNotFound   = errors.New("not found")  // 404
	ErrConflict   = errors.New("conflict")   // 400
)

type ItemInput struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type CreateInput struct {
	UserID *uint       `json:"user_id"`
	Items  []ItemInput `json:"items"`
}

// PatchInput distinguishes absent fields (nil) from supplied ones. A
// supplied item list replaces the whole item set.
type PatchInput struct {
	UserID *uint               `json:"user_id"`
	Status *models.OrderStatus `json:"status"`
	Items  *[]ItemInput        `json:"items"`
}

type ItemView struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

type View struct {
	ID          uint               `json:"id"`
	UserID      uint               `json:"user_id"`
	TotalAmount float64            `json:"total_amount"`
	Status      models.OrderStatus `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	Items       []ItemView         `json:"items"`
}

type Service struct {
	DB *gorm.DB
}

// consolidate merges duplicate product references into one line with the
// quantities summed, preserving first-seen order.
func consolidate(items []ItemInput) ([]ItemInput, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	index := make(map[uint]int, len(items))
	out := make([]ItemInput, 0, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
		}
		if pos, seen := index[it.ProductID]; seen {
			out[pos].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Create builds an order for the caller. Clients always own the created
// order; staff must name the target user.
func (s *Service) Create(ctx context.Context, caller *models.User, in CreateInput) (*View, error) {
	items, err := consolidate(in.Items)
	if err != nil {
		return nil, err
	}

	userID := caller.ID
	if caller.Role.IsStaff() {
		if in.UserID == nil {
			return nil, fmt.Errorf("%w: user_id is required for staff-created orders", ErrConflict)
		}
		userID = *in.UserID
	}

	var orderID uint
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if userID != caller.ID {
			var target models.User
			if err := tx.First(&target, userID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: user %d", ErrNotFound, userID)
				}
				return err
			}
		}

		ord := models.Order{
			UserID:      userID,
			Status:      models.OrderEnPreparation,
			TotalAmount: 0,
		}
		if err := tx.Create(&ord).Error; err != nil {
			return err
		}

		var total float64
		for _, it := range items {
			var p models.Product
			if err := tx.First(&p, it.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product %d", ErrNotFound, it.ProductID)
				}
				return err
			}
			row := models.OrderItem{
				OrderID:   ord.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			total += p.UnitPrice * float64(it.Quantity)
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", ord.ID).
			Update("total_amount", round2(total)).Error; err != nil {
			return err
		}
		orderID = ord.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, nil, orderID)
}

// Get returns one order with its item lines. When caller is non-nil the
// policy table is consulted with the order's owner.
func (s *Service) Get(ctx context.Context, caller *models.User, orderID uint) (*View, error) {
	var ord models.Order
	if err := s.DB.WithContext(ctx).First(&ord, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	if caller != nil {
		if err := authz.Allow(caller, authz.OrderRead, ord.UserID); err != nil {
			return nil, err
		}
	}
	views, err := s.attachItems(ctx, []models.Order{ord})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) List(ctx context.Context) ([]View, error) {
	return s.list(ctx, s.DB.WithContext(ctx))
}

// ListByDate keeps orders created on the given calendar day, ignoring
// time of day.
func (s *Service) ListByDate(ctx context.Context, day time.Time) ([]View, error) {
	q := s.DB.WithContext(ctx).Where("DATE(created_at) = ?", day.Format("2006-01-02"))
	return s.list(ctx, q)
}

func (s *Service) ListForUser(ctx context.Context, caller *models.User, userID uint) ([]View, error) {
	if err := authz.Allow(caller, authz.OrderRead, userID); err != nil {
		return nil, err
	}
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	return s.list(ctx, q)
}

func (s *Service) list(ctx context.Context, q *gorm.DB) ([]View, error) {
	var orders []models.Order
	if err := q.Order("id ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return s.attachItems(ctx, orders)
}

type itemRow struct {
	OrderID     uint
	ProductID   uint
	ProductName string
	Quantity    int
}

// attachItems resolves item lines for the given orders, annotating each
// line with the product's current display name.
func (s *Service) attachItems(ctx context.Context, orders []models.Order) ([]View, error) {
	views := make([]View, 0, len(orders))
	if len(orders) == 0 {
		return views, nil
	}

	ids := make([]uint, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	var rows []itemRow
	err := s.DB.WithContext(ctx).Table("order_items").
		Select("order_items.order_id, order_items.product_id, order_items.quantity, products.name AS product_name").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("order_items.order_id IN ?", ids).
		Order("order_items.order_id ASC, order_items.product_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byOrder := make(map[uint][]ItemView, len(orders))
	for _, r := range rows {
		byOrder[r.OrderID] = append(byOrder[r.OrderID], ItemView{
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			Quantity:    r.Quantity,
		})
	}

	for _, o := range orders {
		items := byOrder[o.ID]
		if items == nil {
			items = []ItemView{}
		}
		views = append(views, View{
			ID:          o.ID,
			UserID:      o.UserID,
			TotalAmount: o.TotalAmount,
			Status:      o.Status,
			CreatedAt:   o.CreatedAt,
			Items:       items,
		})
	}
	return views, nil
}

// Patch applies a partial update. A supplied item list deletes every
// existing line, inserts the consolidated replacement and recomputes the
// total from the persisted rows. Any failure rolls the whole patch back.
func (s *Service) Patch(ctx context.Context, orderID uint, in PatchInput) (*View, error) {
	if in.Status != nil && !in.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *in.Status)
	}
	var items []ItemInput
	if in.Items != nil {
		var err error
		items, err = consolidate(*in.Items)
		if err != nil {
			return nil, err
		}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ord models.Order
		if err := tx.First(&ord, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}

		updates := map[string]any{}
		if in.UserID != nil {
			var target models.User
			if err := tx.First(&target, *in.UserID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: user %d", ErrNotFound, *in.UserID)
				}
				return err
			}
			updates["user_id"] = *in.UserID
		}
		if in.Status != nil {
			updates["status"] = *in.Status
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Order{}).Where("id = ?", orderID).
				Updates(updates).Error; err != nil {
				return err
			}
		}

		if in.Items == nil {
			return nil
		}
		if err := tx.Where("order_id = ?", orderID).
			Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		for _, it := range items {
			var p models.Product
			if err := tx.First(&p, it.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product %d", ErrNotFound, it.ProductID)
				}
				return err
			}
			row := models.OrderItem{
				OrderID:   orderID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return RecomputeTotal(tx, orderID)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, nil, orderID)
}

// Delete removes the order together with its items and delivery.
func (s *Service) Delete(ctx context.Context, orderID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ord models.Order
		if err := tx.First(&ord, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}
		return PurgeOrder(tx, orderID)
	})
}

// RecomputeTotal rereads the persisted item rows joined with product
// prices and writes the rounded sum back to the order. It runs inside the
// caller's transaction so the total is consistent with what committed
// readers will see.
func RecomputeTotal(tx *gorm.DB, orderID uint) error {
	var total float64
	err := tx.Table("order_items").
		Select("COALESCE(SUM(order_items.quantity * products.unit_price), 0)").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("order_items.order_id = ?", orderID).
		Scan(&total).Error
	if err != nil {
		return err
	}
	return tx.Model(&models.Order{}).Where("id = ?", orderID).
		Update("total_amount", round2(total)).Error
}

// PurgeOrder deletes one order with its item lines and delivery inside the
// caller's transaction. Cascades are applied here explicitly rather than
// trusting driver-level FK enforcement.
func PurgeOrder(tx *gorm.DB, orderID uint) error {
	if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	if err := tx.Where("order_id = ?", orderID).Delete(&models.Delivery{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Order{}, orderID).Error
}

// PurgeUserOrders removes every order owned by the user, used when the
// user record itself is deleted.
func PurgeUserOrders(tx *gorm.DB, userID uint) error {
	var ids []uint
	if err := tx.Model(&models.Order{}).Where("user_id = ?", userID).
		Pluck("id", &ids).Error; err != nil {
		return err
	}
	for _, id := range ids {
		if err := PurgeOrder(tx, id); err != nil {
			return err
		}
	}
	return nil
}

// PurgeProductItems removes every item line referencing the product and
// recomputes the totals of the affected orders.
func PurgeProductItems(tx *gorm.DB, productID uint) error {
	var orderIDs []uint
	if err := tx.Model(&models.OrderItem{}).Where("product_id = ?", productID).
		Distinct().Pluck("order_id", &orderIDs).Error; err != nil {
		return err
	}
	if err := tx.Where("product_id = ?", productID).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	for _, id := range orderIDs {
		if err := RecomputeTotal(tx, id); err != nil {
			return err
		}
	}
	return nil
}
