package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/restausimplon/api/internal/authz"
	"github.com/restausimplon/api/internal/events"
	"github.com/restausimplon/api/internal/logging"
	authmw "github.com/restausimplon/api/internal/middleware/auth"
	"github.com/restausimplon/api/internal/models"
	"github.com/restausimplon/api/internal/service/order"
	"github.com/restausimplon/api/internal/service/search"
	"github.com/restausimplon/api/internal/util"
)

type ProductHandler struct {
	DB       *gorm.DB
	ES       *elasticsearch.Client
	Producer *events.Producer
}

func (h *ProductHandler) reindex(c echo.Context, p models.Product) {
	if err := search.IndexProduct(c.Request().Context(), h.ES, search.ProductIndex, p); err != nil {
		logging.FromContext(c.Request().Context()).Error("product index failed", "product_id", p.ID, "error", err)
	}
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.ProductRead, authz.Nobody); err != nil {
		return serviceError(err)
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	ctx := c.Request().Context()

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.Product{}).Count(&total).Error; err != nil {
		return serviceError(err)
	}

	var items []models.Product
	if err := h.DB.WithContext(ctx).Order("id ASC").
		Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.ProductRead, authz.Nobody); err != nil {
		return serviceError(err)
	}

	var product models.Product
	if err := h.DB.WithContext(c.Request().Context()).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, product)
}

type productPayload struct {
	Name        *string          `json:"name"`
	UnitPrice   *float64         `json:"unit_price"`
	Category    *models.Category `json:"category"`
	Description *string          `json:"description"`
	Stock       *int             `json:"stock"`
}

func (p *productPayload) validate() error {
	if p.Name != nil && (len(*p.Name) == 0 || len(*p.Name) > 50) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "name must be between 1 and 50 characters")
	}
	if p.UnitPrice != nil && *p.UnitPrice <= 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "unit_price must be > 0")
	}
	if p.Category != nil && !p.Category.IsValid() {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, fmt.Sprintf("unknown category %q", *p.Category))
	}
	if p.Description != nil && len(*p.Description) > 200 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "description must be at most 200 characters")
	}
	if p.Stock != nil && *p.Stock < 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "stock cannot be negative")
	}
	return nil
}

func (h *ProductHandler) nameTaken(c echo.Context, name string, excludeID uint) (bool, error) {
	var other models.Product
	err := h.DB.WithContext(c.Request().Context()).
		Where("name = ? AND id <> ?", name, excludeID).First(&other).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.ProductWrite, authz.Nobody); err != nil {
		return serviceError(err)
	}

	var req productPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == nil || req.UnitPrice == nil || req.Category == nil || req.Stock == nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "name, unit_price, category and stock are required")
	}
	if err := req.validate(); err != nil {
		return err
	}

	taken, err := h.nameTaken(c, *req.Name, 0)
	if err != nil {
		return serviceError(err)
	}
	if taken {
		return echo.NewHTTPError(http.StatusBadRequest, "a product with this name already exists")
	}

	product := models.Product{
		Name:        *req.Name,
		UnitPrice:   *req.UnitPrice,
		Category:    *req.Category,
		Description: req.Description,
		Stock:       *req.Stock,
	}
	if err := h.DB.WithContext(c.Request().Context()).Create(&product).Error; err != nil {
		return serviceError(err)
	}

	h.reindex(c, product)
	publish(c, h.Producer, events.TopicProductEvents, fmt.Sprint(product.ID), map[string]any{
		"type":       "product_created",
		"product_id": product.ID,
		"name":       product.Name,
	})
	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) PatchProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.ProductWrite, authz.Nobody); err != nil {
		return serviceError(err)
	}

	var req productPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	var product models.Product
	if err := h.DB.WithContext(c.Request().Context()).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return serviceError(err)
	}

	if req.Name != nil && *req.Name != product.Name {
		taken, err := h.nameTaken(c, *req.Name, id)
		if err != nil {
			return serviceError(err)
		}
		if taken {
			return echo.NewHTTPError(http.StatusBadRequest, "a product with this name already exists")
		}
		product.Name = *req.Name
	}
	if req.UnitPrice != nil {
		product.UnitPrice = *req.UnitPrice
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Description != nil {
		product.Description = req.Description
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}

	if err := h.DB.WithContext(c.Request().Context()).Save(&product).Error; err != nil {
		return serviceError(err)
	}

	h.reindex(c, product)
	publish(c, h.Producer, events.TopicProductEvents, fmt.Sprint(product.ID), map[string]any{
		"type":       "product_updated",
		"product_id": product.ID,
		"name":       product.Name,
	})
	return c.JSON(http.StatusOK, product)
}

// DeleteProduct removes the product, its order lines, and refreshes the
// totals of every order that referenced it.
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.ProductWrite, authz.Nobody); err != nil {
		return serviceError(err)
	}

	ctx := c.Request().Context()
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: product %d", order.ErrNotFound, id)
			}
			return err
		}
		if err := order.PurgeProductItems(tx, id); err != nil {
			return err
		}
		return tx.Delete(&models.Product{}, id).Error
	})
	if err != nil {
		return serviceError(err)
	}

	if err := search.DeleteProduct(ctx, h.ES, search.ProductIndex, id); err != nil {
		logging.FromContext(ctx).Error("product index delete failed", "product_id", id, "error", err)
	}
	publish(c, h.Producer, events.TopicProductEvents, fmt.Sprint(id), map[string]any{
		"type":       "product_deleted",
		"product_id": id,
	})
	return c.NoContent(http.StatusNoContent)
}

// SearchProducts queries the Elasticsearch index.
func (h *ProductHandler) SearchProducts(c echo.Context) error {
	caller := authmw.CurrentUser(c)
	if err := authz.Allow(caller, authz.ProductRead, authz.Nobody); err != nil {
		return serviceError(err)
	}
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not configured")
	}

	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, limit := util.Calculate(page, size)

	results, err := search.Search(c.Request().Context(), h.ES, search.ProductIndex, q, from, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
	return c.JSON(http.StatusOK, results)
}
