package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/ilondustries/inventario/internal/api/dto"
	"github.com/ilondustries/inventario/internal/auth"
	"github.com/ilondustries/inventario/internal/service"
	"github.com/ilondustries/inventario/pkg/apperrors"
)

// ProductsHandler serves catalog reads through the cache.
type ProductsHandler struct {
	cache *service.CatalogCache
}

// NewProductsHandler constructs handler.
func NewProductsHandler(cache *service.CatalogCache) *ProductsHandler {
	return &ProductsHandler{cache: cache}
}

// Get GET /products/:id.
func (h *ProductsHandler) Get(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return apperrors.NewValidationError("invalid product id", nil)
	}
	product, err := h.cache.GetProduct(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("product", map[string]any{"product_id": id})
		}
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ProductResponse{
		ID:             product.ID,
		Code:           product.Code,
		Name:           product.Name,
		Description:    product.Description,
		UnitPrice:      product.UnitPrice,
		QuantityOnHand: product.QuantityOnHand,
		StockMinimum:   product.StockMinimum,
		Location:       product.Location,
	}})
}
