package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/vuny-labs/marketplace-service/internal/api/dto"
	"github.com/vuny-labs/marketplace-service/internal/auth"
	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/repository"
	"github.com/vuny-labs/marketplace-service/internal/service"
	apperrors "github.com/vuny-labs/marketplace-service/pkg/util/errorutil"
)

// ProductsHandler exposes the shop catalog.
type ProductsHandler struct {
	products *service.ProductService
}

// NewProductsHandler constructs handler.
func NewProductsHandler(productService *service.ProductService) *ProductsHandler {
	return &ProductsHandler{products: productService}
}

// List GET /api/shop/products.
func (h *ProductsHandler) List(c *fiber.Ctx) error {
	filter := repository.ProductFilter{
		Limit:  c.QueryInt("limit", 24),
		Offset: c.QueryInt("offset", 0),
	}
	if category := c.Query("category"); category != "" {
		filter.Category = &category
	}
	if raw := c.Query("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return apperrors.NewValidationError("invalid featured filter", nil)
		}
		filter.Featured = &featured
	}

	items, total, err := h.products.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	views := make([]fiber.Map, 0, len(items))
	for i := range items {
		views = append(views, productBody(&items[i]))
	}
	return c.JSON(fiber.Map{"data": views, "total": total})
}

// Get GET /api/shop/products/:id.
func (h *ProductsHandler) Get(c *fiber.Ctx) error {
	product, err := h.products.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": productBody(product)})
}

// Create POST /api/shop/products (staff).
func (h *ProductsHandler) Create(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	req, err := parseProductRequest(c)
	if err != nil {
		return err
	}
	product, err := h.products.Create(c.UserContext(), principal, req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": productBody(product)})
}

// Update PUT /api/shop/products/:id (staff).
func (h *ProductsHandler) Update(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	req, err := parseProductRequest(c)
	if err != nil {
		return err
	}
	product, err := h.products.Update(c.UserContext(), principal, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": productBody(product)})
}

// Delist DELETE /api/shop/products/:id (staff).
func (h *ProductsHandler) Delist(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if err := h.products.Delist(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseProductRequest(c *fiber.Ctx) (service.ProductInput, error) {
	var req dto.ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return service.ProductInput{}, apperrors.NewValidationError("invalid payload", nil)
	}
	return service.ProductInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Thumbnail:   req.Thumbnail,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Featured:    req.Featured,
	}, nil
}

func productBody(p *domain.Product) fiber.Map {
	return fiber.Map{
		"id":          p.ID,
		"title":       p.Title,
		"description": p.Description,
		"category":    p.Category,
		"thumbnail":   p.Thumbnail,
		"price":       p.Price,
		"quantity":    p.Quantity,
		"featured":    p.Featured,
		"created_at":  p.CreatedAt,
	}
}
