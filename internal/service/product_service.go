package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/repository"
	apperrors "github.com/vuny-labs/marketplace-service/pkg/util/errorutil"
)

// ProductInput carries the editable fields of a listing.
type ProductInput struct {
	Title       string
	Description string
	Category    string
	Thumbnail   *string
	Price       float64
	Quantity    int
	Featured    bool
}

// ProductService manages shop listings.
type ProductService struct {
	products repository.ProductRepository
	audits   *AuditService
	logger   *zap.Logger
}

// NewProductService constructs the service.
func NewProductService(products repository.ProductRepository, audits *AuditService, logger *zap.Logger) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{products: products, audits: audits, logger: logger}
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperrors.NewValidationError("title required", nil)
	}
	if in.Price < 0 {
		return apperrors.NewValidationError("price cannot be negative", nil)
	}
	if in.Quantity < 0 {
		return apperrors.NewValidationError("quantity cannot be negative", nil)
	}
	return nil
}

// Create publishes a new listing authored by the actor.
func (s *ProductService) Create(ctx context.Context, actor *domain.User, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	product := &domain.Product{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    in.Category,
		Thumbnail:   in.Thumbnail,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Featured:    in.Featured,
		Active:      true,
		AuthorID:    actor.ID,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordChange(ctx, actor, product, "listed")
	return product, nil
}

// Update replaces the editable fields of a listing.
func (s *ProductService) Update(ctx context.Context, actor *domain.User, id string, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Title = strings.TrimSpace(in.Title)
	product.Description = in.Description
	product.Category = in.Category
	product.Thumbnail = in.Thumbnail
	product.Price = in.Price
	product.Quantity = in.Quantity
	product.Featured = in.Featured
	if err := s.products.Update(ctx, product); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordChange(ctx, actor, product, "updated")
	return product, nil
}

// Get returns one product by id.
func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("product", map[string]any{"product_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return product, nil
}

// List returns active listings plus the total match count for paging.
func (s *ProductService) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	items, total, err := s.products.ListActive(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return items, total, nil
}

// Delist hides a product from the shop without deleting its history.
func (s *ProductService) Delist(ctx context.Context, actor *domain.User, id string) error {
	product, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.products.Deactivate(ctx, product.ID); err != nil {
		return apperrors.MapError(err)
	}
	s.recordChange(ctx, actor, product, "delisted")
	return nil
}

func (s *ProductService) recordChange(ctx context.Context, actor *domain.User, product *domain.Product, verb string) {
	if s.audits == nil {
		return
	}
	err := s.audits.Record(ctx, domain.AuditEntry{
		Type:      domain.AuditProductChange,
		Message:   fmt.Sprintf("%s %s product %q", actor.Username, verb, product.Title),
		ActorID:   &actor.ID,
		ActorName: actor.Username,
		Target:    &product.ID,
		Meta:      map[string]any{"price": product.Price, "quantity": product.Quantity},
	})
	if err != nil {
		s.logger.Warn("record product change", zap.String("product_id", product.ID), zap.Error(err))
	}
}
