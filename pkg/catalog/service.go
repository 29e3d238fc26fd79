// Package catalog serves product reads, inventory reports and restocking.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/events"
	"github.com/example/storefront/pkg/models"
	"go.uber.org/zap"
)

type ProductStore interface {
	FindProductByID(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, int64, error)
	Categories(ctx context.Context) ([]string, error)
	FindLowStock(ctx context.Context) ([]*models.Product, error)
	FindOutOfStock(ctx context.Context) ([]*models.Product, error)
	RestockProduct(ctx context.Context, id string, amount int) (*models.Product, error)
}

// Cache is a read-through product cache. A miss returns ok == false.
type Cache interface {
	GetProduct(ctx context.Context, id string) (*models.Product, bool, error)
	SetProduct(ctx context.Context, p *models.Product, ttl time.Duration) error
}

type Ledger interface {
	Summary(ctx context.Context, productID string) (*models.LedgerSummary, error)
	Movements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error)
}

type Service struct {
	products ProductStore
	cache    Cache
	ledger   Ledger
	events   events.Publisher
	logger   *zap.Logger
	ttl      time.Duration
}

// NewService wires the catalog. cache and ledger may be nil.
func NewService(products ProductStore, cache Cache, ledger Ledger, publisher events.Publisher, logger *zap.Logger, ttl time.Duration) *Service {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Service{
		products: products,
		cache:    cache,
		ledger:   ledger,
		events:   publisher,
		logger:   logger,
		ttl:      ttl,
	}
}

func (s *Service) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, models.Pagination, error) {
	filter.Page = filter.Page.Normalize(20)
	list, total, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, apperr.Internal(err, "failed to list products")
	}
	return list, models.NewPagination(filter.Page, total), nil
}

// GetProduct reads through the cache. Cache failures fall back to the store.
func (s *Service) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if s.cache != nil {
		p, ok, err := s.cache.GetProduct(ctx, id)
		if err != nil {
			s.logger.Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
		}
		if ok {
			return p, nil
		}
	}

	p, err := s.products.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, apperr.Internal(err, "failed to load product %s", id)
	}

	if s.cache != nil {
		if err := s.cache.SetProduct(ctx, p, s.ttl); err != nil {
			s.logger.Warn("Product cache write failed", zap.String("product_id", id), zap.Error(err))
		}
	}
	return p, nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.products.Categories(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list categories")
	}
	return categories, nil
}

func (s *Service) LowStock(ctx context.Context) ([]*models.Product, error) {
	list, err := s.products.FindLowStock(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list low stock products")
	}
	return list, nil
}

func (s *Service) OutOfStock(ctx context.Context) ([]*models.Product, error) {
	list, err := s.products.FindOutOfStock(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list out of stock products")
	}
	return list, nil
}

func (s *Service) Restock(ctx context.Context, id string, quantity int) (*models.Product, error) {
	if quantity < 1 {
		return nil, apperr.Validation("Restock quantity must be at least 1")
	}
	p, err := s.products.RestockProduct(ctx, id, quantity)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, apperr.Internal(err, "failed to restock product %s", id)
	}

	s.logger.Info("Product restocked",
		zap.String("product_id", id),
		zap.Int("quantity", quantity),
		zap.Int("stock_quantity", p.StockQuantity))
	s.events.Publish(&events.StockRestocked{ProductID: id, Quantity: quantity})
	return p, nil
}

// LedgerReport is the reconciliation view of one product.
type LedgerReport struct {
	Summary   *models.LedgerSummary  `json:"summary"`
	Movements []models.StockMovement `json:"movements"`
}

func (s *Service) Ledger(ctx context.Context, productID string) (*LedgerReport, error) {
	if s.ledger == nil {
		return nil, apperr.New(apperr.KindNotFound, "Stock ledger is not enabled")
	}
	if _, err := s.products.FindProductByID(ctx, productID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, apperr.Internal(err, "failed to load product %s", productID)
	}

	summary, err := s.ledger.Summary(ctx, productID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to read stock ledger")
	}
	moves, err := s.ledger.Movements(ctx, productID, 50)
	if err != nil {
		return nil, apperr.Internal(err, "failed to read stock ledger")
	}
	return &LedgerReport{Summary: summary, Movements: moves}, nil
}
