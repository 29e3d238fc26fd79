// Package cart keeps the per-user cart and wishlist.
package cart

import (
	"context"
	"errors"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type UserStore interface {
	FindUser(ctx context.Context, userID string) (*models.User, error)
	SaveCart(ctx context.Context, userID string, items []models.CartItem) error
	AddToWishlist(ctx context.Context, userID, productID string) (bool, error)
	RemoveFromWishlist(ctx context.Context, userID, productID string) error
}

type ProductFinder interface {
	FindProductByID(ctx context.Context, id string) (*models.Product, error)
}

type Service struct {
	users    UserStore
	products ProductFinder
	logger   *zap.Logger
}

func NewService(users UserStore, products ProductFinder, logger *zap.Logger) *Service {
	return &Service{users: users, products: products, logger: logger}
}

func (s *Service) load(ctx context.Context, userID string) (*models.User, error) {
	if !primitive.IsValidObjectID(userID) {
		return nil, apperr.New(apperr.KindUnauthenticated, "Invalid user id")
	}
	u, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load user %s", userID)
	}
	return u, nil
}

func (s *Service) product(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.products.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, apperr.Internal(err, "failed to load product %s", id)
	}
	return p, nil
}

// Cart returns the cart with live products. Lines whose product is gone are left out.
func (s *Service) Cart(ctx context.Context, userID string) ([]models.CartItem, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.populateCart(ctx, u.Cart), nil
}

func (s *Service) populateCart(ctx context.Context, items []models.CartItem) []models.CartItem {
	out := make([]models.CartItem, 0, len(items))
	for _, item := range items {
		p, err := s.products.FindProductByID(ctx, item.ProductID.Hex())
		if err != nil {
			continue
		}
		item.Product = p
		out = append(out, item)
	}
	return out
}

// Add puts quantity units of productID into the cart, merging with an
// existing line. A non-positive quantity counts as one.
func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) ([]models.CartItem, error) {
	if quantity < 1 {
		quantity = 1
	}
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}

	items := u.Cart
	i := indexOf(items, p.ID)
	if i < 0 {
		items = append(items, models.CartItem{ProductID: p.ID})
		i = len(items) - 1
	}
	want := items[i].Quantity + quantity
	if err := checkQuantity(p, want); err != nil {
		return nil, err
	}
	items[i].Quantity = want

	return s.save(ctx, userID, items)
}

// Update sets the quantity of a line. Quantities below one remove it.
func (s *Service) Update(ctx context.Context, userID, productID string, quantity int) ([]models.CartItem, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	pid, err := primitive.ObjectIDFromHex(productID)
	i := indexOf(u.Cart, pid)
	if err != nil || i < 0 {
		return nil, apperr.NotFound("Item not found in cart")
	}

	items := u.Cart
	if quantity < 1 {
		items = append(items[:i], items[i+1:]...)
		return s.save(ctx, userID, items)
	}

	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := checkQuantity(p, quantity); err != nil {
		return nil, err
	}
	items[i].Quantity = quantity
	return s.save(ctx, userID, items)
}

func (s *Service) Remove(ctx context.Context, userID, productID string) ([]models.CartItem, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := u.Cart
	if pid, err := primitive.ObjectIDFromHex(productID); err == nil {
		if i := indexOf(items, pid); i >= 0 {
			items = append(items[:i], items[i+1:]...)
		}
	}
	return s.save(ctx, userID, items)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if _, err := s.load(ctx, userID); err != nil {
		return err
	}
	if err := s.users.SaveCart(ctx, userID, nil); err != nil {
		return apperr.Internal(err, "failed to clear cart of %s", userID)
	}
	return nil
}

func (s *Service) save(ctx context.Context, userID string, items []models.CartItem) ([]models.CartItem, error) {
	if err := s.users.SaveCart(ctx, userID, items); err != nil {
		return nil, apperr.Internal(err, "failed to save cart of %s", userID)
	}
	s.logger.Debug("Cart saved", zap.String("user_id", userID), zap.Int("lines", len(items)))
	return s.populateCart(ctx, items), nil
}

func indexOf(items []models.CartItem, id primitive.ObjectID) int {
	for i, item := range items {
		if item.ProductID == id {
			return i
		}
	}
	return -1
}

// checkQuantity rejects cart lines that could never be ordered as they are.
func checkQuantity(p *models.Product, quantity int) error {
	if !p.IsPurchasable() {
		return apperr.Validation("%s is not available for purchase", p.Name)
	}
	if p.MaxOrderQuantity > 0 && quantity > p.MaxOrderQuantity {
		return apperr.Validation("Cannot order more than %d of %s", p.MaxOrderQuantity, p.Name)
	}
	if p.TrackInventory && !p.AllowBackorders && quantity > p.StockQuantity {
		return apperr.Validation("Only %d of %s left in stock", p.StockQuantity, p.Name)
	}
	return nil
}

// Wishlist returns the wishlisted products that still exist.
func (s *Service) Wishlist(ctx context.Context, userID string) ([]*models.Product, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Product, 0, len(u.Wishlist))
	for _, id := range u.Wishlist {
		if p, err := s.products.FindProductByID(ctx, id.Hex()); err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) AddToWishlist(ctx context.Context, userID, productID string) ([]*models.Product, error) {
	if _, err := s.load(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.product(ctx, productID); err != nil {
		return nil, err
	}
	added, err := s.users.AddToWishlist(ctx, userID, productID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to update wishlist of %s", userID)
	}
	if !added {
		return nil, apperr.Validation("Product already in wishlist")
	}
	return s.Wishlist(ctx, userID)
}

func (s *Service) RemoveFromWishlist(ctx context.Context, userID, productID string) ([]*models.Product, error) {
	if _, err := s.load(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.users.RemoveFromWishlist(ctx, userID, productID); err != nil {
		return nil, apperr.Internal(err, "failed to update wishlist of %s", userID)
	}
	return s.Wishlist(ctx, userID)
}
