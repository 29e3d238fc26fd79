// Package memory is an in-process implementation of the storefront stores.
// It backs tests and the "memory" driver for local runs; nothing survives a
// restart.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	// txMu serializes WithTransaction callers; mu guards the maps.
	txMu sync.Mutex
	mu   sync.RWMutex

	products map[primitive.ObjectID]*models.Product
	orders   map[primitive.ObjectID]*models.Order
	users    map[primitive.ObjectID]*models.User

	now func() time.Time
}

func New() *Store {
	return &Store{
		products: make(map[primitive.ObjectID]*models.Product),
		orders:   make(map[primitive.ObjectID]*models.Order),
		users:    make(map[primitive.ObjectID]*models.User),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func parseID(kind, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%s %q: %w", kind, id, apperr.ErrNotFound)
	}
	return oid, nil
}

type snapshot struct {
	products map[primitive.ObjectID]*models.Product
	orders   map[primitive.ObjectID]*models.Order
	users    map[primitive.ObjectID]*models.User
}

type txKey struct{}

// WithTransaction runs fn with every other write excluded and puts all maps
// back the way they were if fn fails. Writes made with the ctx passed to fn
// join the transaction; any other write waits until it ends.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTransaction(ctx) {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) inTransaction(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// writer holds txMu for a write made outside a transaction and returns the
// matching unlock.
func (s *Store) writer(ctx context.Context) func() {
	if s.inTransaction(ctx) {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		products: make(map[primitive.ObjectID]*models.Product, len(s.products)),
		orders:   make(map[primitive.ObjectID]*models.Order, len(s.orders)),
		users:    make(map[primitive.ObjectID]*models.User, len(s.users)),
	}
	for id, p := range s.products {
		snap.products[id] = p.Clone()
	}
	for id, o := range s.orders {
		snap.orders[id] = o.Clone()
	}
	for id, u := range s.users {
		snap.users[id] = cloneUser(u)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products, s.orders, s.users = snap.products, snap.orders, snap.users
}

// Products

func (s *Store) InsertProducts(ctx context.Context, products ...*models.Product) error {
	defer s.writer(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		s.products[p.ID] = p.Clone()
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	oid, err := parseID("product", id)
	if err != nil {
		return err
	}
	defer s.writer(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, oid)
	return nil
}

func (s *Store) FindProductByID(_ context.Context, id string) (*models.Product, error) {
	oid, err := parseID("product", id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[oid]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *Store) ConditionalDecrementStock(ctx context.Context, id string, amount int) error {
	oid, err := parseID("product", id)
	if err != nil {
		return err
	}
	defer s.writer(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[oid]
	if !ok {
		return fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	if p.StockQuantity < amount {
		return fmt.Errorf("product %s has %d, need %d: %w", id, p.StockQuantity, amount, apperr.ErrInsufficientStock)
	}
	p.Reserve(amount, s.now())
	return nil
}

func (s *Store) IncrementStock(ctx context.Context, id string, amount int) error {
	oid, err := parseID("product", id)
	if err != nil {
		return err
	}
	defer s.writer(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[oid]
	if !ok {
		return fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	p.Restore(amount, s.now())
	return nil
}

func (s *Store) RestockProduct(ctx context.Context, id string, amount int) (*models.Product, error) {
	oid, err := parseID("product", id)
	if err != nil {
		return nil, err
	}
	defer s.writer(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[oid]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	p.Restock(amount, s.now())
	return p.Clone(), nil
}

func (s *Store) ListProducts(_ context.Context, filter models.ProductFilter) ([]*models.Product, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var matched []*models.Product
	for _, p := range s.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return bytes.Compare(matched[i].ID[:], matched[j].ID[:]) > 0
	})

	total := int64(len(matched))
	return cloneProducts(window(matched, filter.Page)), total, nil
}

func (s *Store) Categories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var categories []string
	for _, p := range s.products {
		if p.Category != "" && !slices.Contains(categories, p.Category) {
			categories = append(categories, p.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

func (s *Store) FindLowStock(_ context.Context) ([]*models.Product, error) {
	return s.filterProducts(func(p *models.Product) bool {
		return p.TrackInventory && p.StockQuantity > 0 && p.StockQuantity <= p.LowStockAlert
	}), nil
}

func (s *Store) FindOutOfStock(_ context.Context) ([]*models.Product, error) {
	return s.filterProducts(func(p *models.Product) bool {
		return (p.TrackInventory && p.StockQuantity == 0 && !p.AllowBackorders) ||
			!p.InStock || p.Status == models.ProductOutOfStock
	}), nil
}

func (s *Store) filterProducts(match func(*models.Product) bool) []*models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Product
	for _, p := range s.products {
		if match(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockQuantity < out[j].StockQuantity })
	return out
}

// Orders

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	defer s.writer(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, ok := s.orders[order.ID]; ok {
		return fmt.Errorf("order %s already exists", order.ID.Hex())
	}
	s.orders[order.ID] = order.Clone()
	return nil
}

func (s *Store) FindOrderByID(_ context.Context, id string) (*models.Order, error) {
	oid, err := parseID("order", id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[oid]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	return o.Clone(), nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, from models.OrderStatus, change models.StatusChange) error {
	oid, err := parseID("order", id)
	if err != nil {
		return err
	}
	defer s.writer(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[oid]
	if !ok {
		return fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	if o.OrderStatus != from {
		return fmt.Errorf("order %s is %s, not %s: %w", id, o.OrderStatus, from, apperr.ErrInvalidTransition)
	}
	change.Apply(o)
	return nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string) ([]*models.Order, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Order
	for _, o := range s.orders {
		if o.UserID == uid {
			out = append(out, o.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) ListOrders(_ context.Context, page models.Page) ([]*models.Order, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sortNewestFirst(out)
	total := int64(len(out))
	out = window(out, page)
	for i, o := range out {
		out[i] = o.Clone()
	}
	return out, total, nil
}

func sortNewestFirst(list []*models.Order) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return bytes.Compare(list[i].ID[:], list[j].ID[:]) > 0
	})
}

// Dashboard

func (s *Store) CountProducts(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.products)), nil
}

func (s *Store) CountUsers(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *Store) CountOrders(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.orders)), nil
}

func (s *Store) DeliveredRevenue(_ context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, o := range s.orders {
		if o.OrderStatus == models.OrderDelivered {
			total += o.TotalAmount
		}
	}
	return total, nil
}

func (s *Store) RecentOrders(ctx context.Context, n int) ([]*models.Order, error) {
	list, _, err := s.ListOrders(ctx, models.Page{Page: 1, Limit: n})
	return list, err
}

// Users

func (s *Store) FindUser(_ context.Context, userID string) (*models.User, error) {
	oid, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[oid]
	if !ok {
		return &models.User{ID: oid}, nil
	}
	return cloneUser(u), nil
}

func (s *Store) SaveCart(ctx context.Context, userID string, items []models.CartItem) error {
	oid, err := parseID("user", userID)
	if err != nil {
		return err
	}
	defer s.writer(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(oid)
	u.Cart = make([]models.CartItem, len(items))
	for i, item := range items {
		u.Cart[i] = models.CartItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) AddToWishlist(ctx context.Context, userID, productID string) (bool, error) {
	oid, err := parseID("user", userID)
	if err != nil {
		return false, err
	}
	pid, err := parseID("product", productID)
	if err != nil {
		return false, err
	}
	defer s.writer(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(oid)
	if slices.Contains(u.Wishlist, pid) {
		return false, nil
	}
	u.Wishlist = append(u.Wishlist, pid)
	u.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) RemoveFromWishlist(ctx context.Context, userID, productID string) error {
	oid, err := parseID("user", userID)
	if err != nil {
		return err
	}
	pid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return nil
	}
	defer s.writer(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(oid)
	u.Wishlist = slices.DeleteFunc(u.Wishlist, func(id primitive.ObjectID) bool { return id == pid })
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) userLocked(id primitive.ObjectID) *models.User {
	u, ok := s.users[id]
	if !ok {
		now := s.now()
		u = &models.User{ID: id, CreatedAt: now, UpdatedAt: now}
		s.users[id] = u
	}
	return u
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Cart = append([]models.CartItem(nil), u.Cart...)
	c.Wishlist = append([]primitive.ObjectID(nil), u.Wishlist...)
	return &c
}

func cloneProducts(list []*models.Product) []*models.Product {
	out := make([]*models.Product, len(list))
	for i, p := range list {
		out[i] = p.Clone()
	}
	return out
}

func window[T any](list []T, page models.Page) []T {
	if page.Limit <= 0 {
		return list
	}
	start := page.Skip()
	if start >= len(list) {
		return nil
	}
	end := min(start+page.Limit, len(list))
	return list[start:end]
}
