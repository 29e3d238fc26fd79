// Package admin builds the dashboard statistics.
package admin

import (
	"context"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"golang.org/x/sync/errgroup"
)

const recentOrders = 5

type StatsStore interface {
	CountProducts(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	CountOrders(ctx context.Context) (int64, error)
	DeliveredRevenue(ctx context.Context) (float64, error)
	RecentOrders(ctx context.Context, n int) ([]*models.Order, error)
}

type RecentOrder struct {
	ID          string             `json:"_id"`
	OrderNumber string             `json:"orderNumber"`
	TotalAmount float64            `json:"totalAmount"`
	OrderStatus models.OrderStatus `json:"orderStatus"`
	CreatedAt   time.Time          `json:"createdAt"`
}

type Stats struct {
	TotalProducts int64         `json:"totalProducts"`
	TotalUsers    int64         `json:"totalUsers"`
	TotalOrders   int64         `json:"totalOrders"`
	TotalRevenue  float64       `json:"totalRevenue"`
	RecentOrders  []RecentOrder `json:"recentOrders"`
}

type Service struct {
	store StatsStore
}

func NewService(store StatsStore) *Service {
	return &Service{store: store}
}

// Stats runs the dashboard queries concurrently.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var (
		stats  Stats
		recent []*models.Order
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalProducts, err = s.store.CountProducts(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalUsers, err = s.store.CountUsers(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalOrders, err = s.store.CountOrders(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalRevenue, err = s.store.DeliveredRevenue(ctx)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.store.RecentOrders(ctx, recentOrders)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal(err, "failed to load dashboard stats")
	}

	stats.RecentOrders = make([]RecentOrder, len(recent))
	for i, o := range recent {
		stats.RecentOrders[i] = RecentOrder{
			ID:          o.ID.Hex(),
			OrderNumber: o.OrderNumber(),
			TotalAmount: o.TotalAmount,
			OrderStatus: o.OrderStatus,
			CreatedAt:   o.CreatedAt,
		}
	}
	return &stats, nil
}
