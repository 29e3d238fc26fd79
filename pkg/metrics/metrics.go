// Package metrics holds the prometheus collectors of the storefront.
package metrics

import (
	"strconv"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	ordersPlaced    prometheus.Counter
	orderValue      prometheus.Counter
	ordersCancelled *prometheus.CounterVec
	statusChanges   *prometheus.CounterVec
	stockUnits      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ordersPlaced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders committed.",
		}),
		orderValue: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_value_total",
			Help:      "Sum of totalAmount over committed orders.",
		}),
		ordersCancelled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Cancelled orders by the role that cancelled them.",
		}, []string{"by"}),
		statusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_changes_total",
			Help:      "Order status transitions by target status.",
		}, []string{"to"}),
		stockUnits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_units_total",
			Help:      "Units moved in or out of stock by movement kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) OrderPlaced(order *models.Order, reserved int) {
	m.ordersPlaced.Inc()
	m.orderValue.Add(order.TotalAmount)
	m.stockUnits.WithLabelValues(string(models.MovementReserve)).Add(float64(reserved))
}

func (m *Metrics) OrderCancelled(by models.Role, restored int) {
	m.ordersCancelled.WithLabelValues(string(by)).Inc()
	m.statusChanges.WithLabelValues(string(models.OrderCancelled)).Inc()
	m.stockUnits.WithLabelValues(string(models.MovementRestore)).Add(float64(restored))
}

func (m *Metrics) StatusChanged(to models.OrderStatus) {
	m.statusChanges.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) Restocked(quantity int) {
	m.stockUnits.WithLabelValues(string(models.MovementRestock)).Add(float64(quantity))
}
