package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further mutation is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentPayPal     PaymentMethod = "paypal"
	PaymentCOD        PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentDebitCard, PaymentPayPal, PaymentCOD:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type ShippingAddress struct {
	FullName   string `bson:"fullName" json:"fullName"`
	Address    string `bson:"address" json:"address"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postalCode" json:"postalCode"`
	Country    string `bson:"country" json:"country"`
	Phone      string `bson:"phone" json:"phone"`
}

// MissingFields lists the json names of empty address fields.
func (a ShippingAddress) MissingFields() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("fullName", a.FullName)
	check("address", a.Address)
	check("city", a.City)
	check("postalCode", a.PostalCode)
	check("country", a.Country)
	check("phone", a.Phone)
	return missing
}

// LineItem snapshots the product as it was sold. ReservedQuantity is what was
// taken from physical stock and is what a cancellation gives back. Product is
// only filled for responses and never persisted.
type LineItem struct {
	ProductID           primitive.ObjectID `bson:"productId" json:"productId"`
	Name                string             `bson:"name" json:"name"`
	Price               float64            `bson:"price" json:"price"`
	Image               string             `bson:"image" json:"image"`
	Quantity            int                `bson:"quantity" json:"quantity"`
	ReservedQuantity    int                `bson:"reservedQuantity" json:"reservedQuantity"`
	BackorderedQuantity int                `bson:"backorderedQuantity,omitempty" json:"backorderedQuantity,omitempty"`
	Product             *Product           `bson:"-" json:"product,omitempty"`
}

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	Items           []LineItem         `bson:"items" json:"items"`
	Subtotal        float64            `bson:"subtotal" json:"subtotal"`
	Shipping        float64            `bson:"shipping" json:"shipping"`
	Tax             float64            `bson:"tax" json:"tax"`
	TotalAmount     float64            `bson:"totalAmount" json:"totalAmount"`
	ShippingAddress ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   PaymentMethod      `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus   PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	OrderStatus     OrderStatus        `bson:"orderStatus" json:"orderStatus"`
	IsPaid          bool               `bson:"isPaid" json:"isPaid"`
	PaidAt          *time.Time         `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	DeliveredAt     *time.Time         `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time         `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// OrderNumber is the short customer-facing reference shown on dashboards.
func (o *Order) OrderNumber() string {
	hex := o.ID.Hex()
	return "ORD" + strings.ToUpper(hex[len(hex)-6:])
}

// Clone returns a deep copy without populated products.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]LineItem, len(o.Items))
	for i, item := range o.Items {
		item.Product = nil
		c.Items[i] = item
	}
	for _, ts := range []**time.Time{&c.PaidAt, &c.DeliveredAt, &c.CancelledAt} {
		if *ts != nil {
			t := **ts
			*ts = &t
		}
	}
	return &c
}

// StatusChange is the set of fields written together with a status transition.
type StatusChange struct {
	To            OrderStatus
	At            time.Time
	DeliveredAt   *time.Time
	CancelledAt   *time.Time
	PaidAt        *time.Time
	IsPaid        *bool
	PaymentStatus PaymentStatus
}

// Apply mutates o the same way a store persists the change.
func (c StatusChange) Apply(o *Order) {
	o.OrderStatus = c.To
	o.UpdatedAt = c.At
	if c.DeliveredAt != nil {
		o.DeliveredAt = c.DeliveredAt
	}
	if c.CancelledAt != nil {
		o.CancelledAt = c.CancelledAt
	}
	if c.PaidAt != nil {
		o.PaidAt = c.PaidAt
	}
	if c.IsPaid != nil {
		o.IsPaid = *c.IsPaid
	}
	if c.PaymentStatus != "" {
		o.PaymentStatus = c.PaymentStatus
	}
}

// Page selects a window of a newest-first listing.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Normalize(defaultLimit int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	return p
}

func (p Page) Skip() int {
	return (p.Page - 1) * p.Limit
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func NewPagination(p Page, total int64) Pagination {
	pages := int64(0)
	if p.Limit > 0 {
		pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}
