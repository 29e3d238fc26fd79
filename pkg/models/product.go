package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProductStatus string

const (
	ProductActive       ProductStatus = "active"
	ProductInactive     ProductStatus = "inactive"
	ProductOutOfStock   ProductStatus = "out_of_stock"
	ProductDiscontinued ProductStatus = "discontinued"
)

type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockLow        StockStatus = "low_stock"
	StockBackorder  StockStatus = "backorder"
	StockOutOfStock StockStatus = "out_of_stock"
)

const (
	DefaultLowStockAlert    = 5
	DefaultMaxOrderQuantity = 10
)

type Product struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name             string             `bson:"name" json:"name"`
	Description      string             `bson:"description" json:"description"`
	Price            float64            `bson:"price" json:"price"`
	OriginalPrice    float64            `bson:"originalPrice,omitempty" json:"originalPrice,omitempty"`
	Category         string             `bson:"category" json:"category"`
	Image            string             `bson:"image" json:"image"`
	Images           []string           `bson:"images,omitempty" json:"images,omitempty"`
	SKU              string             `bson:"sku,omitempty" json:"sku,omitempty"`
	Slug             string             `bson:"slug,omitempty" json:"slug,omitempty"`
	Brand            string             `bson:"brand,omitempty" json:"brand,omitempty"`
	Features         []string           `bson:"features,omitempty" json:"features,omitempty"`
	Tags             []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	InStock          bool               `bson:"inStock" json:"inStock"`
	StockQuantity    int                `bson:"stockQuantity" json:"stockQuantity"`
	LowStockAlert    int                `bson:"lowStockAlert" json:"lowStockAlert"`
	TrackInventory   bool               `bson:"trackInventory" json:"trackInventory"`
	AllowBackorders  bool               `bson:"allowBackorders" json:"allowBackorders"`
	MaxOrderQuantity int                `bson:"maxOrderQuantity" json:"maxOrderQuantity"`
	Status           ProductStatus      `bson:"status" json:"status"`
	Rating           float64            `bson:"rating" json:"rating"`
	ReviewCount      int                `bson:"reviewCount" json:"reviewCount"`
	FastDelivery     bool               `bson:"fastDelivery" json:"fastDelivery"`
	TotalSold        int                `bson:"totalSold" json:"totalSold"`
	LastSold         *time.Time         `bson:"lastSold,omitempty" json:"lastSold,omitempty"`
	LastRestocked    *time.Time         `bson:"lastRestocked,omitempty" json:"lastRestocked,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewProduct returns an active, inventory-tracked product with catalog defaults.
func NewProduct(name string, price float64, stock int) *Product {
	now := time.Now().UTC()
	p := &Product{
		ID:               primitive.NewObjectID(),
		Name:             name,
		Price:            price,
		StockQuantity:    stock,
		LowStockAlert:    DefaultLowStockAlert,
		TrackInventory:   true,
		MaxOrderQuantity: DefaultMaxOrderQuantity,
		Status:           ProductActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	p.Normalize()
	return p
}

// Normalize re-derives InStock and the out-of-stock status from the counters.
func (p *Product) Normalize() {
	if p.StockQuantity < 0 {
		p.StockQuantity = 0
	}
	if !p.TrackInventory {
		return
	}
	p.InStock = p.StockQuantity > 0 || p.AllowBackorders
	switch {
	case p.StockQuantity == 0 && !p.AllowBackorders && p.Status == ProductActive:
		p.Status = ProductOutOfStock
	case p.StockQuantity > 0 && p.Status == ProductOutOfStock:
		p.Status = ProductActive
	}
}

// Reserve applies the counters of a successful stock decrement.
func (p *Product) Reserve(quantity int, at time.Time) {
	p.StockQuantity -= quantity
	p.TotalSold += quantity
	p.LastSold = &at
	p.UpdatedAt = at
	p.Normalize()
}

// Restore reverses Reserve for quantity units.
func (p *Product) Restore(quantity int, at time.Time) {
	p.StockQuantity += quantity
	p.TotalSold = max(0, p.TotalSold-quantity)
	p.UpdatedAt = at
	p.Normalize()
}

// Restock adds delivered units without touching the sold counter.
func (p *Product) Restock(quantity int, at time.Time) {
	p.StockQuantity += quantity
	p.LastRestocked = &at
	p.UpdatedAt = at
	p.Normalize()
}

func (p *Product) StockStatus() StockStatus {
	if !p.TrackInventory {
		if p.InStock {
			return StockInStock
		}
		return StockOutOfStock
	}
	switch {
	case p.StockQuantity > p.LowStockAlert:
		return StockInStock
	case p.StockQuantity > 0:
		return StockLow
	case p.AllowBackorders:
		return StockBackorder
	default:
		return StockOutOfStock
	}
}

func (p *Product) IsPurchasable() bool {
	if p.Status != ProductActive && p.Status != ProductOutOfStock {
		return false
	}
	if !p.TrackInventory {
		return p.InStock
	}
	return p.StockQuantity > 0 || p.AllowBackorders
}

func (p *Product) DiscountPercentage() int {
	if p.OriginalPrice > p.Price && p.OriginalPrice > 0 {
		return int(math.Round((p.OriginalPrice - p.Price) / p.OriginalPrice * 100))
	}
	return 0
}

// Clone returns a copy that shares no mutable state with p.
func (p *Product) Clone() *Product {
	c := *p
	c.Images = append([]string(nil), p.Images...)
	c.Features = append([]string(nil), p.Features...)
	c.Tags = append([]string(nil), p.Tags...)
	if p.LastSold != nil {
		t := *p.LastSold
		c.LastSold = &t
	}
	if p.LastRestocked != nil {
		t := *p.LastRestocked
		c.LastRestocked = &t
	}
	return &c
}

// ProductFilter narrows catalog listings. Empty fields match everything.
type ProductFilter struct {
	Category string
	Search   string
	Page     Page
}
