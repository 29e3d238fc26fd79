package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProduct_ReserveAndRestore(t *testing.T) {
	p := NewProduct("Desk Lamp", 25, 3)
	now := time.Now()

	p.Reserve(3, now)
	assert.Equal(t, 0, p.StockQuantity)
	assert.Equal(t, 3, p.TotalSold)
	assert.False(t, p.InStock)
	assert.Equal(t, ProductOutOfStock, p.Status)
	assert.Equal(t, StockOutOfStock, p.StockStatus())

	p.Restore(2, now)
	assert.Equal(t, 2, p.StockQuantity)
	assert.Equal(t, 1, p.TotalSold)
	assert.True(t, p.InStock)
	assert.Equal(t, ProductActive, p.Status)
	assert.Equal(t, StockLow, p.StockStatus())

	p.Restore(5, now)
	assert.Equal(t, 0, p.TotalSold, "sold counter is floored at zero")
}

func TestProduct_StockStatus(t *testing.T) {
	p := NewProduct("Kettle", 40, 20)
	assert.Equal(t, StockInStock, p.StockStatus())

	p.StockQuantity = 0
	p.AllowBackorders = true
	p.Normalize()
	assert.Equal(t, StockBackorder, p.StockStatus())
	assert.True(t, p.InStock)
	assert.Equal(t, ProductActive, p.Status)
	assert.True(t, p.IsPurchasable())

	p.TrackInventory = false
	p.InStock = false
	assert.Equal(t, StockOutOfStock, p.StockStatus())
	assert.False(t, p.IsPurchasable())
}

func TestProduct_Purchasable(t *testing.T) {
	p := NewProduct("Mug", 5, 1)
	assert.True(t, p.IsPurchasable())

	p.Status = ProductDiscontinued
	assert.False(t, p.IsPurchasable())
}

func TestProduct_DiscountPercentage(t *testing.T) {
	p := NewProduct("Headphones", 2999, 1)
	p.OriginalPrice = 3999
	assert.Equal(t, 25, p.DiscountPercentage())

	p.OriginalPrice = 0
	assert.Equal(t, 0, p.DiscountPercentage())
}

func TestOrderStatus(t *testing.T) {
	assert.True(t, OrderProcessing.Valid())
	assert.False(t, OrderStatus("returned").Valid())
	assert.True(t, OrderDelivered.Terminal())
	assert.True(t, OrderCancelled.Terminal())
	assert.False(t, OrderShipped.Terminal())
}

func TestShippingAddress_MissingFields(t *testing.T) {
	addr := ShippingAddress{FullName: "Asha Rao", Address: "12 MG Road", City: "Pune", Phone: " "}
	assert.Equal(t, []string{"postalCode", "country", "phone"}, addr.MissingFields())
}

func TestPagination(t *testing.T) {
	p := Page{Page: 0, Limit: 0}.Normalize(10)
	assert.Equal(t, Page{Page: 1, Limit: 10}, p)
	assert.Equal(t, 0, p.Skip())
	assert.Equal(t, int64(3), NewPagination(p, 21).Pages)
	assert.Equal(t, 20, Page{Page: 3, Limit: 10}.Skip())
}
