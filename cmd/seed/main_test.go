package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/storefront/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadProducts(t *testing.T) {
	path := writeCatalog(t, `
products:
  - name: Mug
    category: Home
    price: 9.5
    stockQuantity: 0
    allowBackorders: true
  - name: Book
    category: Books
    price: 12
    stockQuantity: 0
  - name: Gift Card
    category: Books
    price: 10
    trackInventory: false
    maxOrderQuantity: 0
  - name: Lamp
    category: Home
    price: 30
    stockQuantity: 3
    lowStockAlert: 2
`)
	products, err := loadProducts(path)
	require.NoError(t, err)
	require.Len(t, products, 4)

	mug, book, card, lamp := products[0], products[1], products[2], products[3]
	assert.Equal(t, models.ProductActive, mug.Status)
	assert.Equal(t, models.StockBackorder, mug.StockStatus())

	assert.Equal(t, models.ProductOutOfStock, book.Status)
	assert.False(t, book.IsPurchasable())

	assert.False(t, card.TrackInventory)
	assert.True(t, card.IsPurchasable())
	assert.Equal(t, 0, card.MaxOrderQuantity)

	assert.Equal(t, models.StockInStock, lamp.StockStatus())
	assert.Equal(t, models.DefaultMaxOrderQuantity, lamp.MaxOrderQuantity)
}

func TestLoadProducts_Invalid(t *testing.T) {
	_, err := loadProducts(writeCatalog(t, "products:\n  - name: Nameless\n    price: 3\n"))
	assert.ErrorContains(t, err, "product #1")

	_, err = loadProducts(writeCatalog(t, "products: [\n"))
	assert.ErrorContains(t, err, "failed to parse")

	_, err = loadProducts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read")
}

func TestShippedCatalogLoads(t *testing.T) {
	products, err := loadProducts(filepath.Join("..", "..", "config", "products.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, products)
}
