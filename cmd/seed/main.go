package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/logger"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description"`
	Price            float64  `yaml:"price"`
	OriginalPrice    float64  `yaml:"originalPrice"`
	Category         string   `yaml:"category"`
	Image            string   `yaml:"image"`
	Images           []string `yaml:"images"`
	Brand            string   `yaml:"brand"`
	Features         []string `yaml:"features"`
	Tags             []string `yaml:"tags"`
	StockQuantity    int      `yaml:"stockQuantity"`
	LowStockAlert    *int     `yaml:"lowStockAlert"`
	TrackInventory   *bool    `yaml:"trackInventory"`
	AllowBackorders  bool     `yaml:"allowBackorders"`
	MaxOrderQuantity *int     `yaml:"maxOrderQuantity"`
	Rating           float64  `yaml:"rating"`
	ReviewCount      int      `yaml:"reviewCount"`
	FastDelivery     bool     `yaml:"fastDelivery"`
}

func (s seedProduct) product() *models.Product {
	p := models.NewProduct(s.Name, s.Price, s.StockQuantity)
	p.Description = s.Description
	p.OriginalPrice = s.OriginalPrice
	p.Category = s.Category
	p.Image = s.Image
	p.Images = s.Images
	if len(p.Images) == 0 && s.Image != "" {
		p.Images = []string{s.Image}
	}
	p.Brand = s.Brand
	p.Features = s.Features
	p.Tags = s.Tags
	p.AllowBackorders = s.AllowBackorders
	p.Rating = s.Rating
	p.ReviewCount = s.ReviewCount
	p.FastDelivery = s.FastDelivery
	if s.LowStockAlert != nil {
		p.LowStockAlert = *s.LowStockAlert
	}
	if s.MaxOrderQuantity != nil {
		p.MaxOrderQuantity = *s.MaxOrderQuantity
	}
	if s.TrackInventory != nil && !*s.TrackInventory {
		p.TrackInventory = false
		p.InStock = true
	}
	p.Normalize()
	return p
}

func loadProducts(path string) ([]*models.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read products file: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse products file: %w", err)
	}

	products := make([]*models.Product, 0, len(file.Products))
	for i, s := range file.Products {
		if s.Name == "" || s.Category == "" || s.Price < 0 || s.StockQuantity < 0 {
			return nil, fmt.Errorf("product #%d (%q) needs a name, a category and non-negative price and stock", i+1, s.Name)
		}
		products = append(products, s.product())
	}
	return products, nil
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	productsPath := flag.String("products", "config/products.yaml", "path to the product catalog")
	reset := flag.Bool("reset", false, "delete existing products first")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	products, err := loadProducts(*productsPath)
	if err != nil {
		log.Fatal("Invalid catalog", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	mongo, err := repository.NewMongoRepository(ctx, &cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer mongo.Close(context.Background())

	if err := mongo.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to create indexes", zap.Error(err))
	}
	if *reset {
		deleted, err := mongo.DeleteProducts(ctx)
		if err != nil {
			log.Fatal("Failed to delete products", zap.Error(err))
		}
		log.Info("Existing products deleted", zap.Int64("count", deleted))
	}
	if err := mongo.InsertProducts(ctx, products...); err != nil {
		log.Fatal("Failed to insert products", zap.Error(err))
	}
	log.Info("Catalog seeded", zap.Int("products", len(products)))
}
