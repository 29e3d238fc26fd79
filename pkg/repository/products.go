package repository

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// normalizeStage re-derives inStock and the out-of-stock status after a
// stock change, the same way models.Product.Normalize does.
var normalizeStage = bson.D{{Key: "$set", Value: bson.D{
	{Key: "inStock", Value: bson.M{"$cond": bson.A{
		"$trackInventory",
		bson.M{"$or": bson.A{
			bson.M{"$gt": bson.A{"$stockQuantity", 0}},
			bson.M{"$eq": bson.A{"$allowBackorders", true}},
		}},
		"$inStock",
	}}},
	{Key: "status", Value: bson.M{"$switch": bson.M{
		"branches": bson.A{
			bson.M{
				"case": bson.M{"$and": bson.A{
					"$trackInventory",
					bson.M{"$eq": bson.A{"$stockQuantity", 0}},
					bson.M{"$ne": bson.A{"$allowBackorders", true}},
					bson.M{"$eq": bson.A{"$status", models.ProductActive}},
				}},
				"then": models.ProductOutOfStock,
			},
			bson.M{
				"case": bson.M{"$and": bson.A{
					bson.M{"$gt": bson.A{"$stockQuantity", 0}},
					bson.M{"$eq": bson.A{"$status", models.ProductOutOfStock}},
				}},
				"then": models.ProductActive,
			},
		},
		"default": "$status",
	}}},
}}}

func (m *MongoRepository) InsertProducts(ctx context.Context, products ...*models.Product) error {
	if len(products) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, len(products))
	for i, p := range products {
		writes[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": p.ID}).
			SetReplacement(p).
			SetUpsert(true)
	}
	if _, err := m.products.BulkWrite(ctx, writes); err != nil {
		return fmt.Errorf("failed to write products: %w", err)
	}
	return nil
}

// DeleteProducts empties the catalog. Used by the seeder.
func (m *MongoRepository) DeleteProducts(ctx context.Context) (int64, error) {
	res, err := m.products.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete products: %w", err)
	}
	return res.DeletedCount, nil
}

func (m *MongoRepository) FindProductByID(ctx context.Context, id string) (*models.Product, error) {
	oid, err := objectID("product", id)
	if err != nil {
		return nil, err
	}
	var p models.Product
	if err := m.products.FindOne(ctx, bson.M{"_id": oid}).Decode(&p); err != nil {
		return nil, notFound("product", id, err)
	}
	return &p, nil
}

// ConditionalDecrementStock takes amount units only while at least amount
// are left. The guard and the decrement are one server-side update.
func (m *MongoRepository) ConditionalDecrementStock(ctx context.Context, id string, amount int) error {
	oid, err := objectID("product", id)
	if err != nil {
		return err
	}
	now := m.now()
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "stockQuantity", Value: bson.M{"$subtract": bson.A{"$stockQuantity", amount}}},
			{Key: "totalSold", Value: bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$totalSold", 0}}, amount}}},
			{Key: "lastSold", Value: now},
			{Key: "updatedAt", Value: now},
		}}},
		normalizeStage,
	}
	filter := bson.M{"_id": oid, "stockQuantity": bson.M{"$gte": amount}}

	res, err := m.products.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to decrement stock of %s: %w", id, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	ok, err := exists(ctx, m.products, oid)
	if err != nil {
		return fmt.Errorf("failed to check product %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	return fmt.Errorf("product %s has fewer than %d units: %w", id, amount, apperr.ErrInsufficientStock)
}

// IncrementStock gives reserved units back and takes them off totalSold.
func (m *MongoRepository) IncrementStock(ctx context.Context, id string, amount int) error {
	oid, err := objectID("product", id)
	if err != nil {
		return err
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "stockQuantity", Value: bson.M{"$add": bson.A{"$stockQuantity", amount}}},
			{Key: "totalSold", Value: bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{bson.M{"$ifNull": bson.A{"$totalSold", 0}}, amount}}}}},
			{Key: "updatedAt", Value: m.now()},
		}}},
		normalizeStage,
	}
	res, err := m.products.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to increment stock of %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (m *MongoRepository) RestockProduct(ctx context.Context, id string, amount int) (*models.Product, error) {
	oid, err := objectID("product", id)
	if err != nil {
		return nil, err
	}
	now := m.now()
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "stockQuantity", Value: bson.M{"$add": bson.A{"$stockQuantity", amount}}},
			{Key: "lastRestocked", Value: now},
			{Key: "updatedAt", Value: now},
		}}},
		normalizeStage,
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p models.Product
	if err := m.products.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&p); err != nil {
		return nil, notFound("product", id, err)
	}
	return &p, nil
}

func (m *MongoRepository) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, int64, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Search != "" {
		query["name"] = nameRegex(filter.Search)
	}

	total, err := m.products.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}
	sortBy := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	products, err := m.findProducts(ctx, query, findOptions(sortBy, filter.Page.Skip(), filter.Page.Limit))
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func nameRegex(search string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
}

func (m *MongoRepository) Categories(ctx context.Context) ([]string, error) {
	values, err := m.products.Distinct(ctx, "category", bson.M{"category": bson.M{"$nin": bson.A{"", nil}}})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	categories := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			categories = append(categories, s)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

func (m *MongoRepository) FindLowStock(ctx context.Context) ([]*models.Product, error) {
	query := bson.M{
		"trackInventory": true,
		"stockQuantity":  bson.M{"$gt": 0},
		"$expr":          bson.M{"$lte": bson.A{"$stockQuantity", "$lowStockAlert"}},
	}
	return m.findProducts(ctx, query, options.Find().SetSort(bson.D{{Key: "stockQuantity", Value: 1}}))
}

func (m *MongoRepository) FindOutOfStock(ctx context.Context) ([]*models.Product, error) {
	query := bson.M{"$or": bson.A{
		bson.M{"trackInventory": true, "stockQuantity": 0, "allowBackorders": bson.M{"$ne": true}},
		bson.M{"inStock": false},
		bson.M{"status": models.ProductOutOfStock},
	}}
	return m.findProducts(ctx, query, options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
}

func (m *MongoRepository) findProducts(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*models.Product, error) {
	cursor, err := m.products.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []*models.Product
	if err = cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

func (m *MongoRepository) CountProducts(ctx context.Context) (int64, error) {
	return m.products.CountDocuments(ctx, bson.M{})
}
