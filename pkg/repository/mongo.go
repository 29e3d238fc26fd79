package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	productsCollection = "products"
	ordersCollection   = "orders"
	usersCollection    = "users"
)

// MongoRepository stores products, orders and user carts in MongoDB.
type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig

	products *mongo.Collection
	orders   *mongo.Collection
	users    *mongo.Collection

	now func() time.Time
}

func NewMongoRepository(ctx context.Context, cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	return &MongoRepository{
		client:   client,
		database: db,
		config:   cfg,
		products: db.Collection(productsCollection),
		orders:   db.Collection(ordersCollection),
		users:    db.Collection(usersCollection),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// EnsureIndexes creates the indexes behind the listing queries.
func (m *MongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		m.products: {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "stockQuantity", Value: 1}}},
		},
		m.orders: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "orderStatus", Value: 1}}},
		},
	}
	for coll, specs := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// WithTransaction runs fn in a multi-document transaction. The driver retries
// fn on transient errors. With transactions disabled (standalone servers) fn
// runs directly and relies on the guarded updates alone.
func (m *MongoRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.config.Transactions {
		return fn(ctx)
	}

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func objectID(kind, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%s %q: %w", kind, id, apperr.ErrNotFound)
	}
	return oid, nil
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", kind, id, apperr.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
}

// exists tells a guard miss apart from a missing document.
func exists(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) (bool, error) {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func findOptions(sort bson.D, skip, limit int) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetSkip(int64(skip)).SetLimit(int64(limit))
	}
	return opts
}
