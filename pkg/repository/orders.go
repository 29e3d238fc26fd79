package repository

import (
	"context"
	"fmt"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (m *MongoRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, err := m.orders.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (m *MongoRepository) FindOrderByID(ctx context.Context, id string) (*models.Order, error) {
	oid, err := objectID("order", id)
	if err != nil {
		return nil, err
	}
	var o models.Order
	if err := m.orders.FindOne(ctx, bson.M{"_id": oid}).Decode(&o); err != nil {
		return nil, notFound("order", id, err)
	}
	return &o, nil
}

// UpdateOrderStatus writes change only while the stored status is still from.
func (m *MongoRepository) UpdateOrderStatus(ctx context.Context, id string, from models.OrderStatus, change models.StatusChange) error {
	oid, err := objectID("order", id)
	if err != nil {
		return err
	}

	set := bson.M{"orderStatus": change.To, "updatedAt": change.At}
	if change.DeliveredAt != nil {
		set["deliveredAt"] = change.DeliveredAt
	}
	if change.CancelledAt != nil {
		set["cancelledAt"] = change.CancelledAt
	}
	if change.PaidAt != nil {
		set["paidAt"] = change.PaidAt
	}
	if change.IsPaid != nil {
		set["isPaid"] = *change.IsPaid
	}
	if change.PaymentStatus != "" {
		set["paymentStatus"] = change.PaymentStatus
	}

	res, err := m.orders.UpdateOne(ctx, bson.M{"_id": oid, "orderStatus": from}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", id, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	ok, err := exists(ctx, m.orders, oid)
	if err != nil {
		return fmt.Errorf("failed to check order %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	return fmt.Errorf("order %s is no longer %s: %w", id, from, apperr.ErrInvalidTransition)
}

func (m *MongoRepository) ListOrdersByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, nil
	}
	return m.findOrders(ctx, bson.M{"userId": uid}, options.Find().SetSort(newestFirst))
}

func (m *MongoRepository) ListOrders(ctx context.Context, page models.Page) ([]*models.Order, int64, error) {
	total, err := m.orders.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	list, err := m.findOrders(ctx, bson.M{}, findOptions(newestFirst, page.Skip(), page.Limit))
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (m *MongoRepository) RecentOrders(ctx context.Context, n int) ([]*models.Order, error) {
	return m.findOrders(ctx, bson.M{}, findOptions(newestFirst, 0, n))
}

func (m *MongoRepository) findOrders(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*models.Order, error) {
	cursor, err := m.orders.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find orders: %w", err)
	}
	defer cursor.Close(ctx)

	var list []*models.Order
	if err = cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return list, nil
}

func (m *MongoRepository) CountOrders(ctx context.Context) (int64, error) {
	return m.orders.CountDocuments(ctx, bson.M{})
}

// DeliveredRevenue sums totalAmount over delivered orders.
func (m *MongoRepository) DeliveredRevenue(ctx context.Context) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"orderStatus": models.OrderDelivered}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$totalAmount"}}}},
	}
	cursor, err := m.orders.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate revenue: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("failed to decode revenue: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}
