package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FindUser returns the storefront profile of userID, or an empty one when the
// user has never touched a cart or wishlist.
func (m *MongoRepository) FindUser(ctx context.Context, userID string) (*models.User, error) {
	oid, err := objectID("user", userID)
	if err != nil {
		return nil, err
	}
	var u models.User
	err = m.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.User{ID: oid}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	return &u, nil
}

func (m *MongoRepository) SaveCart(ctx context.Context, userID string, items []models.CartItem) error {
	oid, err := objectID("user", userID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []models.CartItem{}
	}
	now := m.now()
	update := bson.M{
		"$set":         bson.M{"cart": items, "updatedAt": now},
		"$setOnInsert": bson.M{"wishlist": bson.A{}, "createdAt": now},
	}
	if _, err := m.users.UpdateOne(ctx, bson.M{"_id": oid}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save cart of %s: %w", userID, err)
	}
	return nil
}

// AddToWishlist reports false when the product was already listed.
func (m *MongoRepository) AddToWishlist(ctx context.Context, userID, productID string) (bool, error) {
	oid, err := objectID("user", userID)
	if err != nil {
		return false, err
	}
	pid, err := objectID("product", productID)
	if err != nil {
		return false, err
	}
	now := m.now()
	update := bson.M{
		"$addToSet":    bson.M{"wishlist": pid},
		"$setOnInsert": bson.M{"cart": bson.A{}, "createdAt": now, "updatedAt": now},
	}
	res, err := m.users.UpdateOne(ctx, bson.M{"_id": oid}, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("failed to update wishlist of %s: %w", userID, err)
	}
	if res.UpsertedCount > 0 {
		return true, nil
	}
	if res.ModifiedCount == 0 {
		return false, nil
	}
	_, err = m.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"updatedAt": now}})
	return true, err
}

func (m *MongoRepository) RemoveFromWishlist(ctx context.Context, userID, productID string) error {
	oid, err := objectID("user", userID)
	if err != nil {
		return err
	}
	pid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return nil
	}
	update := bson.M{
		"$pull": bson.M{"wishlist": pid},
		"$set":  bson.M{"updatedAt": m.now()},
	}
	if _, err := m.users.UpdateOne(ctx, bson.M{"_id": oid}, update); err != nil {
		return fmt.Errorf("failed to update wishlist of %s: %w", userID, err)
	}
	return nil
}

func (m *MongoRepository) CountUsers(ctx context.Context) (int64, error) {
	return m.users.CountDocuments(ctx, bson.M{})
}
