package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleCustomer Role = "user"
	RoleAdmin    Role = "admin"
)

// Principal is the caller identity forwarded by the auth proxy.
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// User holds the storefront profile of an authenticated user.
type User struct {
	ID        primitive.ObjectID   `bson:"_id" json:"_id"`
	Cart      []CartItem           `bson:"cart" json:"cart"`
	Wishlist  []primitive.ObjectID `bson:"wishlist" json:"wishlist"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}

type CartItem struct {
	ProductID primitive.ObjectID `bson:"product" json:"-"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Product   *Product           `bson:"-" json:"product"`
}
