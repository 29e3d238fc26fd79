package models

import (
	"time"
)

type MovementKind string

const (
	MovementReserve MovementKind = "reserve"
	MovementRestore MovementKind = "restore"
	MovementRestock MovementKind = "restock"
)

// StockMovement is one row of the relational stock ledger. Delta is negative
// for reservations.
type StockMovement struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	ProductID string       `gorm:"type:varchar(24);not null;index" json:"product_id"`
	OrderID   string       `gorm:"type:varchar(24);index" json:"order_id,omitempty"`
	Kind      MovementKind `gorm:"type:varchar(16);not null" json:"kind"`
	Delta     int          `gorm:"not null" json:"delta"`
	CreatedAt time.Time    `json:"created_at"`
}

func (StockMovement) TableName() string {
	return "stock_movements"
}

// LedgerSummary reconciles sold and restored units of one product.
type LedgerSummary struct {
	ProductID string `json:"product_id"`
	Reserved  int    `json:"reserved"`
	Restored  int    `json:"restored"`
	Restocked int    `json:"restocked"`
	Net       int    `json:"net"`
}
