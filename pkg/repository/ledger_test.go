package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/storefront/pkg/models"
)

func newLedger(t *testing.T) *LedgerRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	l, err := NewLedgerRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedger_Summary(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx,
		&models.StockMovement{ProductID: "p1", OrderID: "o1", Kind: models.MovementReserve, Delta: -3},
		&models.StockMovement{ProductID: "p1", OrderID: "o2", Kind: models.MovementReserve, Delta: -2},
		&models.StockMovement{ProductID: "p1", OrderID: "o1", Kind: models.MovementRestore, Delta: 3},
		&models.StockMovement{ProductID: "p1", Kind: models.MovementRestock, Delta: 10},
		&models.StockMovement{ProductID: "p2", OrderID: "o2", Kind: models.MovementReserve, Delta: -1},
	))

	s, err := l.Summary(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, &models.LedgerSummary{ProductID: "p1", Reserved: 5, Restored: 3, Restocked: 10, Net: 8}, s)

	empty, err := l.Summary(ctx, "p3")
	require.NoError(t, err)
	assert.Zero(t, empty.Net)

	moves, err := l.Movements(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, models.MovementRestock, moves[0].Kind)
	assert.Equal(t, models.MovementRestore, moves[1].Kind)
}

func TestLedger_RecordNothing(t *testing.T) {
	l := newLedger(t)
	assert.NoError(t, l.Record(context.Background()))
	assert.NoError(t, l.Ping(context.Background()))
}
