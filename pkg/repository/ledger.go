package repository

import (
	"context"
	"fmt"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LedgerRepository appends stock movements to a relational table so sold,
// restored and restocked units can be reconciled outside MongoDB.
type LedgerRepository struct {
	db *gorm.DB
}

func OpenLedger(cfg *config.MySQLConfig) (*LedgerRepository, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	return NewLedgerRepository(db)
}

// NewLedgerRepository migrates the ledger table on db.
func NewLedgerRepository(db *gorm.DB) (*LedgerRepository, error) {
	if err := db.AutoMigrate(&models.StockMovement{}); err != nil {
		return nil, fmt.Errorf("failed to migrate stock ledger: %w", err)
	}
	return &LedgerRepository{db: db}, nil
}

func (l *LedgerRepository) Record(ctx context.Context, movements ...*models.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return l.db.WithContext(ctx).Create(movements).Error
}

func (l *LedgerRepository) Summary(ctx context.Context, productID string) (*models.LedgerSummary, error) {
	var rows []struct {
		Kind  models.MovementKind
		Total int
	}
	err := l.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Select("kind, SUM(delta) AS total").
		Where("product_id = ?", productID).
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize ledger of %s: %w", productID, err)
	}

	s := &models.LedgerSummary{ProductID: productID}
	for _, row := range rows {
		switch row.Kind {
		case models.MovementReserve:
			s.Reserved = -row.Total
		case models.MovementRestore:
			s.Restored = row.Total
		case models.MovementRestock:
			s.Restocked = row.Total
		}
		s.Net += row.Total
	}
	return s, nil
}

func (l *LedgerRepository) Movements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error) {
	var list []models.StockMovement
	err := l.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (l *LedgerRepository) Ping(ctx context.Context) error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (l *LedgerRepository) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
