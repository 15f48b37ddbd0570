package database

import (
	"context"
	"encoding/json"
	"fmt"

	"bulk-order-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ConnectPostgres opens the run-history database and migrates its schema.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("POSTGRES_DSN not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := db.AutoMigrate(&models.BulkOrderRun{}); err != nil {
		return nil, fmt.Errorf("migrate bulk_order_runs: %w", err)
	}

	zap.L().Info("Connected to Postgres")
	return db, nil
}

// RunRepository persists finished run records.
type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// SaveResult converts a terminal result into a run record and stores it.
func (r *RunRepository) SaveResult(ctx context.Context, userID string, result *models.BulkOrderResult) (*models.BulkOrderRun, error) {
	run := &models.BulkOrderRun{
		UserID:           userID,
		Success:          result.Success,
		ItemsProcessed:   result.ItemsProcessed,
		ItemsAdded:       result.ItemsAdded,
		ItemsFailed:      result.ItemsFailed,
		TotalValue:       result.TotalValue,
		ProcessingTimeMs: result.ProcessingTime.Milliseconds(),
	}

	if len(result.Suggestions) > 0 {
		data, err := json.Marshal(result.Suggestions)
		if err != nil {
			return nil, fmt.Errorf("marshal suggestions: %w", err)
		}
		run.Suggestions = string(data)
	}

	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	return run, nil
}

// FindByID loads one run.
func (r *RunRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.BulkOrderRun, error) {
	var run models.BulkOrderRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns runs newest-first, optionally filtered by user.
func (r *RunRepository) List(ctx context.Context, userID string, limit, offset int) ([]models.BulkOrderRun, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := r.db.WithContext(ctx).Model(&models.BulkOrderRun{})
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []models.BulkOrderRun
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&runs).Error; err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}
