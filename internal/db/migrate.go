package db

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/config"
	"github.com/zulandar/workyard/internal/models"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Manager{},
		&models.Person{},
		&models.WorkItem{},
		&models.WorkItemStory{},
		&models.WorkItemFinancial{},
		&models.WorkItemMetric{},
		&models.GovernanceRequest{},
		&models.GovernanceComment{},
		&models.WeightConfig{},
		&models.WeightRevision{},
		&models.TimeLog{},
		&models.DashboardMetrics{},
		&models.WorkTypeSummary{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedWeights writes the seed rows and a first revision when the weight
// table is empty. Existing configurations are never overwritten; weights
// change only through an applied draft. It returns the number of rows written.
func SeedWeights(db *gorm.DB, seeds []config.WeightSeed) (int, error) {
	var count int64
	if err := db.Model(&models.WeightConfig{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("db: count weights: %w", err)
	}
	if count > 0 || len(seeds) == 0 {
		return 0, nil
	}

	rows := make([]models.WeightConfig, len(seeds))
	for i, s := range seeds {
		rows[i] = models.WeightConfig{
			ID:           uuid.New().String(),
			ConfigType:   s.ConfigType,
			Key:          s.Key,
			Value:        s.Value,
			Label:        s.Label,
			DisplayOrder: s.Order,
		}
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		return tx.Create(&models.WeightRevision{AppliedBy: "seed", Changes: len(rows)}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("db: seed weights: %w", err)
	}
	return len(rows), nil
}
