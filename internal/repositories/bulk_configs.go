package repositories

import (
	"context"
	"errors"

	"github.com/maxaizer/bulk-scraper/internal/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BulkConfigs struct {
	db *gorm.DB
}

func NewBulkConfigsRepository(db *gorm.DB) *BulkConfigs {
	return &BulkConfigs{db: db}
}

func (repo *BulkConfigs) Add(ctx context.Context, config entities.BulkConfig) error {
	return repo.db.WithContext(ctx).Create(&config).Error
}

// GetByID returns nil without error when there is no such config.
func (repo *BulkConfigs) GetByID(ctx context.Context, id string) (*entities.BulkConfig, error) {

	var config entities.BulkConfig
	if err := repo.db.WithContext(ctx).First(&config, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

func (repo *BulkConfigs) GetActive(ctx context.Context) ([]entities.BulkConfig, error) {

	var configs []entities.BulkConfig
	if err := repo.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at").
		Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// Save inserts the config or replaces the stored one with the same id.
func (repo *BulkConfigs) Save(ctx context.Context, config entities.BulkConfig) error {
	return repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "websites", "is_active", "updated_at"}),
		}).
		Create(&config).Error
}
