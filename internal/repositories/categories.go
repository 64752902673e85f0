package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/maxaizer/bulk-scraper/internal/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Categories struct {
	db *gorm.DB
}

func NewCategoriesRepository(db *gorm.DB) *Categories {
	return &Categories{db: db}
}

func (repo *Categories) GetByName(ctx context.Context, name string) (*entities.Category, error) {
	return repo.first(ctx, "name = ?", name)
}

func (repo *Categories) GetFirstActive(ctx context.Context) (*entities.Category, error) {
	return repo.first(ctx, "is_active = ?", true)
}

// Create inserts an active category; when a concurrent run created it first, the stored one is returned.
func (repo *Categories) Create(ctx context.Context, name, description string) (*entities.Category, error) {
	category := entities.Category{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}

	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&category).Error
	if err != nil {
		return nil, err
	}

	stored, err := repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, errors.New("category vanished after insert")
	}
	return stored, nil
}

func (repo *Categories) first(ctx context.Context, query string, args ...any) (*entities.Category, error) {

	var category entities.Category
	if err := repo.db.WithContext(ctx).Order("created_at").First(&category, append([]any{query}, args...)...).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}
