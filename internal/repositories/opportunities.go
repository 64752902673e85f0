package repositories

import (
	"context"
	"strings"

	"github.com/maxaizer/bulk-scraper/internal/entities"
	"gorm.io/gorm"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type Opportunities struct {
	db *gorm.DB
}

func NewOpportunitiesRepository(db *gorm.DB) *Opportunities {
	return &Opportunities{db: db}
}

// ExistsSimilar reports whether a stored opportunity has a title containing titlePrefix
// and an organization containing orgPrefix, both case-insensitive.
func (repo *Opportunities) ExistsSimilar(ctx context.Context, titlePrefix, orgPrefix string) (bool, error) {

	var count int64
	err := repo.db.WithContext(ctx).Model(&entities.Opportunity{}).
		Where(`title_search LIKE ? ESCAPE '\'`, containsPattern(titlePrefix)).
		Where(`organization_search LIKE ? ESCAPE '\'`, containsPattern(orgPrefix)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (repo *Opportunities) Add(ctx context.Context, opportunity entities.Opportunity) error {
	return repo.db.WithContext(ctx).Create(&opportunity).Error
}

func containsPattern(value string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(value)) + "%"
}
