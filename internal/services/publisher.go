package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maxaizer/bulk-scraper/internal/entities"
	"github.com/maxaizer/bulk-scraper/internal/logger"
	"github.com/maxaizer/bulk-scraper/internal/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	titlePrefixLength        = 50
	organizationPrefixLength = 30
)

type categoryRepository interface {
	GetByName(ctx context.Context, name string) (*entities.Category, error)
	GetFirstActive(ctx context.Context) (*entities.Category, error)
	Create(ctx context.Context, name, description string) (*entities.Category, error)
}

type opportunityRepository interface {
	ExistsSimilar(ctx context.Context, titlePrefix, orgPrefix string) (bool, error)
	Add(ctx context.Context, opportunity entities.Opportunity) error
}

type Publisher struct {
	categories    categoryRepository
	opportunities opportunityRepository
	now           func() time.Time
}

func NewPublisher(categories categoryRepository, opportunities opportunityRepository) *Publisher {
	return &Publisher{categories: categories, opportunities: opportunities, now: time.Now}
}

// Publish inserts the records that have no similar stored opportunity and returns the number
// inserted. Per-record failures are logged and skipped; if no category can be resolved
// nothing is inserted.
func (p *Publisher) Publish(ctx context.Context, records []entities.ScrapedRecord, sourceLabel string) int {
	if len(records) == 0 {
		return 0
	}

	category, err := p.resolveCategory(ctx)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("%s: couldn't resolve category, %d records not published: %v", sourceLabel, len(records), err)
		metrics.RecordsCounter.WithLabelValues(metrics.StageFailed).Add(float64(len(records)))
		return 0
	}

	published := 0
	for _, record := range records {
		if ctx.Err() != nil {
			break
		}

		titlePrefix := truncateRunes(record.Title, titlePrefixLength)
		orgPrefix := truncateRunes(record.Organization, organizationPrefixLength)

		exists, err := p.opportunities.ExistsSimilar(ctx, titlePrefix, orgPrefix)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("%s: duplicate check failed for %q: %v", sourceLabel, record.Title, err)
			metrics.RecordsCounter.WithLabelValues(metrics.StageFailed).Inc()
			continue
		}
		if exists {
			log.Debugf("%s: skipping duplicate %q at %s", sourceLabel, record.Title, record.Organization)
			metrics.RecordsCounter.WithLabelValues(metrics.StageDuplicate).Inc()
			continue
		}

		if err = p.opportunities.Add(ctx, p.toOpportunity(record, category.ID, sourceLabel)); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("%s: couldn't insert %q: %v", sourceLabel, record.Title, err)
			metrics.RecordsCounter.WithLabelValues(metrics.StageFailed).Inc()
			continue
		}
		metrics.RecordsCounter.WithLabelValues(metrics.StagePublished).Inc()
		published++
	}

	log.Infof("%s: published %d of %d records", sourceLabel, published, len(records))
	return published
}

// resolveCategory prefers the default category, then any active one, and creates the
// default when the store has none.
func (p *Publisher) resolveCategory(ctx context.Context) (*entities.Category, error) {
	category, err := p.categories.GetByName(ctx, entities.DefaultCategoryName)
	if err != nil {
		return nil, errors.Wrap(err, "get default category")
	}
	if category != nil {
		return category, nil
	}

	category, err = p.categories.GetFirstActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get active category")
	}
	if category != nil {
		return category, nil
	}

	log.Infof("no categories found, creating %q", entities.DefaultCategoryName)
	category, err = p.categories.Create(ctx, entities.DefaultCategoryName, entities.DefaultCategoryDescription)
	if err != nil {
		return nil, errors.Wrap(err, "create default category")
	}
	return category, nil
}

func (p *Publisher) toOpportunity(record entities.ScrapedRecord, categoryID, sourceLabel string) entities.Opportunity {
	now := p.now().UTC()

	location := record.Location
	if location == "" {
		location = entities.DefaultLocation
	}

	description := record.Description
	if description == "" {
		description = synthesizeDescription(record)
	}

	return entities.Opportunity{
		ID:             uuid.NewString(),
		Title:          record.Title,
		Description:    description,
		Organization:   record.Organization,
		Location:       location,
		ApplicationURL: record.ApplicationURL,
		SourceURL:      record.SourceURL,
		CategoryID:     categoryID,
		Source:         entities.OpportunitySourceBulkScraped,
		IsPublished:    true,
		PublishedAt:    &now,
		Tags:           entities.StringList(record.Tags),
		Status:         entities.OpportunityStatusApproved,
		Metadata: entities.OpportunityMetadata{
			SourceWebsite: sourceLabel,
			PostedDate:    record.PostedDate,
			Deadline:      record.Deadline,
			ScrapedAt:     now,
		},
		CreatedAt: now,
	}
}

func synthesizeDescription(record entities.ScrapedRecord) string {
	location := record.Location
	if location == "" {
		location = "Remote/Not specified"
	}
	tags := "None specified"
	if len(record.Tags) > 0 {
		tags = strings.Join(record.Tags, ", ")
	}
	return fmt.Sprintf("%s position at %s. Location: %s. Tags: %s.",
		record.Title, record.Organization, location, tags)
}
