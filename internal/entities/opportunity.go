package entities

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultCategoryName        = "jobs"
	DefaultCategoryDescription = "Job opportunities"

	OpportunitySourceBulkScraped = "bulk_scraped"
	OpportunityStatusApproved    = "approved"

	DefaultLocation = "Remote"
)

type Category struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string
	IsActive    bool `gorm:"index"`
	CreatedAt   time.Time
}

// StringList is stored as a json array; an empty list is stored as NULL.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(value any) error {
	return scanJSON(value, l)
}

type OpportunityMetadata struct {
	SourceWebsite string    `json:"source_website"`
	PostedDate    string    `json:"posted_date,omitempty"`
	Deadline      string    `json:"deadline,omitempty"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

func (m OpportunityMetadata) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m *OpportunityMetadata) Scan(value any) error {
	return scanJSON(value, m)
}

type Opportunity struct {
	ID             string `gorm:"primaryKey"`
	Title          string `gorm:"not null"`
	Description    string
	Organization   string `gorm:"not null"`
	Location       string
	ApplicationURL string
	SourceURL      string
	CategoryID     string `gorm:"index;not null"`
	Source         string
	IsPublished    bool
	PublishedAt    *time.Time
	Tags           StringList `gorm:"type:text"`
	Status         string
	Metadata       OpportunityMetadata `gorm:"type:text"`
	CreatedAt      time.Time

	// Lowercased copies for duplicate lookups; SQL LOWER() folds only ASCII on sqlite.
	TitleSearch        string `gorm:"index"`
	OrganizationSearch string `gorm:"index"`
}

func (o *Opportunity) BeforeCreate(_ *gorm.DB) error {
	o.TitleSearch = strings.ToLower(o.Title)
	o.OrganizationSearch = strings.ToLower(o.Organization)
	return nil
}
