package entities

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type BulkConfig struct {
	ID          string      `gorm:"primaryKey" json:"id"`
	Name        string      `gorm:"not null" json:"name"`
	Description string      `json:"description,omitempty"`
	Sites       SiteConfigs `gorm:"column:websites;type:text" json:"websites"`
	IsActive    bool        `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (c BulkConfig) Validate() error {
	if len(c.Sites) == 0 {
		return fmt.Errorf("config %q has no sites", c.Name)
	}

	var errs []error
	seen := make(map[string]struct{}, len(c.Sites))
	for _, site := range c.Sites {
		if err := site.Validate(); err != nil {
			errs = append(errs, err)
		}
		if _, ok := seen[site.Name]; ok {
			errs = append(errs, fmt.Errorf("site name %q is used more than once", site.Name))
		}
		seen[site.Name] = struct{}{}
	}
	return errors.Join(errs...)
}

type SiteConfigs []SiteConfig

func (s SiteConfigs) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *SiteConfigs) Scan(value any) error {
	return scanJSON(value, s)
}

func scanJSON(value any, target any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, target)
	case string:
		return json.Unmarshal([]byte(v), target)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
}
