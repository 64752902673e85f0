package entities

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

type SiteStatus string

const (
	SiteCompleted SiteStatus = "completed"
	SiteFailed    SiteStatus = "failed"
)

type SiteResult struct {
	Found     int        `json:"found"`
	Filtered  int        `json:"filtered"`
	Published int        `json:"published"`
	Status    SiteStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
}

type SiteResults map[string]SiteResult

func (r SiteResults) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r *SiteResults) Scan(value any) error {
	return scanJSON(value, r)
}

type JobRun struct {
	ID             string      `gorm:"primaryKey" json:"id"`
	ConfigID       string      `gorm:"index" json:"config_id"`
	Status         JobStatus   `gorm:"index" json:"status"`
	StartedAt      time.Time   `json:"started_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	TotalFound     int         `json:"total_jobs_found"`
	TotalPublished int         `json:"total_jobs_published"`
	ErrorsCount    int         `json:"errors_count"`
	Results        SiteResults `gorm:"type:text" json:"results,omitempty"`
	ErrorMessage   *string     `json:"error_message,omitempty"`
}

func (r JobRun) IsFinished() bool {
	return r.Status == JobCompleted || r.Status == JobFailed
}
