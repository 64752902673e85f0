package entities

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/go-playground/validator/v10"
)

type ExtractionMode string

const (
	// ModeJobs requires title and company (or organization) on every listing.
	ModeJobs ExtractionMode = "jobs"
	// ModeOpportunities requires title and description; the organization is the site name.
	ModeOpportunities ExtractionMode = "opportunities"
)

type PaginationType string

const (
	PaginationNone     PaginationType = "none"
	PaginationURLParam PaginationType = "url-param"
)

const (
	DefaultMaxPages        = 5
	DefaultRetries         = 3
	DefaultRequestTimeout  = 30 * time.Second
	DefaultPaginationParam = "page"
)

type Selectors struct {
	Container    string `json:"container" validate:"required"`
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description,omitempty"`
	Link         string `json:"link,omitempty"`
	Company      string `json:"company,omitempty"`
	Organization string `json:"organization,omitempty"`
	Location     string `json:"location,omitempty"`
	Deadline     string `json:"deadline,omitempty"`
	Date         string `json:"date,omitempty"`
	Tags         string `json:"tags,omitempty"`
}

// OrganizationSelector prefers company over organization, as job boards usually name it so.
func (s Selectors) OrganizationSelector() string {
	if s.Company != "" {
		return s.Company
	}
	return s.Organization
}

func (s Selectors) all() map[string]string {
	return map[string]string{
		"container":    s.Container,
		"title":        s.Title,
		"description":  s.Description,
		"link":         s.Link,
		"company":      s.Company,
		"organization": s.Organization,
		"location":     s.Location,
		"deadline":     s.Deadline,
		"date":         s.Date,
		"tags":         s.Tags,
	}
}

type Pagination struct {
	Type     PaginationType `json:"type,omitempty" validate:"omitempty,oneof=none url-param"`
	MaxPages int            `json:"maxPages,omitempty" validate:"gte=0"`
	Param    string         `json:"param,omitempty"`
}

type RequestConfig struct {
	Headers map[string]string `json:"headers,omitempty"`
	Retries int               `json:"retries,omitempty" validate:"gte=0"`
	// Delay between pages in milliseconds.
	Delay int `json:"delay,omitempty" validate:"gte=0"`
	// Timeout of a single request in milliseconds.
	Timeout int `json:"timeout,omitempty" validate:"gte=0"`
}

type Filters struct {
	Keywords        []string `json:"keywords,omitempty"`
	ExcludeKeywords []string `json:"excludeKeywords,omitempty"`
}

type SiteConfig struct {
	Name          string         `json:"name" validate:"required"`
	BaseURL       string         `json:"baseUrl" validate:"required,url"`
	ListingPath   string         `json:"listingPath,omitempty"`
	Mode          ExtractionMode `json:"mode,omitempty" validate:"omitempty,oneof=jobs opportunities"`
	Selectors     Selectors      `json:"selectors"`
	Pagination    Pagination     `json:"pagination"`
	RequestConfig RequestConfig  `json:"requestConfig"`
	Filters       Filters        `json:"filters"`
}

var validate = validator.New()

// Validate checks the struct constraints and compiles every selector, so a malformed
// configuration is rejected before any request is sent.
func (s SiteConfig) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("site %q: %w", s.Name, err)
	}

	switch s.ExtractionMode() {
	case ModeJobs:
		if s.Selectors.OrganizationSelector() == "" {
			return fmt.Errorf("site %q: company or organization selector is required in %s mode", s.Name, ModeJobs)
		}
	case ModeOpportunities:
		if s.Selectors.Description == "" {
			return fmt.Errorf("site %q: description selector is required in %s mode", s.Name, ModeOpportunities)
		}
	}

	for field, selector := range s.Selectors.all() {
		if selector == "" {
			continue
		}
		if _, err := cascadia.Compile(selector); err != nil {
			return fmt.Errorf("site %q: invalid %s selector %q: %w", s.Name, field, selector, err)
		}
	}
	return nil
}

func (s SiteConfig) ExtractionMode() ExtractionMode {
	if s.Mode == "" {
		return ModeJobs
	}
	return s.Mode
}

// ListingURL joins base url and listing path.
func (s SiteConfig) ListingURL() string {
	base := strings.TrimRight(s.BaseURL, "/")
	if s.ListingPath == "" {
		return base
	}
	if !strings.HasPrefix(s.ListingPath, "/") {
		return base + "/" + s.ListingPath
	}
	return base + s.ListingPath
}

// Origin is scheme://host of the base url, used to resolve relative links.
func (s SiteConfig) Origin() string {
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Host == "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	return u.Scheme + "://" + u.Host
}

// PageURL returns the url of the given 1-based page.
func (s SiteConfig) PageURL(page int) string {
	listing := s.ListingURL()
	if s.PaginationType() != PaginationURLParam {
		return listing
	}

	u, err := url.Parse(listing)
	if err != nil {
		return fmt.Sprintf("%s?%s=%d", listing, s.paginationParam(), page)
	}
	query := u.Query()
	query.Set(s.paginationParam(), fmt.Sprint(page))
	u.RawQuery = query.Encode()
	return u.String()
}

func (s SiteConfig) PaginationType() PaginationType {
	if s.Pagination.Type == "" {
		return PaginationNone
	}
	return s.Pagination.Type
}

func (s SiteConfig) paginationParam() string {
	if s.Pagination.Param == "" {
		return DefaultPaginationParam
	}
	return s.Pagination.Param
}

// MaxPages is 1 for unpaginated sites.
func (s SiteConfig) MaxPages() int {
	if s.PaginationType() == PaginationNone {
		return 1
	}
	if s.Pagination.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return s.Pagination.MaxPages
}

func (s SiteConfig) Retries() int {
	if s.RequestConfig.Retries <= 0 {
		return DefaultRetries
	}
	return s.RequestConfig.Retries
}

func (s SiteConfig) PageDelay() time.Duration {
	return time.Duration(s.RequestConfig.Delay) * time.Millisecond
}

func (s SiteConfig) RequestTimeout() time.Duration {
	if s.RequestConfig.Timeout <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(s.RequestConfig.Timeout) * time.Millisecond
}
