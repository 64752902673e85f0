package services

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/maxaizer/bulk-scraper/internal/entities"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultDescriptionMaxLength = 500
	// DefaultPostedDate is used for job listings that show no date.
	DefaultPostedDate = "Just posted"

	minOpportunityTitleLength       = 10
	minOpportunityDescriptionLength = 30
)

// Extractor turns listing containers of a parsed page into records.
type Extractor struct {
	descriptionMaxLength int
}

func NewExtractor(descriptionMaxLength int) *Extractor {
	if descriptionMaxLength <= 0 {
		descriptionMaxLength = DefaultDescriptionMaxLength
	}
	return &Extractor{descriptionMaxLength: descriptionMaxLength}
}

// Extract returns one record per container that has all required fields, in document order.
// Containers missing a required field are skipped.
func (e *Extractor) Extract(doc *goquery.Document, site entities.SiteConfig, pageURL string) []entities.ScrapedRecord {

	var records []entities.ScrapedRecord

	doc.Find(site.Selectors.Container).Each(func(i int, container *goquery.Selection) {
		record, err := e.extractContainer(container, site, pageURL)
		if err != nil {
			log.Warnf("site %s: skipping container %d on %s: %v", site.Name, i, pageURL, err)
			return
		}
		if record != nil {
			records = append(records, *record)
		}
	})

	return records
}

func (e *Extractor) extractContainer(container *goquery.Selection, site entities.SiteConfig,
	pageURL string) (record *entities.ScrapedRecord, err error) {

	defer func() {
		if r := recover(); r != nil {
			record, err = nil, fmt.Errorf("malformed container: %v", r)
		}
	}()

	selectors := site.Selectors
	title := firstText(container, selectors.Title)
	if title == "" {
		return nil, nil
	}

	record = &entities.ScrapedRecord{
		Title:      title,
		Location:   firstText(container, selectors.Location),
		Deadline:   firstText(container, selectors.Deadline),
		PostedDate: firstText(container, selectors.Date),
		Tags:       allTexts(container, selectors.Tags),
		SourceURL:  pageURL,
	}

	description := firstText(container, selectors.Description)

	switch site.ExtractionMode() {
	case entities.ModeOpportunities:
		if utf8.RuneCountInString(title) < minOpportunityTitleLength ||
			utf8.RuneCountInString(description) < minOpportunityDescriptionLength {
			return nil, nil
		}
		record.Organization = site.Name
	default:
		record.Organization = firstText(container, selectors.OrganizationSelector())
		if record.Organization == "" {
			return nil, nil
		}
		if record.PostedDate == "" {
			record.PostedDate = DefaultPostedDate
		}
	}

	record.Description = truncateRunes(description, e.descriptionMaxLength)
	record.ApplicationURL = resolveLink(site.Origin(), firstAttr(container, selectors.Link, "href"), site.ListingURL())

	return record, nil
}

func firstText(root *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return cleanText(root.Find(selector).First().Text())
}

func firstAttr(root *goquery.Selection, selector, attr string) string {
	if selector == "" {
		return ""
	}
	value, _ := root.Find(selector).First().Attr(attr)
	return strings.TrimSpace(value)
}

func allTexts(root *goquery.Selection, selector string) []string {
	if selector == "" {
		return nil
	}
	var values []string
	root.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if text := cleanText(sel.Text()); text != "" {
			values = append(values, text)
		}
	})
	return values
}

func cleanText(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func truncateRunes(value string, maxLength int) string {
	if utf8.RuneCountInString(value) <= maxLength {
		return value
	}
	return strings.TrimSpace(string([]rune(value)[:maxLength]))
}

// resolveLink keeps absolute hrefs, resolves relative ones against origin and
// falls back to the listing url when there is nothing usable.
func resolveLink(origin, href, fallback string) string {
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return fallback
	}

	ref, err := url.Parse(href)
	if err != nil {
		return fallback
	}
	if ref.IsAbs() {
		return href
	}

	base, err := url.Parse(origin + "/")
	if err != nil || base.Host == "" {
		return fallback
	}
	return base.ResolveReference(ref).String()
}
