package services

import (
	"strings"

	"github.com/maxaizer/bulk-scraper/internal/entities"
	"github.com/samber/lo"
)

// IsAccepted applies keyword rules to title and description. Exclude terms win over
// include terms; an empty include list accepts everything not excluded.
func IsAccepted(record entities.ScrapedRecord, filters entities.Filters) bool {
	haystack := strings.ToLower(record.Title + " " + record.Description)

	if containsAny(haystack, filters.ExcludeKeywords) {
		return false
	}

	keywords := lo.Filter(filters.Keywords, func(keyword string, _ int) bool {
		return strings.TrimSpace(keyword) != ""
	})
	if len(keywords) == 0 {
		return true
	}
	return containsAny(haystack, keywords)
}

// FilterRecords keeps accepted records in their original order.
func FilterRecords(records []entities.ScrapedRecord, filters entities.Filters) []entities.ScrapedRecord {
	return lo.Filter(records, func(record entities.ScrapedRecord, _ int) bool {
		return IsAccepted(record, filters)
	})
}

func containsAny(haystack string, keywords []string) bool {
	return lo.SomeBy(keywords, func(keyword string) bool {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		return keyword != "" && strings.Contains(haystack, keyword)
	})
}
