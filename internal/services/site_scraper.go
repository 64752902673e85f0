package services

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maxaizer/bulk-scraper/internal/clients/web"
	"github.com/maxaizer/bulk-scraper/internal/entities"
	"github.com/maxaizer/bulk-scraper/internal/logger"
	"github.com/maxaizer/bulk-scraper/internal/metrics"
	log "github.com/sirupsen/logrus"
)

type documentFetcher interface {
	FetchDocument(ctx context.Context, url string, opts web.FetchOptions) (*goquery.Document, error)
}

type SiteScraper struct {
	fetcher   documentFetcher
	extractor *Extractor
	wait      func(ctx context.Context, d time.Duration) error
}

func NewSiteScraper(fetcher documentFetcher, extractor *Extractor) *SiteScraper {
	return &SiteScraper{fetcher: fetcher, extractor: extractor, wait: web.Sleep}
}

// Scrape walks the listing pages of a site until maxPages is reached or a page has
// no listings. A page that can't be fetched fails the whole site.
func (s *SiteScraper) Scrape(ctx context.Context, site entities.SiteConfig) ([]entities.ScrapedRecord, error) {

	log.Infof("scraping %s at %s", site.Name, site.ListingURL())

	opts := web.FetchOptions{
		Headers:  site.RequestConfig.Headers,
		Attempts: site.Retries(),
		Timeout:  site.RequestTimeout(),
	}

	var records []entities.ScrapedRecord
	maxPages := site.MaxPages()

	for page := 1; page <= maxPages; page++ {

		if page > 1 {
			if err := s.wait(ctx, site.PageDelay()); err != nil {
				return nil, err
			}
		}

		pageURL := site.PageURL(page)
		doc, err := s.fetcher.FetchDocument(ctx, pageURL, opts)
		if err != nil {
			metrics.PagesFetchedCounter.WithLabelValues(site.Name, "failure").Inc()
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeHttp).
				Errorf("site %s: page %d failed: %v", site.Name, page, err)
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		metrics.PagesFetchedCounter.WithLabelValues(site.Name, "success").Inc()

		pageRecords := s.extractor.Extract(doc, site, pageURL)
		log.Debugf("site %s: page %d yielded %d records", site.Name, page, len(pageRecords))

		if len(pageRecords) == 0 {
			log.Infof("site %s: no listings on page %d, stopping", site.Name, page)
			break
		}
		records = append(records, pageRecords...)
	}

	log.Infof("completed scraping %s: %d records found", site.Name, len(records))
	return records, nil
}
