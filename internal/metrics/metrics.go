package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StageFound     = "found"
	StageRejected  = "rejected"
	StageDuplicate = "duplicate"
	StagePublished = "published"
	StageFailed    = "failed"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of occurred errors.",
		},
		[]string{"type"},
	)
	PagesFetchedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_fetched_total",
			Help: "Total number of listing pages fetched, by site and result.",
		},
		[]string{"site", "result"},
	)
	FetchAttemptsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetch_attempts_total",
			Help: "Total number of http attempts, by result.",
		},
		[]string{"result"},
	)
	RecordsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_records_total",
			Help: "Total number of scraped records by processing stage.",
		},
		[]string{"stage"},
	)
	SitesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_sites_total",
			Help: "Total number of scraped sites by final status.",
		},
		[]string{"status"},
	)
	JobRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_job_run_duration_seconds",
			Help:    "Duration of each bulk scraping job run in seconds.",
			Buckets: []float64{10, 30, 60, 300, 900, 1800, 3600},
		},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ErrorsCounter)
		prometheus.MustRegister(PagesFetchedCounter)
		prometheus.MustRegister(FetchAttemptsCounter)
		prometheus.MustRegister(RecordsCounter)
		prometheus.MustRegister(SitesCounter)
		prometheus.MustRegister(JobRunDuration)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
