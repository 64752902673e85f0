package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/bulk-scraper/internal/entities"
	"github.com/maxaizer/bulk-scraper/internal/events"
	"github.com/maxaizer/bulk-scraper/internal/logger"
	"github.com/maxaizer/bulk-scraper/internal/metrics"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var (
	ErrConfigIDRequired = errors.New("config_id is required")
	ErrConfigNotFound   = errors.New("bulk scraping config not found")
	ErrInvalidConfig    = errors.New("invalid bulk scraping config")
)

const (
	InterruptedRunMessage = "interrupted by service restart"
	finishWriteTimeout    = 10 * time.Second
)

type bulkConfigRepository interface {
	GetByID(ctx context.Context, id string) (*entities.BulkConfig, error)
}

type jobRunRepository interface {
	Create(ctx context.Context, configID string) (*entities.JobRun, error)
	Finish(ctx context.Context, run entities.JobRun) error
	GetByID(ctx context.Context, id string) (*entities.JobRun, error)
	MarkInterrupted(ctx context.Context, message string) (int64, error)
}

type siteScraper interface {
	Scrape(ctx context.Context, site entities.SiteConfig) ([]entities.ScrapedRecord, error)
}

type recordPublisher interface {
	Publish(ctx context.Context, records []entities.ScrapedRecord, sourceLabel string) int
}

// Orchestrator runs every site of a bulk config in a background task and records the
// outcome in a JobRun. Runs live as long as the context given to NewOrchestrator.
type Orchestrator struct {
	ctx       context.Context
	bus       EventBus.Bus
	configs   bulkConfigRepository
	runs      jobRunRepository
	scraper   siteScraper
	publisher recordPublisher
	wg        sync.WaitGroup
}

func NewOrchestrator(ctx context.Context, bus EventBus.Bus, configs bulkConfigRepository, runs jobRunRepository,
	scraper siteScraper, publisher recordPublisher) *Orchestrator {

	return &Orchestrator{
		ctx:       ctx,
		bus:       bus,
		configs:   configs,
		runs:      runs,
		scraper:   scraper,
		publisher: publisher,
	}
}

// Start validates the config and creates a running JobRun, then processes the sites in
// the background. Configuration errors are returned before any JobRun exists.
func (o *Orchestrator) Start(ctx context.Context, configID string) (*entities.JobRun, error) {

	configID = strings.TrimSpace(configID)
	if configID == "" {
		return nil, ErrConfigIDRequired
	}

	config, err := o.configs.GetByID(ctx, configID)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("couldn't load config %s: %v", configID, err)
		return nil, fmt.Errorf("load config %s: %w", configID, err)
	}
	if config == nil {
		return nil, ErrConfigNotFound
	}
	if err = config.Validate(); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeConfig).Errorf("config %s is invalid: %v", configID, err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	run, err := o.runs.Create(ctx, config.ID)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("couldn't create job run: %v", err)
		return nil, fmt.Errorf("create job run: %w", err)
	}

	log.Infof("job run %s started for config %q with %d sites", run.ID, config.Name, len(config.Sites))

	o.wg.Add(1)
	go o.execute(*run, *config)

	return run, nil
}

// Wait blocks until every started run has written its final state.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) GetJobRun(ctx context.Context, id string) (*entities.JobRun, error) {
	return o.runs.GetByID(ctx, id)
}

// RecoverInterrupted fails runs a previous process left in the running state.
func (o *Orchestrator) RecoverInterrupted(ctx context.Context) error {
	affected, err := o.runs.MarkInterrupted(ctx, InterruptedRunMessage)
	if err != nil {
		return fmt.Errorf("mark interrupted job runs: %w", err)
	}
	if affected > 0 {
		log.Warnf("marked %d interrupted job runs as failed", affected)
	}
	return nil
}

func (o *Orchestrator) execute(run entities.JobRun, config entities.BulkConfig) {
	defer o.wg.Done()

	startTime := time.Now()
	run.Results = make(entities.SiteResults, len(config.Sites))

	err := o.processSites(o.ctx, &run, config)

	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt
	if err != nil {
		message := err.Error()
		run.Status = entities.JobFailed
		run.ErrorMessage = &message
		log.Errorf("job run %s failed: %v", run.ID, err)
	} else {
		run.Status = entities.JobCompleted
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(o.ctx), finishWriteTimeout)
	defer cancel()
	if err = o.runs.Finish(ctx, run); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("couldn't save final state of job run %s: %v", run.ID, err)
	}

	executionTime := time.Since(startTime)
	metrics.JobRunDuration.Observe(executionTime.Seconds())
	log.Infof("job run %s %s after %v: found %d, published %d, errors %d",
		run.ID, run.Status, executionTime, run.TotalFound, run.TotalPublished, run.ErrorsCount)

	o.bus.Publish(events.JobRunFinishedTopic, events.JobRunFinished{Run: run, ConfigName: config.Name})
}

// processSites runs the sites one after another. The returned error is an orchestration
// fault; site failures are only recorded in the run.
func (o *Orchestrator) processSites(ctx context.Context, run *entities.JobRun, config entities.BulkConfig) (err error) {

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected error: %v", r)
		}
	}()

	for _, site := range config.Sites {
		if ctx.Err() != nil {
			return fmt.Errorf("job run cancelled: %w", ctx.Err())
		}

		result := o.processSite(ctx, site)
		run.Results[site.Name] = result
		run.TotalFound += result.Found
		run.TotalPublished += result.Published
		if result.Status == entities.SiteFailed {
			run.ErrorsCount++
		}
		metrics.SitesCounter.WithLabelValues(string(result.Status)).Inc()
	}

	if ctx.Err() != nil {
		return fmt.Errorf("job run cancelled: %w", ctx.Err())
	}
	return nil
}

func (o *Orchestrator) processSite(ctx context.Context, site entities.SiteConfig) (result entities.SiteResult) {

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("site %s: unexpected error: %v", site.Name, r)
			result = entities.SiteResult{Status: entities.SiteFailed, Error: fmt.Sprint(r)}
		}
	}()

	records, err := o.scraper.Scrape(ctx, site)
	if err != nil {
		log.Errorf("site %s failed: %v", site.Name, err)
		return entities.SiteResult{Status: entities.SiteFailed, Error: err.Error()}
	}

	accepted := FilterRecords(records, site.Filters)
	metrics.RecordsCounter.WithLabelValues(metrics.StageFound).Add(float64(len(records)))
	metrics.RecordsCounter.WithLabelValues(metrics.StageRejected).Add(float64(len(records) - len(accepted)))
	log.Infof("site %s: %d found, %d accepted by filters", site.Name, len(records), len(accepted))

	published := o.publisher.Publish(ctx, accepted, site.Name)

	return entities.SiteResult{
		Found:     len(records),
		Filtered:  len(accepted),
		Published: published,
		Status:    entities.SiteCompleted,
	}
}

// FailedSites lists the names of failed sites of a run in a stable order.
func FailedSites(run entities.JobRun) []string {
	names := lo.Keys(lo.PickBy(run.Results, func(_ string, result entities.SiteResult) bool {
		return result.Status == entities.SiteFailed
	}))
	slices.Sort(names)
	return names
}
