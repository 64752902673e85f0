package services

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/maxaizer/bulk-scraper/internal/entities"
	"github.com/maxaizer/bulk-scraper/internal/logger"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type activeConfigRepository interface {
	GetActive(ctx context.Context) ([]entities.BulkConfig, error)
}

type jobStarter interface {
	Start(ctx context.Context, configID string) (*entities.JobRun, error)
}

// ScrapeScheduler periodically starts a run for every active bulk config.
type ScrapeScheduler struct {
	ctx     context.Context
	configs activeConfigRepository
	starter jobStarter
	cron    *cron.Cron
	stopped atomic.Bool
}

func NewScrapeScheduler(ctx context.Context, configs activeConfigRepository, starter jobStarter,
	schedule string) (*ScrapeScheduler, error) {

	if schedule == "" {
		return nil, errors.New("schedule is empty")
	}

	s := &ScrapeScheduler{
		ctx:     ctx,
		configs: configs,
		starter: starter,
		cron:    cron.New(),
	}

	if _, err := s.cron.AddFunc(schedule, s.RunActive); err != nil {
		return nil, err
	}

	s.cron.Start()
	log.Infof("scrape scheduler started with schedule %q", schedule)
	return s, nil
}

// Stop blocks until a running tick returns; no run is started afterwards.
func (s *ScrapeScheduler) Stop() {
	s.stopped.Store(true)
	<-s.cron.Stop().Done()
}

// RunActive starts one run per active config; a config that fails to start is skipped.
func (s *ScrapeScheduler) RunActive() {
	if s.isStopped() {
		return
	}

	configs, err := s.configs.GetActive(s.ctx)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to get active configs: %v", err)
		return
	}

	started := 0
	for _, config := range configs {
		if s.isStopped() {
			log.Info("scrape scheduler stopped, remaining configs skipped")
			break
		}
		run, err := s.starter.Start(s.ctx, config.ID)
		if err != nil {
			log.Errorf("scheduled run for config %q was not started: %v", config.Name, err)
			continue
		}
		log.Infof("scheduled run %s started for config %q", run.ID, config.Name)
		started++
	}
	log.Infof("scheduled scraping started %d of %d active configs", started, len(configs))
}

func (s *ScrapeScheduler) isStopped() bool {
	return s.stopped.Load() || s.ctx.Err() != nil
}
