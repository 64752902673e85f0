package services

import (
	"context"
	"errors"
	"time"

	"github.com/maxaizer/bulk-scraper/internal/logger"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type JobRunCleanupRepository interface {
	RemoveFinishedBefore(ctx context.Context, expirationTime time.Time) (int64, error)
}

type JobRunsCleaner struct {
	runs                 JobRunCleanupRepository
	cron                 *cron.Cron
	expirationTimeInDays int
}

func NewJobRunsCleaner(runs JobRunCleanupRepository, schedule string, expirationInDays int) (*JobRunsCleaner, error) {

	if expirationInDays <= 0 {
		return nil, errors.New("expiration in days must be greater than zero")
	}

	jc := &JobRunsCleaner{
		runs:                 runs,
		cron:                 cron.New(),
		expirationTimeInDays: expirationInDays,
	}

	_, err := jc.cron.AddFunc(schedule, func() { jc.CleanOldRuns(context.Background()) })
	if err != nil {
		return nil, err
	}

	jc.cron.Start()
	log.Infof("job runs cleaner started, expiration in days: %d", jc.expirationTimeInDays)
	return jc, nil
}

func (jc *JobRunsCleaner) Stop() {
	<-jc.cron.Stop().Done()
}

func (jc *JobRunsCleaner) CleanOldRuns(ctx context.Context) {
	expirationTime := time.Now().Add(-time.Duration(jc.expirationTimeInDays) * 24 * time.Hour)
	rowsAffected, err := jc.runs.RemoveFinishedBefore(ctx, expirationTime)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to clean old job runs: %v", err)
	} else {
		log.Infof("old job runs were cleaned at %v, affected rows: %v", time.Now(), rowsAffected)
	}
}
