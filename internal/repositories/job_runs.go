package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/maxaizer/bulk-scraper/internal/entities"
	"gorm.io/gorm"
)

type JobRuns struct {
	db *gorm.DB
}

func NewJobRunsRepository(db *gorm.DB) *JobRuns {
	return &JobRuns{db: db}
}

// Create stores a new running job run and returns it with its generated id.
func (repo *JobRuns) Create(ctx context.Context, configID string) (*entities.JobRun, error) {
	run := entities.JobRun{
		ID:        uuid.NewString(),
		ConfigID:  configID,
		Status:    entities.JobRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := repo.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// Finish writes the terminal state of a run in one statement.
func (repo *JobRuns) Finish(ctx context.Context, run entities.JobRun) error {
	return repo.db.WithContext(ctx).Model(&entities.JobRun{}).Where("id = ?", run.ID).
		Updates(map[string]any{
			"status":          run.Status,
			"completed_at":    run.CompletedAt,
			"total_found":     run.TotalFound,
			"total_published": run.TotalPublished,
			"errors_count":    run.ErrorsCount,
			"results":         run.Results,
			"error_message":   run.ErrorMessage,
		}).Error
}

func (repo *JobRuns) GetByID(ctx context.Context, id string) (*entities.JobRun, error) {

	var run entities.JobRun
	if err := repo.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// MarkInterrupted fails every run still marked as running, left over from a previous process.
func (repo *JobRuns) MarkInterrupted(ctx context.Context, message string) (int64, error) {
	res := repo.db.WithContext(ctx).Model(&entities.JobRun{}).
		Where("status = ?", entities.JobRunning).
		Updates(map[string]any{
			"status":        entities.JobFailed,
			"completed_at":  time.Now().UTC(),
			"error_message": message,
		})
	return res.RowsAffected, res.Error
}

func (repo *JobRuns) RemoveFinishedBefore(ctx context.Context, expirationTime time.Time) (int64, error) {
	res := repo.db.WithContext(ctx).Delete(&entities.JobRun{},
		"status <> ? AND completed_at < ?", entities.JobRunning, expirationTime.UTC())
	return res.RowsAffected, res.Error
}
