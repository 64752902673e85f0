package events

import "github.com/maxaizer/bulk-scraper/internal/entities"

var JobRunFinishedTopic = "JobRunFinishedEvent"

type JobRunFinished struct {
	Run        entities.JobRun
	ConfigName string
}
