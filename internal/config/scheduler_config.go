package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type SchedulerConfig struct {
	// Cron triggers a run for every active config; empty disables scheduled runs.
	Cron                string `mapstructure:"cron"`
	CleanupCron         string `mapstructure:"cleanup_cron"`
	JobRunRetentionDays int    `mapstructure:"job_run_retention_days"`
}

func (config SchedulerConfig) validate() error {
	if config.Cron != "" {
		if _, err := cron.ParseStandard(config.Cron); err != nil {
			return fmt.Errorf("invalid cron %q: %w", config.Cron, err)
		}
	}
	if _, err := cron.ParseStandard(config.CleanupCron); err != nil {
		return fmt.Errorf("invalid cleanup_cron %q: %w", config.CleanupCron, err)
	}
	if config.JobRunRetentionDays <= 0 {
		return fmt.Errorf("job_run_retention_days must be greater than zero")
	}
	return nil
}

func (config SchedulerConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return v.BindEnv("scheduler.cron", "SCRAPE_CRON")
}
