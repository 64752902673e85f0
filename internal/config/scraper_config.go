package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type ScraperConfig struct {
	UserAgent            string        `mapstructure:"user_agent"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	RetryBaseDelay       time.Duration `mapstructure:"retry_base_delay"`
	MaxRequestsPerSecond float32       `mapstructure:"max_requests_per_second"`
	DescriptionMaxLength int           `mapstructure:"description_max_length"`
	DuplicateCacheTTL    time.Duration `mapstructure:"duplicate_cache_ttl"`
}

func (config ScraperConfig) validate() error {
	var errs []error

	if config.UserAgent == "" {
		errs = append(errs, fmt.Errorf("missing variable: user_agent"))
	}
	if config.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive"))
	}
	if config.RetryBaseDelay < 0 {
		errs = append(errs, fmt.Errorf("retry_base_delay must be non-negative"))
	}
	if config.MaxRequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("max_requests_per_second must be non-negative"))
	}
	if config.DescriptionMaxLength <= 0 {
		errs = append(errs, fmt.Errorf("description_max_length must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}
	return nil
}

func (config ScraperConfig) bindEnvironmentVariables(v *viper.Viper) error {
	var errs []error
	if err := v.BindEnv("scraper.user_agent", "SCRAPER_USER_AGENT"); err != nil {
		errs = append(errs, err)
	}
	if err := v.BindEnv("scraper.max_requests_per_second", "SCRAPER_MAX_REQUESTS_PER_SECOND"); err != nil {
		errs = append(errs, err)
	}
	if err := v.BindEnv("scraper.request_timeout", "SCRAPER_REQUEST_TIMEOUT"); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
