package config

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	DB        DBConfig        `mapstructure:"db"`
	Server    ServerConfig    `mapstructure:"server"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
}

var configFile = "./configs/config.yaml"

func Get() *Config {

	if value, ok := os.LookupEnv("CONFIG_PATH"); ok && value != "" {
		configFile = value
	}

	config, err := loadConfig(configFile)
	if err != nil {
		log.Fatal(err)
	}

	return config
}

func loadConfig(file string) (*Config, error) {

	v := viper.New()
	v.SetConfigFile(file)
	v.AutomaticEnv()

	setDefaults(v)

	err := bindEnvironmentVariables(v)
	if err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", file, err)
	}

	config := Config{}
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", string(DriverSqlite))
	v.SetDefault("db.seed_file", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.user_agent", DefaultUserAgent)
	v.SetDefault("scraper.request_timeout", "30s")
	v.SetDefault("scraper.retry_base_delay", "1s")
	v.SetDefault("scraper.description_max_length", 500)
	v.SetDefault("scraper.duplicate_cache_ttl", "10m")
	v.SetDefault("scheduler.job_run_retention_days", 30)
	v.SetDefault("scheduler.cleanup_cron", "0 0 * * *")
}

func bindEnvironmentVariables(v *viper.Viper) error {
	var errs []error

	db, logger, server, scraper, scheduler, notifier :=
		DBConfig{}, LoggerConfig{}, ServerConfig{}, ScraperConfig{}, SchedulerConfig{}, NotifierConfig{}

	if err := db.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := logger.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if err := server.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("ServerConfig: %w", err))
	}

	if err := scraper.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("ScraperConfig: %w", err))
	}

	if err := scheduler.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("SchedulerConfig: %w", err))
	}

	if err := notifier.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("NotifierConfig: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config Config) validate() error {
	var errs []error

	if err := config.DB.validate(); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := config.Logger.validate(); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if err := config.Server.validate(); err != nil {
		errs = append(errs, fmt.Errorf("ServerConfig: %w", err))
	}

	if err := config.Scraper.validate(); err != nil {
		errs = append(errs, fmt.Errorf("ScraperConfig: %w", err))
	}

	if err := config.Scheduler.validate(); err != nil {
		errs = append(errs, fmt.Errorf("SchedulerConfig: %w", err))
	}

	if err := config.Notifier.validate(); err != nil {
		errs = append(errs, fmt.Errorf("NotifierConfig: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}
