package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/maxaizer/bulk-scraper/internal/entities"
	"github.com/maxaizer/bulk-scraper/internal/logger"
	log "github.com/sirupsen/logrus"
)

type bulkConfigSaver interface {
	Save(ctx context.Context, config entities.BulkConfig) error
}

// ImportBulkConfigs upserts the bulk configs listed in a json file. Invalid configs are
// skipped and reported in the returned error; valid ones are still saved.
func ImportBulkConfigs(ctx context.Context, path string, configs bulkConfigSaver) (int, error) {

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read bulk configs: %w", err)
	}

	var raw []json.RawMessage
	if err = json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("parse bulk configs %s: %w", path, err)
	}

	var errs []error
	imported := 0
	for i, item := range raw {
		config := entities.BulkConfig{IsActive: true}
		if err = json.Unmarshal(item, &config); err != nil {
			errs = append(errs, fmt.Errorf("config #%d: %w", i, err))
			continue
		}
		if config.ID == "" {
			errs = append(errs, fmt.Errorf("config #%d: id is required", i))
			continue
		}
		if err = config.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config %s: %w", config.ID, err))
			continue
		}
		if err = configs.Save(ctx, config); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("couldn't save config %s: %v", config.ID, err)
			errs = append(errs, fmt.Errorf("config %s: %w", config.ID, err))
			continue
		}
		imported++
	}

	log.Infof("imported %d of %d bulk configs from %s", imported, len(raw), path)
	return imported, errors.Join(errs...)
}
