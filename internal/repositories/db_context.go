package repositories

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/maxaizer/bulk-scraper/internal/config"
	"github.com/maxaizer/bulk-scraper/internal/entities"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DbContext struct {
	DB *gorm.DB
}

func NewDbContext(cfg config.DBConfig) (*DbContext, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.ConnectionString)
	case config.DriverSqlite, "":
		dialector = sqlite.Open(cfg.ConnectionString)
	default:
		return nil, fmt.Errorf("unsupported db driver: %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	return &DbContext{DB: db}, nil
}

func (c *DbContext) Migrate() error {
	err := c.DB.AutoMigrate(entities.BulkConfig{})
	if err != nil {
		return fmt.Errorf("failed to migrate BulkConfig entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.JobRun{})
	if err != nil {
		return fmt.Errorf("failed to migrate JobRun entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.Category{})
	if err != nil {
		return fmt.Errorf("failed to migrate Category entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.Opportunity{})
	if err != nil {
		return fmt.Errorf("failed to migrate Opportunity entity: %w", err)
	}

	return nil
}

func (c *DbContext) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
