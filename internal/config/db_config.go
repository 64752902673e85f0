package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type DBDriver string

const (
	DriverSqlite   DBDriver = "sqlite"
	DriverPostgres DBDriver = "postgres"
)

type DBConfig struct {
	Driver           DBDriver `mapstructure:"driver"`
	ConnectionString string   `mapstructure:"connection_string"`
	// SeedFile is an optional json file with bulk configs upserted at startup.
	SeedFile string `mapstructure:"seed_file"`
}

func (config DBConfig) validate() error {
	if config.ConnectionString == "" {
		return fmt.Errorf("missing variable: db connection string")
	}
	if config.Driver != DriverSqlite && config.Driver != DriverPostgres {
		return fmt.Errorf("unsupported db driver: %q", config.Driver)
	}
	return nil
}

func (config DBConfig) bindEnvironmentVariables(v *viper.Viper) error {
	if err := v.BindEnv("db.driver", "DB_DRIVER"); err != nil {
		return err
	}
	if err := v.BindEnv("db.connection_string", "DB_CONNECTION_STRING"); err != nil {
		return err
	}
	return v.BindEnv("db.seed_file", "DB_SEED_FILE")
}
