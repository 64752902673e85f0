package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type NotifierConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

func (config NotifierConfig) Enabled() bool {
	return config.Token != ""
}

func (config NotifierConfig) validate() error {
	if config.Enabled() && config.ChatID == 0 {
		return fmt.Errorf("missing variable: chat_id is required when token is set")
	}
	return nil
}

func (config NotifierConfig) bindEnvironmentVariables(v *viper.Viper) error {
	if err := v.BindEnv("notifier.token", "NOTIFIER_TOKEN"); err != nil {
		return err
	}
	return v.BindEnv("notifier.chat_id", "NOTIFIER_CHAT_ID")
}
