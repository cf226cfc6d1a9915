package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

/* Config is a helper package. It could be an external lib */

type Config struct {
	Port            string `mapstructure:"PORT"`
	Driver          string `mapstructure:"DRIVER"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	DBName          string `mapstructure:"DBNAME"`
	BaseURL         string `mapstructure:"BASE_URL"`
	PayloadsPerPage int    `mapstructure:"PAYLOADS_PER_PAGE"`
	AdminUser       string `mapstructure:"ADMIN_USER"`
	AdminPassword   string `mapstructure:"ADMIN_PASSWORD"`
}

func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DRIVER", "sqlite")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("DBNAME", "webhook_data.db")
	viper.SetDefault("BASE_URL", "http://localhost:8080")
	viper.SetDefault("PAYLOADS_PER_PAGE", 20)
	/* Development credentials. Override ADMIN_USER and ADMIN_PASSWORD in
	 * the environment for any deployment that is reachable by anyone else
	 */
	viper.SetDefault("ADMIN_USER", "admin")
	viper.SetDefault("ADMIN_PASSWORD", "supersecret")

	// The config file is optional; the environment alone is enough.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}
