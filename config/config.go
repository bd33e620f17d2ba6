/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads the application configuration from YAML, applies
// environment overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tomoncle/bunrepo/database"
	"github.com/tomoncle/bunrepo/types"
	"github.com/tomoncle/bunrepo/utils"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the root application configuration.
type Config struct {
	Pagination PaginationConfig `yaml:"pagination"`
	Database   database.Config  `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
}

type PaginationConfig struct {
	PageLimit int `yaml:"page_limit"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	BasePath        string        `yaml:"base_path"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
	EnableMetrics   bool          `yaml:"enable_metrics"`
}

// Default returns a config for a local sqlite file with 25 items per page.
func Default() *Config {
	conn := database.DefaultConnectionConfig()
	conn.Type = "sqlite"
	conn.DBName = "bunrepo.db"
	return &Config{
		Pagination: PaginationConfig{PageLimit: types.DefaultPageLimit},
		Database: database.Config{
			ConnectionConfig: *conn,
			MigrateConfig:    database.MigrateConfig{EnableMigrateOnStartup: true},
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			EnableMetrics:   true,
		},
	}
}

// Load reads path on top of Default, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if raw := os.Getenv("PAGE_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid PAGE_LIMIT %q: %w", raw, err)
		}
		c.Pagination.PageLimit = limit
	}
	c.Log.Level = utils.EnvDefaultString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = utils.EnvDefaultString("CONSOLE_LOG_FORMAT", c.Log.Format)
	c.Server.Addr = utils.EnvDefaultString("SERVER_ADDR", c.Server.Addr)
	c.Server.EnableMetrics = utils.EnvDefaultBool("SERVER_ENABLE_METRICS", c.Server.EnableMetrics)
	c.Database.MigrateConfig.EnableMigrateOnStartup = utils.EnvDefaultBool(
		"DB_MIGRATE_ON_STARTUP", c.Database.MigrateConfig.EnableMigrateOnStartup)
	database.OverrideFromEnv(&c.Database.ConnectionConfig)
	return nil
}

// Validate checks the page limit first, so a bad limit is reported as
// InvalidPageLimit, then the struct tags.
func (c *Config) Validate() error {
	if err := types.ValidateLimit(c.Pagination.PageLimit); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid configuration: %s failed on %q (value %v): %w",
				fe.Namespace(), fe.Tag(), fe.Value(), err)
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// PaginationConfig builds the shared pagination config handed to repositories.
func (c *Config) PaginationConfig() (*types.PaginationConfig, error) {
	return types.NewPaginationConfig(c.Pagination.PageLimit)
}

// ApplyLogging configures the named loggers from the log section.
func (c *Config) ApplyLogging() {
	if c.Log.Format != "" {
		utils.ConfigureConsoleLogFormat(c.Log.Format)
	}
	if c.Log.Level != "" {
		utils.ConfigureLogLevel(c.Log.Level)
	}
}

// YAML renders the effective configuration with the password masked.
func (c *Config) YAML() ([]byte, error) {
	masked := *c
	if masked.Database.ConnectionConfig.Password != "" {
		masked.Database.ConnectionConfig.Password = "******"
	}
	return yaml.Marshal(&masked)
}
