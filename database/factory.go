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

package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

var supportedTypes = []string{"mysql", "postgres", "postgresql", "sqlite", "sqlite3"}

// envOverride maps one DB_* variable onto the configuration.
type envOverride struct {
	key   string
	apply func(cfg *Config, value string) error
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func setInt(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func setBool(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

// setDuration accepts "90s" style values; a bare integer is read in unit.
func setDuration(unit time.Duration, field func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		if n, err := strconv.Atoi(v); err == nil {
			*field(cfg) = time.Duration(n) * unit
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}
}

var envOverrides = []envOverride{
	{"DB_TYPE", setString(func(c *Config) *string { return &c.ConnectionConfig.Type })},
	{"DB_DSN", setString(func(c *Config) *string { return &c.ConnectionConfig.DSN })},
	{"DB_HOST", setString(func(c *Config) *string { return &c.ConnectionConfig.Host })},
	{"DB_PORT", setInt(func(c *Config) *int { return &c.ConnectionConfig.Port })},
	{"DB_USERNAME", setString(func(c *Config) *string { return &c.ConnectionConfig.Username })},
	{"DB_PASSWORD", setString(func(c *Config) *string { return &c.ConnectionConfig.Password })},
	{"DB_NAME", setString(func(c *Config) *string { return &c.ConnectionConfig.DBName })},
	{"DB_SSLMODE", setString(func(c *Config) *string { return &c.ConnectionConfig.SSLMode })},
	{"DB_MAX_IDLE_CONNS", setInt(func(c *Config) *int { return &c.ConnectionConfig.MaxIdleConns })},
	{"DB_MAX_OPEN_CONNS", setInt(func(c *Config) *int { return &c.ConnectionConfig.MaxOpenConns })},
	{"DB_CONN_MAX_LIFETIME", setDuration(time.Second, func(c *Config) *time.Duration { return &c.ConnectionConfig.ConnMaxLifetime })},
	{"DB_ENABLE_QUERY_LOG", setBool(func(c *Config) *bool { return &c.ConnectionConfig.EnableQueryLog })},
	{"DB_SLOW_QUERY_TIME", setDuration(time.Millisecond, func(c *Config) *time.Duration { return &c.ConnectionConfig.SlowQueryTime })},
	{"DB_MIGRATE_ON_STARTUP", setBool(func(c *Config) *bool { return &c.DataMigrateConfig.EnableMigrateOnStartup })},
	{"DB_ENABLE_FOREIGN_KEY", setBool(func(c *Config) *bool { return &c.DataMigrateConfig.EnableForeignKey })},
	{"DB_SEED_ON_MIGRATION", setBool(func(c *Config) *bool { return &c.DataInitConfig.AutoInitOnMigration })},
	{"DB_SEED_PATH", setString(func(c *Config) *string { return &c.DataInitConfig.Filepath })},
	{"DB_SEED_ENV", setString(func(c *Config) *string { return &c.DataInitConfig.Environment })},
}

// OverrideFromEnv applies every set DB_* variable to cfg. Malformed values
// are reported together and leave their field untouched.
func OverrideFromEnv(cfg *Config) error {
	var errs []error
	for _, o := range envOverrides {
		v, ok := os.LookupEnv(o.key)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", o.key, v, err))
		}
	}
	return errors.Join(errs...)
}

// DatabaseFactory builds the manager for a Config and owns its lifecycle.
type DatabaseFactory struct {
	manager AbstractDatabaseManager
	logger  Logger
}

func NewDatabaseFactory() *DatabaseFactory {
	return &DatabaseFactory{logger: GetLogger()}
}

// CreateFromConfig applies environment overrides to cfg and creates its
// manager.
func (f *DatabaseFactory) CreateFromConfig(cfg *Config) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	if err := OverrideFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	if !slices.Contains(supportedTypes, cfg.ConnectionConfig.Type) {
		return nil, fmt.Errorf("unsupported database type: %s, supported types: %v", cfg.ConnectionConfig.Type, supportedTypes)
	}

	manager := newDatabaseManager(&cfg.ConnectionConfig, cfg.DataMigrateConfig, cfg.DataInitConfig)
	manager.SetLogger(f.logger)
	f.manager = manager
	return manager, nil
}

// InitializeDatabase connects and, when runMigrations is set, migrates.
func (f *DatabaseFactory) InitializeDatabase(ctx context.Context, runMigrations bool) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}
	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if runMigrations {
		if err := f.manager.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	f.logger.Info("Database ready", "migrated", runMigrations)
	return nil
}

func (f *DatabaseFactory) GetManager() AbstractDatabaseManager { return f.manager }

func (f *DatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

func (f *DatabaseFactory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect()
}

func (f *DatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{LastError: "Database manager not initialized", LastCheckTime: time.Now()}
	}
	return f.manager.HealthCheck(ctx)
}

func (f *DatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
