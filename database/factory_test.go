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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_TYPE", "mysql")
	t.Setenv("DB_HOST", "mysql.local")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_CONN_MAX_LIFETIME", "90")
	t.Setenv("DB_ENABLE_QUERY_LOG", "true")
	t.Setenv("DB_SLOW_QUERY_TIME", "150")
	t.Setenv("DB_ENABLE_FOREIGN_KEY", "true")
	t.Setenv("DB_SEED_ENV", "prod")

	cfg := DefaultConfig()
	require.NoError(t, OverrideFromEnv(cfg))

	conn := cfg.ConnectionConfig
	assert.Equal(t, "mysql", conn.Type)
	assert.Equal(t, "mysql.local", conn.Host)
	assert.Equal(t, 3307, conn.Port)
	assert.Equal(t, 7, conn.MaxOpenConns)
	assert.Equal(t, 90*time.Second, conn.ConnMaxLifetime)
	assert.True(t, conn.EnableQueryLog)
	assert.Equal(t, 150*time.Millisecond, conn.SlowQueryTime)
	assert.Equal(t, 10, conn.MaxIdleConns)
	assert.True(t, cfg.DataMigrateConfig.EnableForeignKey)
	assert.Equal(t, "prod", cfg.DataInitConfig.Environment)
	assert.Equal(t, "configs/sql", cfg.DataInitConfig.Filepath)
}

func TestOverrideFromEnvDurationsAndErrors(t *testing.T) {
	t.Setenv("DB_CONN_MAX_LIFETIME", "2m")
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("DB_MIGRATE_ON_STARTUP", "maybe")

	cfg := DefaultConfig()
	err := OverrideFromEnv(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PORT")
	assert.Contains(t, err.Error(), "DB_MIGRATE_ON_STARTUP")
	assert.Equal(t, 2*time.Minute, cfg.ConnectionConfig.ConnMaxLifetime)
	assert.Zero(t, cfg.ConnectionConfig.Port)
	assert.True(t, cfg.DataMigrateConfig.EnableMigrateOnStartup)

	_, err = NewDatabaseFactory().CreateFromConfig(DefaultConfig())
	assert.Error(t, err)
}

func TestCreateFromConfigRejectsUnsupportedType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectionConfig.Type = "oracle"
	_, err := NewDatabaseFactory().CreateFromConfig(cfg)
	assert.Error(t, err)

	_, err = NewDatabaseFactory().CreateFromConfig(nil)
	assert.Error(t, err)
}

func TestFactoryWithoutManager(t *testing.T) {
	f := NewDatabaseFactory()
	assert.Nil(t, f.GetDB())
	assert.NoError(t, f.Close())
	assert.Error(t, f.InitializeDatabase(context.Background(), false))
	assert.False(t, f.GetHealthStatus(context.Background()).Healthy)
}

func TestGlobalDatabase(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetDB())
	assert.ErrorIs(t, RunMigrations(ctx), ErrNotInitialized)

	cfg := DefaultConfig()
	cfg.ConnectionConfig.DSN = memoryDSN(t)
	cfg.DataInitConfig.Filepath = t.TempDir()

	db, err := InitDB(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB() })

	assert.Same(t, db, GetDB())
	assert.NotNil(t, GetDatabaseManager())
	assert.True(t, GetHealthStatus(ctx).Healthy)
	assert.Equal(t, 1, GetDatabaseStats().MaxOpenConns)
	require.NoError(t, RunMigrations(ctx))
	require.NoError(t, InitData(ctx), "an empty seed directory is not an error")

	exists, err := db.NewSelect().Model((*Migration)(nil)).Where("version = ?", "001").Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, CloseDB())
	assert.Nil(t, GetDB())
	assert.False(t, GetHealthStatus(ctx).Healthy)
}
