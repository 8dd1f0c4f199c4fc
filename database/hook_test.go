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
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCounterCountsByOperation(t *testing.T) {
	ctx := context.Background()
	dm := openTestManager(t, DataMigrateConfig{}, DataInitConfig{})
	require.NoError(t, dm.RunMigrations(ctx))

	db := dm.GetDB()
	counter := NewQueryCounter()
	db.AddQueryHook(counter)

	_, err := db.NewInsert().Model(&testTeam{Name: "teamA"}).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewSelect().Model((*testTeam)(nil)).Count(ctx)
	require.NoError(t, err)
	_, err = db.NewUpdate().Model((*testTeam)(nil)).Set("name = ?", "teamB").Where("id = ?", 1).Exec(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, counter.Count("insert"))
	assert.Equal(t, 1, counter.Count("SELECT"))
	assert.Equal(t, 1, counter.Count("UPDATE"))
	assert.Equal(t, 3, counter.Total())
	assert.Contains(t, counter.Queries()[1], "count(*)")

	counter.Reset()
	assert.Zero(t, counter.Total())
}

func TestQueryHookHonoursSilentMode(t *testing.T) {
	ctx := context.Background()
	dm := openTestManager(t, DataMigrateConfig{}, DataInitConfig{})

	var buf bytes.Buffer
	dm.GetDB().AddQueryHook(NewQueryHook("", true, true, &buf))

	EnableBunSqlSilent(true)
	_, err := dm.GetDB().ExecContext(ctx, "SELECT 1")
	EnableBunSqlSilent(false)
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	_, err = dm.GetDB().ExecContext(ctx, "SELECT 2")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "SELECT 2")
}

func TestQueryHookEnvOverride(t *testing.T) {
	ctx := context.Background()
	dm := openTestManager(t, DataMigrateConfig{}, DataInitConfig{})

	var buf bytes.Buffer
	dm.GetDB().AddQueryHook(NewQueryHook("DATAJPA_TEST_SQL_LOG", true, true, &buf))

	t.Setenv("DATAJPA_TEST_SQL_LOG", "1")
	_, err := dm.GetDB().ExecContext(ctx, "SELECT 1")
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "level 1 prints failing statements only")

	_, err = dm.GetDB().ExecContext(ctx, "SELECT * FROM no_such_table")
	require.Error(t, err)
	assert.Contains(t, buf.String(), "no_such_table")
}

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) SetLevel(LogLevel)                       {}
func (l *recordingLogger) Debug(msg string, fields ...interface{}) {}
func (l *recordingLogger) Info(msg string, fields ...interface{})  {}
func (l *recordingLogger) Error(msg string, fields ...interface{}) {}
func (l *recordingLogger) Warn(msg string, fields ...interface{}) {
	l.warnings = append(l.warnings, msg)
}

func TestSlowQueryHook(t *testing.T) {
	ctx := context.Background()
	dm := openTestManager(t, DataMigrateConfig{}, DataInitConfig{})

	logger := &recordingLogger{}
	dm.GetDB().AddQueryHook(NewSlowQueryHook(-time.Nanosecond, logger))

	_, err := dm.GetDB().ExecContext(ctx, "SELECT 1")
	require.NoError(t, err)
	require.Len(t, logger.warnings, 1)
	assert.Contains(t, logger.warnings[0], "slow query")
}
