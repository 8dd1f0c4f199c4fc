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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appliedVersions(t *testing.T, dm *defaultDatabaseManager) []string {
	t.Helper()
	mm, err := dm.migrationManager()
	require.NoError(t, err)
	applied, err := mm.GetAppliedMigrations(context.Background())
	require.NoError(t, err)
	versions := make([]string, len(applied))
	for i, m := range applied {
		versions[i] = m.Version
	}
	return versions
}

func TestRunMigrationsCreatesTablesAndIndexes(t *testing.T) {
	ctx := context.Background()
	dm := openTestManager(t, DataMigrateConfig{EnableForeignKey: true}, DataInitConfig{})

	require.NoError(t, dm.RunMigrations(ctx))
	require.NoError(t, dm.RunMigrations(ctx), "migrations must be idempotent")
	assert.Equal(t, []string{"001", "002"}, appliedVersions(t, dm))

	db := dm.GetDB()
	var ddl string
	require.NoError(t, db.NewRaw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", "test_players").Scan(ctx, &ddl))
	assert.Contains(t, ddl, `REFERENCES "test_teams" ("id") ON DELETE SET NULL`)

	var indexes int
	require.NoError(t, db.NewRaw("SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name = ?", "idx_test_players_name").Scan(ctx, &indexes))
	assert.Equal(t, 1, indexes)

	_, err := db.NewInsert().Model(&testTeam{Name: "teamA"}).Exec(ctx)
	require.NoError(t, err)
}

func TestRunMigrationsWithoutForeignKeys(t *testing.T) {
	ctx := context.Background()
	dm := openTestManager(t, DataMigrateConfig{}, DataInitConfig{})
	require.NoError(t, dm.RunMigrations(ctx))

	var ddl string
	require.NoError(t, dm.GetDB().NewRaw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", "test_players").Scan(ctx, &ddl))
	assert.NotContains(t, ddl, "REFERENCES")
}

func TestRunMigrationsSeedsData(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeSQL(t, filepath.Join(root, "common", "001_teams.sql"),
		"-- teams\nINSERT INTO test_teams (name) VALUES ('teamA');\nINSERT INTO test_teams (name)\n  VALUES ('teamB');\n")
	writeSQL(t, filepath.Join(root, "environments", "test", "001_players.sql"),
		"INSERT INTO test_players (name, team_id) VALUES ('{{.ENVIRONMENT}}-player', 1);\n")

	dm := openTestManager(t, DataMigrateConfig{}, DataInitConfig{
		AutoInitOnMigration: true,
		Filepath:            root,
		Environment:         "test",
	})
	require.NoError(t, dm.RunMigrations(ctx))
	assert.Equal(t, []string{"001", "002", "003"}, appliedVersions(t, dm))

	db := dm.GetDB()
	teams, err := db.NewSelect().Model((*testTeam)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, teams)

	var player testPlayer
	require.NoError(t, db.NewSelect().Model(&player).Limit(1).Scan(ctx))
	assert.Equal(t, "test-player", player.Name)
}

func TestInitDataWithoutConnection(t *testing.T) {
	mm := NewMigrationManager(nil, nil)
	assert.ErrorIs(t, mm.InitData(context.Background()), ErrNotInitialized)
	assert.ErrorIs(t, mm.RunMigrations(context.Background()), ErrNotInitialized)
}

func writeSQL(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
