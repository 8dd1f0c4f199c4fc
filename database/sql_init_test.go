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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileOrder(t *testing.T) {
	assert.Equal(t, 1, parseFileOrder("001_teams.sql"))
	assert.Equal(t, 20, parseFileOrder("20_members.sql"))
	assert.Equal(t, 999, parseFileOrder("members.sql"))
}

func TestSplitSQLStatements(t *testing.T) {
	content := `
-- seed
INSERT INTO teams (name) VALUES ('teamA');

INSERT INTO members (username, age)
  VALUES ('member1', 10);
UPDATE members SET age = 11
`
	stmts := splitSQLStatements(content)
	require.Len(t, stmts, 3)
	assert.Equal(t, "INSERT INTO teams (name) VALUES ('teamA')", stmts[0])
	assert.Equal(t, "INSERT INTO members (username, age) VALUES ('member1', 10)", stmts[1])
	assert.Equal(t, "UPDATE members SET age = 11", stmts[2])
	assert.Empty(t, splitSQLStatements("-- nothing\n\n"))
}

func TestGetSQLFilesOrdersCommonFirst(t *testing.T) {
	root := t.TempDir()
	writeSQL(t, filepath.Join(root, "common", "010_b.sql"), "SELECT 1;")
	writeSQL(t, filepath.Join(root, "common", "002_a.sql"), "SELECT 1;")
	writeSQL(t, filepath.Join(root, "common", "readme.txt"), "ignored")
	writeSQL(t, filepath.Join(root, "environments", "dev", "001_dev.sql"), "SELECT 1;")
	writeSQL(t, filepath.Join(root, "environments", "prod", "001_prod.sql"), "SELECT 1;")

	s := NewSQLInitManager(nil, "dev")
	s.SetSQLRootPath(root)
	files, err := s.GetSQLFiles()
	require.NoError(t, err)

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"002_a.sql", "010_b.sql", "001_dev.sql"}, names)
}

func TestGetSQLFilesMissingRoot(t *testing.T) {
	s := NewSQLInitManager(nil, "dev")
	s.SetSQLRootPath(filepath.Join(t.TempDir(), "absent"))
	files, err := s.GetSQLFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestExecuteInitializationStopsOnFailure(t *testing.T) {
	ctx := context.Background()
	dm := openTestManager(t, DataMigrateConfig{}, DataInitConfig{})
	require.NoError(t, dm.RunMigrations(ctx))

	root := t.TempDir()
	writeSQL(t, filepath.Join(root, "common", "001_ok.sql"), "INSERT INTO test_players (name) VALUES ('member1');")
	writeSQL(t, filepath.Join(root, "common", "002_dup.sql"),
		"INSERT INTO test_players (name) VALUES ('member2');\nINSERT INTO test_players (name) VALUES ('member1');")

	s := NewSQLInitManager(dm.GetDB(), "dev")
	s.SetSQLRootPath(root)
	err := s.ExecuteInitialization(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// the failing file is rolled back as a whole
	names := make([]string, 0)
	require.NoError(t, dm.GetDB().NewSelect().Model((*testPlayer)(nil)).Column("name").Scan(ctx, &names))
	assert.Equal(t, []string{"member1"}, names)
}
