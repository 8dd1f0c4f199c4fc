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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type testTeam struct {
	bun.BaseModel `bun:"table:test_teams,alias:tt"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

type testPlayer struct {
	bun.BaseModel `bun:"table:test_players,alias:tp"`

	ID     int64  `bun:"id,pk,autoincrement"`
	Name   string `bun:"name,notnull,unique"`
	TeamID *int64 `bun:"team_id"`
}

func init() {
	RegisteredModel(NewModelAdapter((*testPlayer)(nil), 2))
	RegisteredModel(NewModelAdapter((*testTeam)(nil), 1))
	RegisterForeignKey(ForeignKeyConstraint{
		Table:           "test_players",
		Column:          "team_id",
		ReferenceTable:  "test_teams",
		ReferenceColumn: "id",
		OnDelete:        "set null",
	})
	RegisterIndex(IndexDefinition{
		Name:    "idx_test_players_name",
		Model:   (*testPlayer)(nil),
		Columns: []string{"name"},
	})
}

func memoryDSN(t *testing.T) string {
	return "file:" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
}

func openTestManager(t *testing.T, migrateCfg DataMigrateConfig, initCfg DataInitConfig) *defaultDatabaseManager {
	t.Helper()
	cfg := DefaultConnectionConfig()
	cfg.DSN = memoryDSN(t)
	cfg.SlowQueryTime = 0

	dm := newDatabaseManager(cfg, migrateCfg, initCfg)
	require.NoError(t, dm.Connect(context.Background()))
	t.Cleanup(func() { _ = dm.Disconnect() })
	return dm
}
