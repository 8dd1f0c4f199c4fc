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

package repository

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/entity"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func openDB(t *testing.T) (*bun.DB, *database.QueryCounter) {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	db.RegisterModel((*entity.Team)(nil), (*entity.Member)(nil))
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrationManager(db, nil).RunMigrations(context.Background()))

	counter := database.NewQueryCounter()
	db.AddQueryHook(counter)
	return db, counter
}

func saveMembers(t *testing.T, repo *MemberRepository, members ...*entity.Member) {
	t.Helper()
	for _, m := range members {
		require.NoError(t, repo.Save(context.Background(), m))
	}
}

func saveTeams(t *testing.T, repo *TeamRepository, teams ...*entity.Team) {
	t.Helper()
	require.NoError(t, repo.Save(context.Background(), teams...))
}

func usernames(members []*entity.Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Username
	}
	return out
}
