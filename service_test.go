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

package datajpa

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/types"
)

func initTestDB(t *testing.T) {
	t.Helper()
	cfg := database.DefaultConfig()
	cfg.ConnectionConfig.DSN = "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	cfg.ConnectionConfig.SlowQueryTime = 0
	_, err := database.InitDB(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB() })
}

func TestMemberServiceWithoutDatabase(t *testing.T) {
	_, err := NewMemberService().Members(context.Background())
	assert.ErrorIs(t, err, database.ErrNotInitialized)
}

func TestMemberServiceBindsOnceDatabaseIsUp(t *testing.T) {
	ctx := context.Background()
	svc := NewMemberService()
	_, err := svc.Members(ctx)
	require.ErrorIs(t, err, database.ErrNotInitialized)

	initTestDB(t)
	_, err = svc.RegisterTeam(ctx, "teamA")
	require.NoError(t, err)
	members, err := svc.Members(ctx)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestMemberServiceFlow(t *testing.T) {
	ctx := context.Background()
	initTestDB(t)
	svc := NewMemberService()

	_, err := svc.RegisterTeam(ctx, "teamA")
	require.NoError(t, err)
	_, err = svc.RegisterTeam(ctx, "teamB")
	require.NoError(t, err)

	member1, err := svc.RegisterMember(ctx, "member1", 10, "teamA")
	require.NoError(t, err)
	require.NotNil(t, member1.TeamID)
	_, err = svc.RegisterMember(ctx, "member2", 20, "")
	require.NoError(t, err)

	_, err = svc.RegisterMember(ctx, "member3", 30, "teamC")
	assert.ErrorIs(t, err, database.ErrNotFound)

	require.NoError(t, svc.ChangeTeam(ctx, member1.ID, "teamB"))
	assert.ErrorIs(t, svc.ChangeTeam(ctx, member1.ID+100, "teamB"), database.ErrNotFound)
	assert.ErrorIs(t, svc.ChangeTeam(ctx, member1.ID, "teamC"), database.ErrNotFound)

	members, err := svc.Members(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.NotNil(t, members[0].Team)
	assert.Equal(t, "teamB", members[0].Team.Name)
	assert.Nil(t, members[1].Team)

	page, err := svc.MemberPage(ctx, 10, types.NewPageRequest(0, 5, types.By(types.ASC, "username")))
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "member1", page.Content[0].Username)
	assert.Equal(t, "teamB", page.Content[0].TeamName)
	assert.Equal(t, 1, page.TotalElements)

	n, err := svc.CelebrateBirthdays(ctx, 15)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	members, err = svc.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, 21, members[1].Age)
}
