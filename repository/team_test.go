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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/entity"
)

func TestTeamFindByName(t *testing.T) {
	ctx := context.Background()
	db, _ := openDB(t)
	repo := NewTeamRepository(db)
	teamA := entity.NewTeam("teamA")
	saveTeams(t, repo, teamA, entity.NewTeam("teamB"))

	found, err := repo.FindByName(ctx, "teamA")
	require.NoError(t, err)
	assert.Equal(t, teamA.ID, found.ID)

	_, err = repo.FindByName(ctx, "teamC")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestTeamFindAllWithMembers(t *testing.T) {
	ctx := context.Background()
	db, counter := openDB(t)
	teams := NewTeamRepository(db)
	members := NewMemberRepository(db)

	teamA := entity.NewTeam("teamA")
	teamB := entity.NewTeam("teamB")
	saveTeams(t, teams, teamA, teamB)
	saveMembers(t, members,
		entity.NewMember("member1", 10, teamA),
		entity.NewMember("member2", 20, teamA),
		entity.NewMember("member3", 30, teamB),
	)

	counter.Reset()
	loaded, err := teams.FindAllWithMembers(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, []string{"member1", "member2"}, usernames(loaded[0].Members))
	assert.Equal(t, []string{"member3"}, usernames(loaded[1].Members))
	assert.Equal(t, 2, counter.Count("SELECT"))
}

func TestTeamWithTx(t *testing.T) {
	ctx := context.Background()
	db, _ := openDB(t)
	repo := NewTeamRepository(db)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repo.WithTx(tx).Save(ctx, entity.NewTeam("teamA")))
	require.NoError(t, tx.Commit())

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
