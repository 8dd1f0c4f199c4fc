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

package entity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestChangeTeamKeepsBothSides(t *testing.T) {
	teamA := &Team{ID: 1, Name: "teamA"}
	teamB := &Team{ID: 2, Name: "teamB"}

	m := NewMember("member1", 10, teamA)
	require.NotNil(t, m.TeamID)
	assert.Equal(t, int64(1), *m.TeamID)
	assert.Equal(t, []*Member{m}, teamA.Members)

	m.ChangeTeam(teamB)
	assert.Empty(t, teamA.Members)
	assert.Equal(t, []*Member{m}, teamB.Members)
	assert.Equal(t, int64(2), *m.TeamID)

	m.ChangeTeam(teamB)
	assert.Len(t, teamB.Members, 1)

	m.ChangeTeam(nil)
	assert.Nil(t, m.Team)
	assert.Nil(t, m.TeamID)
	assert.Empty(t, teamB.Members)
}

func TestSyncTeamID(t *testing.T) {
	team := NewTeam("teamA")
	m := NewMember("member1", 10, team)
	require.NotNil(t, m.TeamID)
	assert.Zero(t, *m.TeamID)

	team.ID = 7
	m.SyncTeamID()
	assert.Equal(t, int64(7), *m.TeamID)
}

func TestStringSkipsAssociations(t *testing.T) {
	team := &Team{ID: 1, Name: "teamA"}
	m := NewMember("member1", 10, team)
	m.ID = 3
	assert.Equal(t, "Member(id=3, username=member1, age=10)", m.String())
	assert.Equal(t, "Team(id=1, name=teamA)", team.String())
}

func TestNewMemberDto(t *testing.T) {
	m := NewMember("member1", 10, &Team{ID: 1, Name: "teamA"})
	m.ID = 5
	assert.Equal(t, &MemberDto{ID: 5, Username: "member1", TeamName: "teamA"}, NewMemberDto(m))
	assert.Equal(t, "", NewMemberDto(NewMember("solo", 1, nil)).TeamName)
}

func TestAuditDates(t *testing.T) {
	ctx := context.Background()
	m := NewMember("member1", 10, nil)

	require.NoError(t, m.BeforeAppendModel(ctx, &bun.InsertQuery{}))
	created := m.CreatedDate
	assert.False(t, created.IsZero())
	assert.Equal(t, created, m.LastModifiedDate)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, m.BeforeAppendModel(ctx, &bun.UpdateQuery{}))
	assert.Equal(t, created, m.CreatedDate)
	assert.True(t, m.LastModifiedDate.After(created))

	before := m.LastModifiedDate
	require.NoError(t, m.BeforeAppendModel(ctx, &bun.SelectQuery{}))
	assert.Equal(t, before, m.LastModifiedDate)
}
