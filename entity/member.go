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
	"fmt"
	"slices"

	"github.com/uptrace/bun"
)

var (
	_ bun.BeforeAppendModelHook = (*Member)(nil)
	_ bun.BeforeAppendModelHook = (*Team)(nil)
)

type Member struct {
	bun.BaseModel `bun:"table:members,alias:m"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Username string `bun:"username,notnull" json:"username"`
	Age      int    `bun:"age,notnull,default:0" json:"age"`
	TeamID   *int64 `bun:"team_id" json:"team_id,omitempty"`
	Team     *Team  `bun:"rel:belongs-to,join:team_id=id" json:"-"`
	BaseEntity
}

// NewMember creates a member and, when team is not nil, joins it.
func NewMember(username string, age int, team *Team) *Member {
	m := &Member{Username: username, Age: age}
	if team != nil {
		m.ChangeTeam(team)
	}
	return m
}

// ChangeTeam moves the member to team and keeps both sides of the
// association in sync. A nil team detaches the member.
func (m *Member) ChangeTeam(team *Team) {
	if m.Team != nil {
		m.Team.Members = slices.DeleteFunc(m.Team.Members, func(other *Member) bool { return other == m })
	}
	m.Team = team
	if team == nil {
		m.TeamID = nil
		return
	}
	id := team.ID
	m.TeamID = &id
	if !slices.Contains(team.Members, m) {
		team.Members = append(team.Members, m)
	}
}

// SyncTeamID copies the id of an attached team that was persisted after the
// member joined it.
func (m *Member) SyncTeamID() {
	if m.Team != nil && m.Team.ID != 0 {
		id := m.Team.ID
		m.TeamID = &id
	}
}

func (m *Member) String() string {
	return fmt.Sprintf("Member(id=%d, username=%s, age=%d)", m.ID, m.Username, m.Age)
}

// MemberDto is the id, username and team name projection of a member.
type MemberDto struct {
	ID       int64  `bun:"id" json:"id"`
	Username string `bun:"username" json:"username"`
	TeamName string `bun:"team_name" json:"team_name"`
}

func NewMemberDto(m *Member) *MemberDto {
	dto := &MemberDto{ID: m.ID, Username: m.Username}
	if m.Team != nil {
		dto.TeamName = m.Team.Name
	}
	return dto
}
