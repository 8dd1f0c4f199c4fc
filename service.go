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
	"fmt"
	"sync"

	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/persistence"
	"github.com/tomoncle/datajpa/repository"
	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
)

// MemberService is the application facade over the member and team
// repositories.
type MemberService interface {
	// RegisterTeam saves a new team.
	RegisterTeam(ctx context.Context, name string) (*entity.Team, error)

	// RegisterMember saves a new member, joining the named team when
	// teamName is not empty.
	RegisterMember(ctx context.Context, username string, age int, teamName string) (*entity.Member, error)

	// ChangeTeam moves a member to the named team inside a transaction.
	ChangeTeam(ctx context.Context, memberID int64, teamName string) error

	// MemberPage returns a page of members of the given age as DTOs.
	MemberPage(ctx context.Context, age int, pageable *types.PageRequest) (*types.Page[entity.MemberDto], error)

	// CelebrateBirthdays adds a year to every member aged fromAge or older.
	CelebrateBirthdays(ctx context.Context, fromAge int) (int, error)

	// Members returns every member with its team.
	Members(ctx context.Context) ([]*entity.Member, error)
}

type memberServiceImpl struct {
	db      bun.IDB
	members *repository.MemberRepository
	teams   *repository.TeamRepository
	mu      sync.Mutex
}

// NewMemberService returns a MemberService bound to the global database
// connection on the first call after database.InitDB.
func NewMemberService() MemberService {
	return &memberServiceImpl{}
}

// NewMemberServiceWithDB returns a MemberService running on db.
func NewMemberServiceWithDB(db bun.IDB) MemberService {
	s := &memberServiceImpl{}
	s.bind(db)
	return s
}

func (s *memberServiceImpl) bind(db bun.IDB) {
	s.db = db
	s.members = repository.NewMemberRepository(db)
	s.teams = repository.NewTeamRepository(db)
}

// init binds the global database on the first call that finds one.
func (s *memberServiceImpl) init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	db := database.GetDB()
	if db == nil {
		return database.ErrNotInitialized
	}
	s.bind(db)
	return nil
}

func (s *memberServiceImpl) RegisterTeam(ctx context.Context, name string) (*entity.Team, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	team := entity.NewTeam(name)
	if err := s.teams.Save(ctx, team); err != nil {
		return nil, fmt.Errorf("register team %q: %w", name, err)
	}
	return team, nil
}

func (s *memberServiceImpl) RegisterMember(ctx context.Context, username string, age int, teamName string) (*entity.Member, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	var team *entity.Team
	if teamName != "" {
		found, err := s.teams.FindByName(ctx, teamName)
		if err != nil {
			return nil, fmt.Errorf("register member %q: team %q: %w", username, teamName, err)
		}
		team = found
	}
	member := entity.NewMember(username, age, team)
	if err := s.members.Save(ctx, member); err != nil {
		return nil, fmt.Errorf("register member %q: %w", username, err)
	}
	return member, nil
}

func (s *memberServiceImpl) ChangeTeam(ctx context.Context, memberID int64, teamName string) error {
	if err := s.init(); err != nil {
		return err
	}
	err := persistence.Transactional(ctx, s.db, func(ctx context.Context, pc *persistence.Context) error {
		member, err := repository.NewMemberStore(pc).FindByID(ctx, memberID)
		if err != nil {
			return err
		}
		team, err := s.teams.WithTx(pc.DB()).FindByName(ctx, teamName)
		if err != nil {
			return fmt.Errorf("team %q: %w", teamName, err)
		}
		member.ChangeTeam(team)
		return nil
	})
	if err != nil {
		return fmt.Errorf("change team of member %d: %w", memberID, err)
	}
	return nil
}

func (s *memberServiceImpl) MemberPage(ctx context.Context, age int, pageable *types.PageRequest) (*types.Page[entity.MemberDto], error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	page, err := s.members.FindByAgeWithCountQuery(ctx, age, pageable)
	if err != nil {
		return nil, fmt.Errorf("member page %s: %w", pageable, err)
	}
	return types.MapPage(page, entity.NewMemberDto), nil
}

func (s *memberServiceImpl) CelebrateBirthdays(ctx context.Context, fromAge int) (int, error) {
	if err := s.init(); err != nil {
		return 0, err
	}
	n, err := s.members.BulkAgePlus(ctx, fromAge)
	if err != nil {
		return 0, fmt.Errorf("bulk age update from %d: %w", fromAge, err)
	}
	return n, nil
}

func (s *memberServiceImpl) Members(ctx context.Context) ([]*entity.Member, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	return s.members.FindAllWithTeam(ctx)
}
