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
	"errors"

	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/persistence"
	"github.com/uptrace/bun"
)

// MemberStore is the member repository written by hand against a
// persistence context. Loaded members stay managed, so changing one and
// flushing the context writes it back.
type MemberStore struct {
	pc *persistence.Context
}

func NewMemberStore(pc *persistence.Context) *MemberStore {
	return &MemberStore{pc: pc}
}

func (s *MemberStore) Context() *persistence.Context { return s.pc }

func (s *MemberStore) Save(ctx context.Context, m *entity.Member) (*entity.Member, error) {
	if err := s.pc.Persist(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MemberStore) Delete(ctx context.Context, m *entity.Member) error {
	return s.pc.Remove(ctx, m)
}

func (s *MemberStore) FindAll(ctx context.Context) ([]*entity.Member, error) {
	return persistence.List[entity.Member](ctx, s.pc, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("?TableAlias.id ASC")
	})
}

// FindByID returns database.ErrNotFound when no member has id.
func (s *MemberStore) FindByID(ctx context.Context, id int64) (*entity.Member, error) {
	return persistence.Find[entity.Member](ctx, s.pc, id)
}

// Find is FindByID returning nil, nil for a missing member.
func (s *MemberStore) Find(ctx context.Context, id int64) (*entity.Member, error) {
	m, err := s.FindByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

func (s *MemberStore) Count(ctx context.Context) (int, error) {
	return persistence.Count[entity.Member](ctx, s.pc, nil)
}

func (s *MemberStore) FindByUsernameAndAgeGreaterThan(ctx context.Context, username string, age int) ([]*entity.Member, error) {
	return persistence.List[entity.Member](ctx, s.pc, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.username = ?", username).Where("?TableAlias.age > ?", age)
	})
}

func (s *MemberStore) FindByUsername(ctx context.Context, username string) ([]*entity.Member, error) {
	where, err := NamedQuery(MemberFindByUsername)
	if err != nil {
		return nil, err
	}
	return persistence.List[entity.Member](ctx, s.pc, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(where, username)
	})
}

// FindByPage returns members of the given age ordered by username descending.
func (s *MemberStore) FindByPage(ctx context.Context, age int, offset int, limit int) ([]*entity.Member, error) {
	return persistence.List[entity.Member](ctx, s.pc, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.age = ?", age).
			OrderExpr("?TableAlias.username DESC").
			Offset(offset).
			Limit(limit)
	})
}

func (s *MemberStore) TotalCount(ctx context.Context, age int) (int, error) {
	return persistence.Count[entity.Member](ctx, s.pc, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.age = ?", age)
	})
}

// BulkAgePlus adds one year to every member aged age or older and clears the
// context, so members loaded afterwards carry the new age.
func (s *MemberStore) BulkAgePlus(ctx context.Context, age int) (int, error) {
	return s.pc.ExecuteUpdate(ctx, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Model((*entity.Member)(nil)).Set("age = age + 1").Where("age >= ?", age)
	}, true)
}

// FindReadOnlyByUsername loads the first member named username without a
// snapshot; changes to it are never flushed.
func (s *MemberStore) FindReadOnlyByUsername(ctx context.Context, username string) (*entity.Member, error) {
	members, err := persistence.ListReadOnly[entity.Member](ctx, s.pc, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.username = ?", username).OrderExpr("?TableAlias.id ASC").Limit(1)
	})
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, database.ErrNotFound
	}
	return members[0], nil
}
