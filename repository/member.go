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

	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
)

// MemberRepositoryCustom holds member queries written as raw SQL.
type MemberRepositoryCustom interface {
	FindMemberCustom(ctx context.Context) ([]*entity.Member, error)
}

type memberRepositoryCustomImpl struct {
	db bun.IDB
}

// FindMemberCustom returns every member, team or not, ordered by id.
func (r *memberRepositoryCustomImpl) FindMemberCustom(ctx context.Context) ([]*entity.Member, error) {
	members := make([]*entity.Member, 0)
	err := r.db.NewRaw("SELECT * FROM ? ORDER BY ? ASC", bun.Ident("members"), bun.Ident("id")).Scan(ctx, &members)
	return members, database.TranslateError(err)
}

// MemberRepository is the generic member repository plus the member finders.
type MemberRepository struct {
	Repository[entity.Member]
	MemberRepositoryCustom
}

func NewMemberRepository(db bun.IDB) *MemberRepository {
	return &MemberRepository{
		Repository:             NewRepository[entity.Member](db),
		MemberRepositoryCustom: &memberRepositoryCustomImpl{db: db},
	}
}

// WithTx returns a member repository running on db, usually a transaction.
func (r *MemberRepository) WithTx(db bun.IDB) *MemberRepository {
	return NewMemberRepository(db)
}

func (r *MemberRepository) selectMembers(members *[]*entity.Member) *bun.SelectQuery {
	return r.NewSelect().Model(members)
}

func (r *MemberRepository) FindByUsernameAndAgeGreaterThan(ctx context.Context, username string, age int) ([]*entity.Member, error) {
	members := make([]*entity.Member, 0)
	err := r.selectMembers(&members).
		Where("?TableAlias.username = ?", username).
		Where("?TableAlias.age > ?", age).
		Scan(ctx)
	return members, database.TranslateError(err)
}

// FindByUsername runs the Member.findByUsername named query.
func (r *MemberRepository) FindByUsername(ctx context.Context, username string) ([]*entity.Member, error) {
	where, err := NamedQuery(MemberFindByUsername)
	if err != nil {
		return nil, err
	}
	members := make([]*entity.Member, 0)
	err = r.selectMembers(&members).Where(where, username).Scan(ctx)
	return members, database.TranslateError(err)
}

func (r *MemberRepository) FindUser(ctx context.Context, username string, age int) ([]*entity.Member, error) {
	members := make([]*entity.Member, 0)
	err := r.selectMembers(&members).
		Where("?TableAlias.username = ? AND ?TableAlias.age = ?", username, age).
		Scan(ctx)
	return members, database.TranslateError(err)
}

func (r *MemberRepository) FindUsernameList(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	err := r.NewSelect().
		Model((*entity.Member)(nil)).
		Column("username").
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx, &names)
	return names, database.TranslateError(err)
}

// FindMemberDto projects members that belong to a team.
func (r *MemberRepository) FindMemberDto(ctx context.Context) ([]*entity.MemberDto, error) {
	dtos := make([]*entity.MemberDto, 0)
	err := r.NewSelect().
		Model((*entity.Member)(nil)).
		ColumnExpr("?TableAlias.id AS id, ?TableAlias.username AS username, t.name AS team_name").
		Join("JOIN teams AS t ON t.id = ?TableAlias.team_id").
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx, &dtos)
	return dtos, database.TranslateError(err)
}

// FindByNames binds names to an IN list. No query runs for an empty list.
func (r *MemberRepository) FindByNames(ctx context.Context, names []string) ([]*entity.Member, error) {
	members := make([]*entity.Member, 0)
	if len(names) == 0 {
		return members, nil
	}
	err := r.selectMembers(&members).
		Where("?TableAlias.username IN (?)", bun.In(names)).
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	return members, database.TranslateError(err)
}

func (r *MemberRepository) ageContent(age int, pageable *types.PageRequest, fetchTeam bool) ContentFunc[entity.Member] {
	return func(ctx context.Context, offset, limit int) ([]*entity.Member, error) {
		members := make([]*entity.Member, 0)
		q := r.selectMembers(&members).Where("?TableAlias.age = ?", age)
		if fetchTeam {
			q = q.Relation("Team")
		}
		q, err := ApplySort(q, r.Table(), pageable.GetSort())
		if err != nil {
			return nil, err
		}
		err = q.Offset(offset).Limit(limit).Scan(ctx)
		return members, database.TranslateError(err)
	}
}

func (r *MemberRepository) ageCount(age int) CountFunc {
	return func(ctx context.Context) (int, error) {
		n, err := r.NewSelect().Model((*entity.Member)(nil)).Where("?TableAlias.age = ?", age).Count(ctx)
		return n, database.TranslateError(err)
	}
}

func (r *MemberRepository) FindByAge(ctx context.Context, age int, pageable *types.PageRequest) (*types.Page[entity.Member], error) {
	return Paginate(ctx, pageable, r.ageContent(age, pageable, false), r.ageCount(age))
}

// FindByAgeWithCountQuery fetches the team with each member while the count
// query stays on the members table alone.
func (r *MemberRepository) FindByAgeWithCountQuery(ctx context.Context, age int, pageable *types.PageRequest) (*types.Page[entity.Member], error) {
	return Paginate(ctx, pageable, r.ageContent(age, pageable, true), r.ageCount(age))
}

func (r *MemberRepository) FindSliceByAge(ctx context.Context, age int, pageable *types.PageRequest) (*types.Slice[entity.Member], error) {
	return SliceOf(ctx, pageable, r.ageContent(age, pageable, false))
}

func (r *MemberRepository) FindTopByAgeOrderByUsernameDesc(ctx context.Context, age int, limit int) ([]*entity.Member, error) {
	members := make([]*entity.Member, 0)
	err := r.selectMembers(&members).
		Where("?TableAlias.age = ?", age).
		OrderExpr("?TableAlias.username DESC").
		Limit(limit).
		Scan(ctx)
	return members, database.TranslateError(err)
}

// FindOneByUsername expects exactly one match: none is database.ErrNotFound,
// several is database.ErrNotUnique.
func (r *MemberRepository) FindOneByUsername(ctx context.Context, username string) (*entity.Member, error) {
	members := make([]*entity.Member, 0)
	err := r.selectMembers(&members).
		Where("?TableAlias.username = ?", username).
		Limit(2).
		Scan(ctx)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	switch len(members) {
	case 0:
		return nil, database.ErrNotFound
	case 1:
		return members[0], nil
	default:
		return nil, database.ErrNotUnique
	}
}

// BulkAgePlus adds one year to every member aged age or older in a single
// statement and returns the number of rows changed.
func (r *MemberRepository) BulkAgePlus(ctx context.Context, age int) (int, error) {
	res, err := r.NewUpdate().
		Model((*entity.Member)(nil)).
		Set("age = age + 1").
		Where("age >= ?", age).
		Exec(ctx)
	if err != nil {
		return 0, database.TranslateError(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// FindMemberFetchJoin loads members with their team in one query.
func (r *MemberRepository) FindMemberFetchJoin(ctx context.Context) ([]*entity.Member, error) {
	members := make([]*entity.Member, 0)
	err := r.selectMembers(&members).
		Relation("Team").
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	return members, database.TranslateError(err)
}

// FindAllWithTeam is FindAll with the team association loaded.
func (r *MemberRepository) FindAllWithTeam(ctx context.Context) ([]*entity.Member, error) {
	return r.FindMemberFetchJoin(ctx)
}

// LoadTeam loads the team of m with its own query. Calling it per member
// after FindAll is the N+1 access pattern.
func (r *MemberRepository) LoadTeam(ctx context.Context, m *entity.Member) error {
	if m.TeamID == nil {
		m.Team = nil
		return nil
	}
	team := new(entity.Team)
	if err := r.NewSelect().Model(team).Where("?TableAlias.id = ?", *m.TeamID).Scan(ctx); err != nil {
		return database.TranslateError(err)
	}
	m.Team = team
	return nil
}
