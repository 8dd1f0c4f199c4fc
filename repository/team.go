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
	"github.com/uptrace/bun"
)

type TeamRepository struct {
	Repository[entity.Team]
}

func NewTeamRepository(db bun.IDB) *TeamRepository {
	return &TeamRepository{Repository: NewRepository[entity.Team](db)}
}

func (r *TeamRepository) WithTx(db bun.IDB) *TeamRepository {
	return NewTeamRepository(db)
}

// FindByName returns the first team named name by id.
func (r *TeamRepository) FindByName(ctx context.Context, name string) (*entity.Team, error) {
	team := new(entity.Team)
	err := r.NewSelect().
		Model(team).
		Where("?TableAlias.name = ?", name).
		OrderExpr("?TableAlias.id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return team, nil
}

// FindAllWithMembers loads every team and its members with one extra query.
func (r *TeamRepository) FindAllWithMembers(ctx context.Context) ([]*entity.Team, error) {
	teams := make([]*entity.Team, 0)
	err := r.NewSelect().
		Model(&teams).
		Relation("Members", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.id ASC")
		}).
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	return teams, database.TranslateError(err)
}
