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
	"fmt"
	"reflect"
	"strings"

	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	db    bun.IDB
	table *schema.Table
}

// NewRepository returns a generic repository backed by the provided Bun DB
// or transaction.
func NewRepository[T any](db bun.IDB) Repository[T] {
	return newBaseRepository[T](db)
}

func newBaseRepository[T any](db bun.IDB) *baseRepositoryImpl[T] {
	return &baseRepositoryImpl[T]{
		db:    db,
		table: db.Dialect().Tables().Get(reflect.TypeOf((*T)(nil)).Elem()),
	}
}

func (r *baseRepositoryImpl[T]) WithTx(db bun.IDB) Repository[T] {
	return &baseRepositoryImpl[T]{db: db, table: r.table}
}

func (r *baseRepositoryImpl[T]) DB() bun.IDB { return r.db }

func (r *baseRepositoryImpl[T]) Table() *schema.Table { return r.table }

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *baseRepositoryImpl[T]) NewInsert() *bun.InsertQuery { return r.db.NewInsert() }

func (r *baseRepositoryImpl[T]) NewUpdate() *bun.UpdateQuery { return r.db.NewUpdate() }

func (r *baseRepositoryImpl[T]) NewDelete() *bun.DeleteQuery { return r.db.NewDelete() }

func (r *baseRepositoryImpl[T]) ValsToSlice(entity ...*T) []*T {
	entities := make([]*T, len(entity))
	copy(entities, entity)
	return entities
}

func (r *baseRepositoryImpl[T]) pkName() bun.Ident {
	return bun.Ident(r.table.PKs[0].Name)
}

func (r *baseRepositoryImpl[T]) FindByID(ctx context.Context, id any) (*T, error) {
	var entity T
	err := r.db.NewSelect().Model(&entity).Where("?TableAlias.? = ?", r.pkName(), id).Scan(ctx)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return &entity, nil
}

func (r *baseRepositoryImpl[T]) ExistsByID(ctx context.Context, id any) (bool, error) {
	exists, err := r.db.NewSelect().Model((*T)(nil)).Where("?TableAlias.? = ?", r.pkName(), id).Exists(ctx)
	return exists, database.TranslateError(err)
}

func (r *baseRepositoryImpl[T]) FindAll(ctx context.Context) ([]*T, error) {
	entities := make([]*T, 0)
	err := r.db.NewSelect().Model(&entities).Scan(ctx)
	return entities, database.TranslateError(err)
}

func (r *baseRepositoryImpl[T]) FindAllSorted(ctx context.Context, sort types.Sort) ([]*T, error) {
	entities := make([]*T, 0)
	query, err := ApplySort(r.db.NewSelect().Model(&entities), r.table, sort)
	if err != nil {
		return nil, err
	}
	if err := query.Scan(ctx); err != nil {
		return nil, database.TranslateError(err)
	}
	return entities, nil
}

// FindAllByIDs loads the rows whose primary key is in ids. No query runs for
// an empty id list.
func (r *baseRepositoryImpl[T]) FindAllByIDs(ctx context.Context, ids ...any) ([]*T, error) {
	entities := make([]*T, 0)
	if len(ids) == 0 {
		return entities, nil
	}
	err := r.db.NewSelect().Model(&entities).Where("?TableAlias.? IN (?)", r.pkName(), bun.In(ids)).Scan(ctx)
	return entities, database.TranslateError(err)
}

func (r *baseRepositoryImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	entities := make([]*T, 0)
	query := r.db.NewSelect().Model(&entities)
	if filter != nil {
		query = query.Where(filter.Schema, filter.Args...)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, database.TranslateError(err)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Query(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	entities := make([]*T, 0)
	err := r.db.NewSelect().Model(&entities).Where(query, args...).Scan(ctx)
	return entities, database.TranslateError(err)
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context) (int, error) {
	n, err := r.db.NewSelect().Model((*T)(nil)).Count(ctx)
	return n, database.TranslateError(err)
}

// FindPage returns the requested page, honouring the request's filter and
// sort. The count query is skipped when the total follows from the content.
func (r *baseRepositoryImpl[T]) FindPage(ctx context.Context, pageRequest *types.PageRequest) (*types.Page[T], error) {
	filter := func(q *bun.SelectQuery) *bun.SelectQuery {
		if f := pageRequest.GetFilter(); f != nil {
			q = q.Where(f.Schema, f.Args...)
		}
		return q
	}
	return Paginate(ctx, pageRequest,
		func(ctx context.Context, offset, limit int) ([]*T, error) {
			entities := make([]*T, 0)
			query, err := ApplySort(filter(r.db.NewSelect().Model(&entities)), r.table, pageRequest.GetSort())
			if err != nil {
				return nil, err
			}
			err = query.Offset(offset).Limit(limit).Scan(ctx)
			return entities, database.TranslateError(err)
		},
		func(ctx context.Context) (int, error) {
			n, err := filter(r.db.NewSelect().Model((*T)(nil))).Count(ctx)
			return n, database.TranslateError(err)
		},
	)
}

func (r *baseRepositoryImpl[T]) Save(ctx context.Context, entity ...*T) error {
	if len(entity) == 0 {
		return nil
	}
	entities := r.ValsToSlice(entity...)
	_, err := r.db.NewInsert().Model(&entities).Exec(ctx)
	return database.TranslateError(err)
}

func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error {
	return database.TranslateError(r.multipleUpsert(ctx, fields, duplicateKeys, entity...))
}

// Update writes every column of entity, located by its primary key.
func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T) error {
	res, err := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx)
	if err != nil {
		return database.TranslateError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, entity *T) error {
	_, err := r.db.NewDelete().Model(entity).WherePK().Exec(ctx)
	return database.TranslateError(err)
}

func (r *baseRepositoryImpl[T]) DeleteByID(ctx context.Context, id any) error {
	_, err := r.db.NewDelete().Model((*T)(nil)).Where("? = ?", r.pkName(), id).Exec(ctx)
	return database.TranslateError(err)
}

// DeleteAllInBatch removes every row with a single statement and returns the
// number of rows deleted.
func (r *baseRepositoryImpl[T]) DeleteAllInBatch(ctx context.Context) (int, error) {
	res, err := r.db.NewDelete().Model((*T)(nil)).Where("1 = 1").Exec(ctx)
	if err != nil {
		return 0, database.TranslateError(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *baseRepositoryImpl[T]) multipleUpsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}

	entities := r.ValsToSlice(entity...)
	features := r.db.Dialect().Features()

	if features.Has(feature.InsertOnConflict) {
		return r.upsertWithPostgresqlOrSQLite(ctx, fields, duplicateKeys, entities)
	} else if features.Has(feature.InsertOnDuplicateKey) {
		return r.upsertWithMySQL(ctx, fields, entities)
	} else {
		// Fallback: Separate insert/update logic
		return r.upsertFallback(ctx, entities)
	}
}

func (r *baseRepositoryImpl[T]) upsertWithMySQL(ctx context.Context, fields []string, entities []*T) error {
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf("%s = VALUES(%s)", field, field))
	}
	_, err := r.db.NewInsert().
		Model(&entities).
		On("DUPLICATE KEY UPDATE " + strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertWithPostgresqlOrSQLite(ctx context.Context, fields []string, duplicateKeys []string, entities []*T) error {
	if len(duplicateKeys) == 0 {
		duplicateKeys = []string{r.table.PKs[0].Name}
	}
	keyNames := strings.Join(duplicateKeys, ",")
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf("%s = EXCLUDED.%s", field, field))
	}
	_, err := r.db.NewInsert().
		Model(&entities).
		On("CONFLICT (" + keyNames + ") DO UPDATE").
		Set(strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertFallback(ctx context.Context, entities []*T) error {
	for _, entity := range entities {
		_, err := r.db.NewInsert().Model(entity).Exec(ctx)
		if err != nil {
			_, updateErr := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx)
			if updateErr != nil {
				return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %w", err, updateErr)
			}
		}
	}
	return nil
}
