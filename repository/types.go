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

	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

var ErrInvalidSortProperty = errors.New("invalid sort property")

// CrudRepository defines basic CRUD operations for a generic entity type.
type CrudRepository[T any] interface {
	Save(ctx context.Context, entity ...*T) error

	Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error

	Update(ctx context.Context, entity *T) error

	FindByID(ctx context.Context, id any) (*T, error)

	ExistsByID(ctx context.Context, id any) (bool, error)

	FindAll(ctx context.Context) ([]*T, error)

	FindAllSorted(ctx context.Context, sort types.Sort) ([]*T, error)

	FindAllByIDs(ctx context.Context, ids ...any) ([]*T, error)

	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	Query(ctx context.Context, query string, args ...interface{}) ([]*T, error)

	Count(ctx context.Context) (int, error)

	Delete(ctx context.Context, entity *T) error

	DeleteByID(ctx context.Context, id any) error

	DeleteAllInBatch(ctx context.Context) (int, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	FindPage(ctx context.Context, page *types.PageRequest) (*types.Page[T], error)
}

// Repository combines CRUD and pagination and exposes Bun query builders for
// advanced use cases. WithTx returns a copy running on a transaction.
type Repository[T any] interface {
	CrudRepository[T]
	PageQueryRepository[T]
	WithTx(db bun.IDB) Repository[T]
	DB() bun.IDB
	Table() *schema.Table
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}
