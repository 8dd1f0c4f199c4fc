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

package persistence

import (
	"context"
	"reflect"

	"github.com/tomoncle/datajpa/database"
	"github.com/uptrace/bun"
)

// Find returns the managed instance with the given primary key, loading it
// when the context does not hold it yet. A missing row is
// database.ErrNotFound.
func Find[T any](ctx context.Context, pc *Context, id interface{}) (*T, error) {
	return find[T](ctx, pc, id, false)
}

// FindReadOnly loads like Find but keeps no snapshot, so changes to the
// returned entity are never flushed. An instance that is already managed is
// returned as is.
func FindReadOnly[T any](ctx context.Context, pc *Context, id interface{}) (*T, error) {
	return find[T](ctx, pc, id, true)
}

func find[T any](ctx context.Context, pc *Context, id interface{}, readOnly bool) (*T, error) {
	entity := new(T)
	table, err := pc.table(entity)
	if err != nil {
		return nil, err
	}
	key := entityKey{typ: table.Type, id: normalizeID(id)}
	if e, ok := pc.entries[key]; ok {
		return e.entity.(*T), nil
	}

	err = pc.db.NewSelect().
		Model(entity).
		Where("?TableAlias.? = ?", bun.Ident(table.PKs[0].Name), id).
		Scan(ctx)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return pc.manage(entity, table, readOnly).(*T), nil
}

// List flushes pending changes, runs the select built by build and merges the
// rows into the context. Rows whose key is already managed come back as the
// managed instance.
func List[T any](ctx context.Context, pc *Context, build func(q *bun.SelectQuery) *bun.SelectQuery) ([]*T, error) {
	return list[T](ctx, pc, build, false)
}

// ListReadOnly is List for read-only entities.
func ListReadOnly[T any](ctx context.Context, pc *Context, build func(q *bun.SelectQuery) *bun.SelectQuery) ([]*T, error) {
	return list[T](ctx, pc, build, true)
}

func list[T any](ctx context.Context, pc *Context, build func(q *bun.SelectQuery) *bun.SelectQuery, readOnly bool) ([]*T, error) {
	table, err := pc.table(new(T))
	if err != nil {
		return nil, err
	}
	if _, err := pc.Flush(ctx); err != nil {
		return nil, err
	}

	rows := make([]*T, 0)
	q := pc.db.NewSelect().Model(&rows)
	if build != nil {
		q = build(q)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, database.TranslateError(err)
	}
	for i, row := range rows {
		rows[i] = pc.manage(row, table, readOnly).(*T)
	}
	return rows, nil
}

// Count flushes pending changes and counts the rows of T matching build.
func Count[T any](ctx context.Context, pc *Context, build func(q *bun.SelectQuery) *bun.SelectQuery) (int, error) {
	if _, err := pc.Flush(ctx); err != nil {
		return 0, err
	}
	q := pc.db.NewSelect().Model((*T)(nil))
	if build != nil {
		q = build(q)
	}
	n, err := q.Count(ctx)
	return n, database.TranslateError(err)
}

// Managed returns every managed entity of type T in the order it joined the
// context.
func Managed[T any](pc *Context) []*T {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	var out []*T
	for _, key := range pc.order {
		if key.typ == typ {
			out = append(out, pc.entries[key].entity.(*T))
		}
	}
	return out
}
