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
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/tomoncle/datajpa/database"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

var (
	ErrCompositeKey = errors.New("composite primary keys are not supported")
	ErrNotManaged   = errors.New("entity is not managed by this persistence context")
	ErrNotEntity    = errors.New("entity must be a non-nil struct pointer")
)

type entityKey struct {
	typ reflect.Type
	id  interface{}
}

type entry struct {
	entity   interface{}
	table    *schema.Table
	snapshot []interface{}
	readOnly bool
}

// Context tracks the entities loaded or persisted through it. Every managed
// entity is unique per (type, primary key) and changes to it are written
// back by Flush.
//
// A Context is not safe for concurrent use.
type Context struct {
	db      bun.IDB
	logger  database.Logger
	entries map[entityKey]*entry
	order   []entityKey
}

// New returns an empty persistence context running its statements on db.
func New(db bun.IDB) *Context {
	return &Context{
		db:      db,
		logger:  database.GetLogger(),
		entries: make(map[entityKey]*entry),
	}
}

func (pc *Context) DB() bun.IDB { return pc.db }

func (pc *Context) SetLogger(logger database.Logger) {
	if logger != nil {
		pc.logger = logger
	}
}

// Transactional runs fn with a new context bound to a transaction. The
// context is flushed before commit; any error rolls the transaction back.
func Transactional(ctx context.Context, db bun.IDB, fn func(ctx context.Context, pc *Context) error) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		pc := New(tx)
		if err := fn(ctx, pc); err != nil {
			return err
		}
		_, err := pc.Flush(ctx)
		return err
	})
}

// Persist inserts entity right away and starts managing it. Persisting an
// already managed instance does nothing.
func (pc *Context) Persist(ctx context.Context, entity interface{}) error {
	table, err := pc.table(entity)
	if err != nil {
		return err
	}
	if pc.Contains(entity) {
		return nil
	}
	if _, err := pc.db.NewInsert().Model(entity).Exec(ctx); err != nil {
		return database.TranslateError(err)
	}
	pc.manage(entity, table, false)
	return nil
}

// Remove deletes a managed entity and detaches it.
func (pc *Context) Remove(ctx context.Context, entity interface{}) error {
	if _, err := pc.table(entity); err != nil {
		return err
	}
	if !pc.Contains(entity) {
		return ErrNotManaged
	}
	if _, err := pc.db.NewDelete().Model(entity).WherePK().Exec(ctx); err != nil {
		return database.TranslateError(err)
	}
	pc.Detach(entity)
	return nil
}

// Flush writes every changed, writable entity with a full-row UPDATE and
// returns how many entities were written.
func (pc *Context) Flush(ctx context.Context) (int, error) {
	written := 0
	for _, key := range pc.order {
		e := pc.entries[key]
		if e.readOnly {
			continue
		}
		dirty := pc.dirtyColumns(e)
		if len(dirty) == 0 {
			continue
		}
		start := time.Now()
		if _, err := pc.db.NewUpdate().Model(e.entity).WherePK().Exec(ctx); err != nil {
			return written, fmt.Errorf("flush %s: %w", e.table.Name, database.TranslateError(err))
		}
		pc.logger.Debug("Flushed dirty entity", "table", e.table.Name, "id", key.id, "columns", dirty, "duration", time.Since(start))
		e.snapshot = takeSnapshot(e.table, e.entity)
		written++
	}
	return written, nil
}

// ExecuteUpdate flushes pending changes and runs a bulk UPDATE that bypasses
// the managed entities. With clear set the context is emptied afterwards so
// later reads see the new rows instead of stale instances.
func (pc *Context) ExecuteUpdate(ctx context.Context, build func(q *bun.UpdateQuery) *bun.UpdateQuery, clear bool) (int, error) {
	if _, err := pc.Flush(ctx); err != nil {
		return 0, err
	}
	res, err := build(pc.db.NewUpdate()).Exec(ctx)
	if err != nil {
		return 0, database.TranslateError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if clear {
		pc.Clear()
	}
	return int(rows), nil
}

// Clear detaches every managed entity. Pending changes are discarded.
func (pc *Context) Clear() {
	pc.entries = make(map[entityKey]*entry)
	pc.order = nil
}

// Detach stops managing entity; later changes to it are not flushed.
func (pc *Context) Detach(entity interface{}) {
	key, ok := pc.keyOf(entity)
	if !ok {
		return
	}
	if e, found := pc.entries[key]; found && e.entity == entity {
		delete(pc.entries, key)
		for i, k := range pc.order {
			if k == key {
				pc.order = append(pc.order[:i], pc.order[i+1:]...)
				break
			}
		}
	}
}

// Contains reports whether this exact instance is managed.
func (pc *Context) Contains(entity interface{}) bool {
	key, ok := pc.keyOf(entity)
	if !ok {
		return false
	}
	e, found := pc.entries[key]
	return found && e.entity == entity
}

// IsReadOnly reports whether entity was loaded without a snapshot.
func (pc *Context) IsReadOnly(entity interface{}) bool {
	key, ok := pc.keyOf(entity)
	if !ok {
		return false
	}
	e, found := pc.entries[key]
	return found && e.entity == entity && e.readOnly
}

// Size returns the number of managed entities.
func (pc *Context) Size() int { return len(pc.entries) }

func (pc *Context) table(entity interface{}) (*schema.Table, error) {
	v := reflect.ValueOf(entity)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, ErrNotEntity
	}
	table := pc.db.Dialect().Tables().Get(v.Type().Elem())
	if len(table.PKs) != 1 {
		return nil, fmt.Errorf("%s: %w", table.Name, ErrCompositeKey)
	}
	return table, nil
}

func (pc *Context) keyOf(entity interface{}) (entityKey, bool) {
	table, err := pc.table(entity)
	if err != nil {
		return entityKey{}, false
	}
	return entityKey{typ: table.Type, id: primaryKey(table, entity)}, true
}

// manage registers entity, or returns the instance already managed under the
// same key.
func (pc *Context) manage(entity interface{}, table *schema.Table, readOnly bool) interface{} {
	key := entityKey{typ: table.Type, id: primaryKey(table, entity)}
	if e, ok := pc.entries[key]; ok {
		if e.entity != entity {
			copyLoadedRelations(e.entity, entity, table)
			pc.mergeRelations(e.entity, table)
		}
		return e.entity
	}
	e := &entry{entity: entity, table: table, readOnly: readOnly}
	if !readOnly {
		e.snapshot = takeSnapshot(table, entity)
	}
	pc.entries[key] = e
	pc.order = append(pc.order, key)
	pc.mergeRelations(entity, table)
	return entity
}

// mergeRelations manages to-one associations loaded together with entity and
// swaps in instances this context already manages.
func (pc *Context) mergeRelations(entity interface{}, table *schema.Table) {
	strct := reflect.ValueOf(entity).Elem()
	for _, rel := range table.Relations {
		if rel.Type != schema.BelongsToRelation && rel.Type != schema.HasOneRelation {
			continue
		}
		fv := strct.FieldByIndex(rel.Field.Index)
		if fv.Kind() != reflect.Ptr || fv.IsNil() {
			continue
		}
		related := fv.Interface()
		relTable, err := pc.table(related)
		if err != nil || isZeroKey(primaryKey(relTable, related)) {
			continue
		}
		managed := pc.manage(related, relTable, false)
		if managed != related {
			fv.Set(reflect.ValueOf(managed))
		}
	}
}

// copyLoadedRelations fills to-one associations that are unset on managed
// with the ones loaded on row. Associations already set on managed win.
func copyLoadedRelations(managed, row interface{}, table *schema.Table) {
	dst := reflect.ValueOf(managed).Elem()
	src := reflect.ValueOf(row).Elem()
	for _, rel := range table.Relations {
		if rel.Type != schema.BelongsToRelation && rel.Type != schema.HasOneRelation {
			continue
		}
		loaded := src.FieldByIndex(rel.Field.Index)
		current := dst.FieldByIndex(rel.Field.Index)
		if loaded.Kind() != reflect.Ptr || loaded.IsNil() || !current.IsNil() {
			continue
		}
		current.Set(loaded)
	}
}

func (pc *Context) dirtyColumns(e *entry) []string {
	var dirty []string
	strct := reflect.ValueOf(e.entity).Elem()
	for i, f := range e.table.DataFields {
		if !equalValue(e.snapshot[i], copyValue(strct.FieldByIndex(f.Index))) {
			dirty = append(dirty, f.Name)
		}
	}
	return dirty
}
