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
	"reflect"
	"time"

	"github.com/uptrace/bun/schema"
)

func primaryKey(table *schema.Table, entity interface{}) interface{} {
	v := reflect.ValueOf(entity).Elem().FieldByIndex(table.PKs[0].Index)
	return normalizeID(v.Interface())
}

// normalizeID lets Find(ctx, pc, 1) and an int64 primary key share a key.
func normalizeID(id interface{}) interface{} {
	v := reflect.ValueOf(id)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		return normalizeID(v.Elem().Interface())
	default:
		return id
	}
}

func isZeroKey(id interface{}) bool {
	return id == nil || reflect.ValueOf(id).IsZero()
}

func takeSnapshot(table *schema.Table, entity interface{}) []interface{} {
	strct := reflect.ValueOf(entity).Elem()
	snapshot := make([]interface{}, len(table.DataFields))
	for i, f := range table.DataFields {
		snapshot[i] = copyValue(strct.FieldByIndex(f.Index))
	}
	return snapshot
}

// copyValue detaches a column value from the entity: pointers are replaced
// by their pointee and slices are cloned.
func copyValue(v reflect.Value) interface{} {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		return copyValue(v.Elem())
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		cp := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(cp, v)
		return cp.Interface()
	default:
		return v.Interface()
	}
}

func equalValue(a, b interface{}) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}
