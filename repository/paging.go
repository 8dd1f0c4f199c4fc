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
	"strings"

	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// ContentFunc loads one window of rows.
type ContentFunc[T any] func(ctx context.Context, offset, limit int) ([]*T, error)

// CountFunc counts all rows matching the content query.
type CountFunc func(ctx context.Context) (int, error)

// Paginate loads the requested page and works out the total element count.
// The count query only runs when the content cannot tell the total: on the
// first page when it came back full, and on later pages when it came back
// full or empty.
func Paginate[T any](ctx context.Context, pageable *types.PageRequest, content ContentFunc[T], count CountFunc) (*types.Page[T], error) {
	offset, size := pageable.GetOffset(), pageable.GetPageSize()
	rows, err := content(ctx, offset, size)
	if err != nil {
		return nil, err
	}

	var total int
	switch {
	case offset == 0 && len(rows) < size:
		total = len(rows)
	case offset > 0 && len(rows) > 0 && len(rows) < size:
		total = offset + len(rows)
	default:
		if total, err = count(ctx); err != nil {
			return nil, err
		}
	}
	return types.NewPage(rows, pageable, total), nil
}

// SliceOf loads one row more than the page size to learn whether another
// slice follows. It never counts.
func SliceOf[T any](ctx context.Context, pageable *types.PageRequest, content ContentFunc[T]) (*types.Slice[T], error) {
	size := pageable.GetPageSize()
	rows, err := content(ctx, pageable.GetOffset(), size+1)
	if err != nil {
		return nil, err
	}
	hasNext := len(rows) > size
	if hasNext {
		rows = rows[:size]
	}
	return &types.Slice[T]{
		Content: rows,
		Number:  pageable.GetPage(),
		Size:    size,
		HasNext: hasNext,
	}, nil
}

// ApplySort adds ORDER BY terms for sort. Properties may be column names or
// Go field names of table; anything else is ErrInvalidSortProperty, so user
// input never reaches the SQL text.
func ApplySort(q *bun.SelectQuery, table *schema.Table, sort types.Sort) (*bun.SelectQuery, error) {
	for _, order := range sort.Orders {
		column, ok := resolveColumn(table, order.Property)
		if !ok {
			return nil, fmt.Errorf("%w: %q on %s", ErrInvalidSortProperty, order.Property, table.Name)
		}
		if !order.Direction.IsValid() {
			return nil, fmt.Errorf("%w: direction of %q", ErrInvalidSortProperty, order.Property)
		}
		q = q.OrderExpr("?TableAlias.? "+order.Direction.Name(), bun.Ident(column))
	}
	return q, nil
}

func resolveColumn(table *schema.Table, property string) (string, bool) {
	if table.HasField(property) {
		return property, true
	}
	for _, f := range table.Fields {
		if strings.EqualFold(f.GoName, property) {
			return f.Name, true
		}
	}
	return "", false
}
