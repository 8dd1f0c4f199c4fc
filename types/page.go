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

package types

import (
	"fmt"
	"math"
	"strings"
)

// DefaultPageSize is used when a page request carries a size below 1.
const DefaultPageSize = 10

// QueryFilter describes a WHERE clause schema and its argument values.
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

// NewQueryFilter creates a new query filter with schema and args.
func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

// Order is a single sort property and its direction.
type Order struct {
	Property  string
	Direction Direction
}

func (o Order) String() string { return o.Property + " " + o.Direction.Name() }

// Sort is an ordered list of sort properties.
type Sort struct {
	Orders []Order
}

// By builds a sort applying the same direction to every property.
func By(dir Direction, properties ...string) Sort {
	orders := make([]Order, 0, len(properties))
	for _, p := range properties {
		orders = append(orders, Order{Property: p, Direction: dir})
	}
	return Sort{Orders: orders}
}

// Unsorted returns a sort without any order.
func Unsorted() Sort { return Sort{} }

// And appends the orders of other after the orders of s.
func (s Sort) And(other Sort) Sort {
	orders := make([]Order, 0, len(s.Orders)+len(other.Orders))
	orders = append(orders, s.Orders...)
	orders = append(orders, other.Orders...)
	return Sort{Orders: orders}
}

func (s Sort) IsSorted() bool { return len(s.Orders) > 0 }

func (s Sort) String() string {
	if !s.IsSorted() {
		return "UNSORTED"
	}
	parts := make([]string, len(s.Orders))
	for i, o := range s.Orders {
		parts[i] = o.String()
	}
	return strings.Join(parts, ", ")
}

// ParseSort reads "property[,direction]" items separated by ";", e.g.
// "username,desc;id".
func ParseSort(expr string) (Sort, error) {
	var sort Sort
	for _, item := range strings.Split(expr, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ",", 2)
		order := Order{Property: strings.TrimSpace(parts[0]), Direction: ASC}
		if order.Property == "" {
			return Sort{}, fmt.Errorf("empty sort property in %q", expr)
		}
		if len(parts) == 2 {
			dir, err := ParseDirection(parts[1])
			if err != nil {
				return Sort{}, err
			}
			order.Direction = dir
		}
		sort.Orders = append(sort.Orders, order)
	}
	return sort, nil
}

// PageRequest describes a zero-based page, its size, ordering and an
// optional filter.
type PageRequest struct {
	page   int
	size   int
	sort   Sort
	filter *QueryFilter
}

// NewPageRequest constructs a PageRequest. Negative pages are clamped to the
// first page and sizes below 1 fall back to DefaultPageSize. Pages whose
// offset would overflow an int are clamped to the last representable one.
func NewPageRequest(page int, size int, sort Sort) *PageRequest {
	if size < 1 {
		size = DefaultPageSize
	}
	return &PageRequest{page: clampPage(page, size), size: size, sort: sort}
}

// maxPage keeps page*size+size within an int, so a slice query fetching
// one extra row cannot overflow either.
func maxPage(size int) int {
	return (math.MaxInt - size) / size
}

func clampPage(page, size int) int {
	if page < 0 {
		return 0
	}
	return min(page, maxPage(size))
}

// NewDefaultPageRequest constructs an unsorted PageRequest.
func NewDefaultPageRequest(page int, size int) *PageRequest {
	return NewPageRequest(page, size, Unsorted())
}

// WithFilter returns a copy of the request carrying filter.
func (p *PageRequest) WithFilter(filter *QueryFilter) *PageRequest {
	cp := *p
	cp.filter = filter
	return &cp
}

func (p *PageRequest) GetPage() int { return p.page }

func (p *PageRequest) GetPageSize() int { return p.size }

func (p *PageRequest) GetOffset() int { return p.page * p.size }

func (p *PageRequest) GetSort() Sort { return p.sort }

func (p *PageRequest) GetFilter() *QueryFilter { return p.filter }

func (p *PageRequest) Next() *PageRequest {
	cp := *p
	cp.page = clampPage(cp.page+1, cp.size)
	return &cp
}

func (p *PageRequest) Previous() *PageRequest {
	cp := *p
	if cp.page > 0 {
		cp.page--
	}
	return &cp
}

func (p *PageRequest) First() *PageRequest {
	cp := *p
	cp.page = 0
	return &cp
}

func (p *PageRequest) String() string {
	return fmt.Sprintf("Page request [number: %d, size %d, sort: %s]", p.page, p.size, p.sort)
}

// Page is a page of content together with the total element count.
type Page[T any] struct {
	Content       []*T
	Number        int
	Size          int
	TotalElements int
	Sort          Sort
}

// NewPage builds a page for the given request.
func NewPage[T any](content []*T, pageable *PageRequest, total int) *Page[T] {
	if content == nil {
		content = make([]*T, 0)
	}
	return &Page[T]{
		Content:       content,
		Number:        pageable.GetPage(),
		Size:          pageable.GetPageSize(),
		TotalElements: total,
		Sort:          pageable.GetSort(),
	}
}

func (p *Page[T]) TotalPages() int {
	if p.Size == 0 {
		return 0
	}
	return (p.TotalElements + p.Size - 1) / p.Size
}

func (p *Page[T]) NumberOfElements() int { return len(p.Content) }

func (p *Page[T]) HasContent() bool { return len(p.Content) > 0 }

func (p *Page[T]) HasNext() bool { return p.Number+1 < p.TotalPages() }

func (p *Page[T]) HasPrevious() bool { return p.Number > 0 }

func (p *Page[T]) IsFirst() bool { return !p.HasPrevious() }

func (p *Page[T]) IsLast() bool { return !p.HasNext() }

// NextPageable returns the request for the following page, or nil on the
// last page.
func (p *Page[T]) NextPageable() *PageRequest {
	if !p.HasNext() {
		return nil
	}
	return NewPageRequest(p.Number+1, p.Size, p.Sort)
}

func (p *Page[T]) String() string {
	return fmt.Sprintf("Page %d of %d containing %d instances", p.Number+1, p.TotalPages(), len(p.Content))
}

// MapPage converts the content of a page and keeps its paging metadata.
func MapPage[T any, R any](page *Page[T], fn func(*T) *R) *Page[R] {
	content := make([]*R, len(page.Content))
	for i, item := range page.Content {
		content[i] = fn(item)
	}
	return &Page[R]{
		Content:       content,
		Number:        page.Number,
		Size:          page.Size,
		TotalElements: page.TotalElements,
		Sort:          page.Sort,
	}
}

// Slice is a page without a total count; it only knows whether more
// content follows.
type Slice[T any] struct {
	Content []*T
	Number  int
	Size    int
	HasNext bool
}

func (s *Slice[T]) NumberOfElements() int { return len(s.Content) }

func (s *Slice[T]) IsLast() bool { return !s.HasNext }
