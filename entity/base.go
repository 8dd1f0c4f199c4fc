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

package entity

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// BaseEntity carries the audit columns shared by every table.
type BaseEntity struct {
	CreatedDate      time.Time `bun:"created_date,nullzero,notnull,default:current_timestamp" json:"created_date"`
	LastModifiedDate time.Time `bun:"last_modified_date,nullzero,notnull,default:current_timestamp" json:"last_modified_date"`
}

// BeforeAppendModel stamps the audit columns. Inserts set both dates, updates
// refresh LastModifiedDate only.
func (b *BaseEntity) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.CreatedDate.IsZero() {
			b.CreatedDate = now
		}
		b.LastModifiedDate = now
	case *bun.UpdateQuery:
		b.LastModifiedDate = now
	}
	return nil
}
