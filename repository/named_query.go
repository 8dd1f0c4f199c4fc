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
	"fmt"
	"sync"
)

const MemberFindByUsername = "Member.findByUsername"

var (
	namedQueriesMu sync.RWMutex
	namedQueries   = map[string]string{
		MemberFindByUsername: "?TableAlias.username = ?",
	}
)

// RegisterNamedQuery stores a WHERE fragment under name, replacing any
// fragment registered before.
func RegisterNamedQuery(name string, where string) {
	namedQueriesMu.Lock()
	defer namedQueriesMu.Unlock()
	namedQueries[name] = where
}

// NamedQuery returns the WHERE fragment registered under name.
func NamedQuery(name string) (string, error) {
	namedQueriesMu.RLock()
	defer namedQueriesMu.RUnlock()
	where, ok := namedQueries[name]
	if !ok {
		return "", fmt.Errorf("named query %q is not registered", name)
	}
	return where, nil
}
