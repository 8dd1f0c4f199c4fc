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

package database

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/uptrace/bun"
)

var validReferentialActions = []string{"CASCADE", "RESTRICT", "SET NULL", "SET DEFAULT", "NO ACTION"}

// ForeignKeyConstraint describes a foreign key relationship between tables.
type ForeignKeyConstraint struct {
	Table           string
	Column          string
	ReferenceTable  string
	ReferenceColumn string
	OnDelete        string // CASCADE, RESTRICT, SET NULL, NO ACTION
	OnUpdate        string
	ConstraintName  string
}

// GenerateConstraintName returns the explicit name or a derived name.
func (fk *ForeignKeyConstraint) GenerateConstraintName() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// Clause renders the constraint for a CREATE TABLE statement, which is the
// only place SQLite accepts foreign keys. Identifiers are quoted by the
// dialect when the query is formatted.
func (fk *ForeignKeyConstraint) Clause() (string, []interface{}) {
	clause := "(?) REFERENCES ? (?)"
	if fk.OnDelete != "" {
		clause += " ON DELETE " + strings.ToUpper(fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		clause += " ON UPDATE " + strings.ToUpper(fk.OnUpdate)
	}
	return clause, []interface{}{bun.Ident(fk.Column), bun.Ident(fk.ReferenceTable), bun.Ident(fk.ReferenceColumn)}
}

// Validate checks the constraint for missing names and unknown actions.
func (fk *ForeignKeyConstraint) Validate() error {
	switch {
	case fk.Table == "":
		return fmt.Errorf("table name cannot be empty")
	case fk.Column == "":
		return fmt.Errorf("column name cannot be empty: %s", fk.Table)
	case fk.ReferenceTable == "":
		return fmt.Errorf("reference table name cannot be empty: %s.%s", fk.Table, fk.Column)
	case fk.ReferenceColumn == "":
		return fmt.Errorf("reference column name cannot be empty: %s.%s -> %s", fk.Table, fk.Column, fk.ReferenceTable)
	}
	for _, action := range []string{fk.OnDelete, fk.OnUpdate} {
		if action != "" && !slices.Contains(validReferentialActions, strings.ToUpper(action)) {
			return fmt.Errorf("invalid referential action: %s, constraint: %s", action, fk.GenerateConstraintName())
		}
	}
	return nil
}

// ForeignKeyManager holds code-defined foreign key constraints.
type ForeignKeyManager struct {
	mu          sync.RWMutex
	constraints []ForeignKeyConstraint
}

var defaultForeignKeys = &ForeignKeyManager{}

// RegisterForeignKey adds a constraint applied by the table migration when
// foreign keys are enabled.
func RegisterForeignKey(fk ForeignKeyConstraint) {
	defaultForeignKeys.Add(fk)
}

// RegisteredForeignKeys returns the default foreign key manager.
func RegisteredForeignKeys() *ForeignKeyManager {
	return defaultForeignKeys
}

func (fkm *ForeignKeyManager) Add(fk ForeignKeyConstraint) {
	fkm.mu.Lock()
	defer fkm.mu.Unlock()
	for _, c := range fkm.constraints {
		if c.GenerateConstraintName() == fk.GenerateConstraintName() {
			return
		}
	}
	fkm.constraints = append(fkm.constraints, fk)
}

// GetConstraintsByTable returns the constraints declared on a table.
func (fkm *ForeignKeyManager) GetConstraintsByTable(tableName string) []ForeignKeyConstraint {
	fkm.mu.RLock()
	defer fkm.mu.RUnlock()
	var result []ForeignKeyConstraint
	for _, constraint := range fkm.constraints {
		if strings.EqualFold(constraint.Table, tableName) {
			result = append(result, constraint)
		}
	}
	return result
}

func (fkm *ForeignKeyManager) ListAllConstraints() []ForeignKeyConstraint {
	fkm.mu.RLock()
	defer fkm.mu.RUnlock()
	return slices.Clone(fkm.constraints)
}

// ValidateConstraints returns one error per invalid constraint.
func (fkm *ForeignKeyManager) ValidateConstraints() []error {
	var errs []error
	for _, constraint := range fkm.ListAllConstraints() {
		if err := constraint.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
