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
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

// MigrationManager coordinates schema migrations and data initialization.
type MigrationManager struct {
	db          *bun.DB
	logger      Logger
	foreignKeys bool
	seedEnabled bool
	seedPath    string
	environment string
}

// Migration represents an applied migration record stored in the database.
type Migration struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

// IndexDefinition is a secondary index created by the index migration.
type IndexDefinition struct {
	Name    string
	Model   interface{}
	Columns []string
	Unique  bool
}

var (
	indexMu sync.RWMutex
	indexes []IndexDefinition
)

// RegisterIndex adds an index created for its model's table.
func RegisterIndex(idx IndexDefinition) {
	indexMu.Lock()
	defer indexMu.Unlock()
	for _, existing := range indexes {
		if existing.Name == idx.Name {
			return
		}
	}
	indexes = append(indexes, idx)
}

func registeredIndexes() []IndexDefinition {
	indexMu.RLock()
	defer indexMu.RUnlock()
	out := make([]IndexDefinition, len(indexes))
	copy(out, indexes)
	return out
}

// NewMigrationManager constructs a MigrationManager using the provided Bun
// database and logger. Seeding is off and the environment is "dev".
func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &MigrationManager{
		db:          db,
		logger:      logger,
		seedPath:    "configs/sql",
		environment: "dev",
	}
}

// EnableForeignKeys makes table creation add the registered foreign keys.
func (mm *MigrationManager) EnableForeignKeys(enabled bool) {
	mm.foreignKeys = enabled
}

// SetSeeding configures the seed migration and the SQL files it loads.
func (mm *MigrationManager) SetSeeding(enabled bool, path string, environment string) {
	mm.seedEnabled = enabled
	if path != "" {
		mm.seedPath = path
	}
	if environment != "" {
		mm.environment = environment
	}
}

// RunMigrations creates the migration tracking table if needed and executes all
// pending migrations in ascending version order.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return ErrNotInitialized
	}

	// silent migration
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations := mm.getAllMigrations()
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for _, migration := range migrations {
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
	}

	mm.logger.Info("Database migrations completed!")
	return nil
}

func (mm *MigrationManager) createMigrationTable(ctx context.Context) error {
	_, err := mm.db.NewCreateTable().
		Model((*Migration)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (mm *MigrationManager) getAllMigrations() []MigrationItem {
	migrations := []MigrationItem{
		{
			Version:     "001",
			Name:        "create_base_tables",
			Description: "Create base table structure",
			Up:          mm.createBaseTables,
		},
		{
			Version:     "002",
			Name:        "create_indexes",
			Description: "Create secondary indexes",
			Up:          mm.createIndexes,
		},
	}
	if mm.seedEnabled {
		migrations = append(migrations, MigrationItem{
			Version:     "003",
			Name:        "seed_initial_data",
			Description: "Seed initial data",
			Up:          mm.seedInitialData,
		})
	}
	return migrations
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", migration.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		mm.logger.Debug("Migration already applied", "version", migration.Version)
		return nil
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := migration.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&Migration{
				Version:     migration.Version,
				Name:        migration.Name,
				AppliedAt:   time.Now(),
				Description: migration.Description,
			}).
			Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
	return nil
}

func (mm *MigrationManager) createBaseTables(ctx context.Context, db bun.IDB) error {
	if mm.foreignKeys {
		if errs := RegisteredForeignKeys().ValidateConstraints(); len(errs) > 0 {
			for _, err := range errs {
				mm.logger.Error("Foreign key constraint validation failed", "error", err)
			}
			return fmt.Errorf("foreign key constraint validation failed: %w", errors.Join(errs...))
		}
	}

	for _, model := range RegisteredModelInstances() {
		q := db.NewCreateTable().
			Model(model).
			IfNotExists()
		if mm.foreignKeys {
			table := mm.db.Table(modelType(model)).Name
			for _, fk := range RegisteredForeignKeys().GetConstraintsByTable(table) {
				clause, args := fk.Clause()
				q = q.ForeignKey(clause, args...)
				mm.logger.Debug("Adding foreign key", "constraint", fk.GenerateConstraintName())
			}
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %T: %w", model, err)
		}
	}
	return nil
}

func (mm *MigrationManager) createIndexes(ctx context.Context, db bun.IDB) error {
	registered := make(map[string]struct{})
	for _, model := range RegisteredModelInstances() {
		registered[mm.db.Table(modelType(model)).Name] = struct{}{}
	}

	for _, idx := range registeredIndexes() {
		table := mm.db.Table(modelType(idx.Model)).Name
		if _, ok := registered[table]; !ok {
			mm.logger.Debug("Skipping index of unregistered table", "index", idx.Name, "table", table)
			continue
		}
		q := db.NewCreateIndex().
			Model(idx.Model).
			Index(idx.Name).
			Column(idx.Columns...).
			IfNotExists()
		if idx.Unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.Name, err)
		}
	}
	return nil
}

// InitData runs the SQL seed files regardless of the seeding switch.
func (mm *MigrationManager) InitData(ctx context.Context) error {
	if mm.db == nil {
		return ErrNotInitialized
	}
	return mm.seedInitialData(ctx, mm.db)
}

func (mm *MigrationManager) seedInitialData(ctx context.Context, db bun.IDB) error {
	sqlManager := NewSQLInitManager(db, mm.environment)
	sqlManager.SetSQLRootPath(mm.seedPath)
	sqlManager.SetLogger(mm.logger)

	mm.logger.Info("Starting data initialization using SQL files", "environment", mm.environment)
	if err := sqlManager.ExecuteInitialization(ctx); err != nil {
		return fmt.Errorf("SQL file initialization failed: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}
