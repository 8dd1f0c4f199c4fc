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

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tomoncle/datajpa"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/types"
	"github.com/tomoncle/datajpa/utils"
)

var logger = utils.NewLogger("CLI")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree with its own viper instance, so every
// invocation reads flags, environment and config file afresh.
func newRootCmd() *cobra.Command {
	v := viper.New()
	setDefaults(v)
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "datajpa",
		Short:         "Member and team data access on bun",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := readConfig(v, cfgFile); err != nil {
				return err
			}
			utils.ConfigureLogLevel(v.GetString("log_level"))
			cfg, err := loadDatabaseConfig(v)
			if err != nil {
				return err
			}
			if _, err := database.InitDB(cmd.Context(), cfg); err != nil {
				return err
			}
			logger.WithField("type", cfg.ConnectionConfig.Type).Debug("database ready")
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return database.CloseDB()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./datajpa.yaml)")
	cmd.PersistentFlags().String("db-type", "sqlite", "Database type (sqlite, mysql, postgres)")
	cmd.PersistentFlags().String("db-dsn", "", "Database connection string (DSN)")
	cmd.PersistentFlags().String("log-level", "info", "Log level")
	_ = v.BindPFlag("connection.type", cmd.PersistentFlags().Lookup("db-type"))
	_ = v.BindPFlag("connection.dsn", cmd.PersistentFlags().Lookup("db-dsn"))
	_ = v.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newMembersCmd(),
		newBulkAgePlusCmd(),
		newHealthCmd(),
	)
	return cmd
}

func setDefaults(v *viper.Viper) {
	def := database.DefaultConfig()
	v.SetDefault("connection.type", def.ConnectionConfig.Type)
	v.SetDefault("connection.dsn", def.ConnectionConfig.DSN)
	v.SetDefault("connection.dbname", def.ConnectionConfig.DBName)
	v.SetDefault("connection.enable_query_log", def.ConnectionConfig.EnableQueryLog)
	v.SetDefault("connection.slow_query_time", def.ConnectionConfig.SlowQueryTime)
	v.SetDefault("migrate.enable_migrate_on_startup", def.DataMigrateConfig.EnableMigrateOnStartup)
	v.SetDefault("migrate.enable_foreign_key", def.DataMigrateConfig.EnableForeignKey)
	v.SetDefault("init.auto_init_on_migration", def.DataInitConfig.AutoInitOnMigration)
	v.SetDefault("init.filepath", def.DataInitConfig.Filepath)
	v.SetDefault("init.environment", def.DataInitConfig.Environment)
	v.SetDefault("log_level", "info")
}

func readConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("datajpa")
	}

	v.SetEnvPrefix("DATAJPA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// loadDatabaseConfig decodes the connection, migrate and init sections on
// top of database.DefaultConfig.
func loadDatabaseConfig(v *viper.Viper) (*database.Config, error) {
	cfg := database.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables, foreign keys and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.RunMigrations(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Execute the SQL seed files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.InitData(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seed data loaded")
			return nil
		},
	}
}

func newMembersCmd() *cobra.Command {
	var (
		age       int
		page      int
		size      int
		sortOrder string
	)
	cmd := &cobra.Command{
		Use:   "members",
		Short: "List one page of members of an age",
		RunE: func(cmd *cobra.Command, args []string) error {
			sort, err := types.ParseSort(sortOrder)
			if err != nil {
				return err
			}
			result, err := datajpa.NewMemberService().MemberPage(cmd.Context(), age, types.NewPageRequest(page, size, sort))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "page %d/%d, %d members in total\n", result.Number+1, result.TotalPages(), result.TotalElements)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tTEAM")
			for _, m := range result.Content {
				fmt.Fprintf(w, "%d\t%s\t%s\n", m.ID, m.Username, m.TeamName)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&age, "age", 10, "Member age")
	cmd.Flags().IntVar(&page, "page", 0, "Zero-based page number")
	cmd.Flags().IntVar(&size, "size", types.DefaultPageSize, "Page size")
	cmd.Flags().StringVar(&sortOrder, "sort", "username,desc", `Sort order, e.g. "username,desc;id"`)
	return cmd
}

func newBulkAgePlusCmd() *cobra.Command {
	var age int
	cmd := &cobra.Command{
		Use:   "bulk-age-plus",
		Short: "Add one year to every member of at least the given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := datajpa.NewMemberService().CelebrateBirthdays(cmd.Context(), age)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d members updated\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&age, "age", 20, "Minimum age")
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the database connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			status := database.GetHealthStatus(cmd.Context())
			stats := database.GetDatabaseStats()
			fmt.Fprintf(cmd.OutOrStdout(), "healthy=%t connected=%t response=%s open=%d idle=%d\n",
				status.Healthy, status.Connected, status.ResponseTime, stats.OpenConns, stats.Idle)
			if !status.Healthy {
				return fmt.Errorf("database unhealthy: %s", status.LastError)
			}
			return nil
		},
	}
}
