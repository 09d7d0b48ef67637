package migrate

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/mahamart/commerce-backend/internal/config"
	"github.com/mahamart/commerce-backend/internal/database"
	"github.com/mahamart/commerce-backend/internal/tools/common"
	"github.com/mahamart/commerce-backend/internal/tools/ui"
)

const toolName = "migrate"

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   toolName,
		Short: "Database schema tooling",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newCommand(opts, "up", "Apply schema migrations", up),
		newCommand(opts, "status", "Report which tables exist", status),
		newCommand(opts, "plan", "Show the tables a migration would create", plan),
	)
	return cmd
}

func newCommand(opts *options, use, short string, body func(context.Context, *gorm.DB) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := common.Run(toolName, use, opts.ci, opts.timeout, ui.Run, func(ctx context.Context) ([]string, error) {
				db, err := openDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				sqlDB, err := db.DB()
				if err != nil {
					return nil, err
				}
				defer func() { _ = sqlDB.Close() }()
				if err := sqlDB.PingContext(ctx); err != nil {
					return nil, fmt.Errorf("db ping: %w", err)
				}
				return body(ctx, db.WithContext(ctx))
			})
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func up(_ context.Context, db *gorm.DB) ([]string, error) {
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return []string{"schema migration applied", fmt.Sprintf("models: %d", len(database.Models()))}, nil
}

func status(_ context.Context, db *gorm.DB) ([]string, error) {
	details := []string{"database reachable"}
	for _, model := range database.Models() {
		name, err := tableName(db, model)
		if err != nil {
			return nil, err
		}
		state := "missing"
		if db.Migrator().HasTable(model) {
			state = "present"
		}
		details = append(details, fmt.Sprintf("%s: %s", name, state))
	}
	return details, nil
}

func plan(_ context.Context, db *gorm.DB) ([]string, error) {
	var details []string
	for _, model := range database.Models() {
		name, err := tableName(db, model)
		if err != nil {
			return nil, err
		}
		if db.Migrator().HasTable(model) {
			details = append(details, "would reconcile columns and indexes of "+name)
		} else {
			details = append(details, "would create table "+name)
		}
	}
	return append(details, "no mutation executed in plan mode"), nil
}

func tableName(db *gorm.DB, model any) (string, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return "", fmt.Errorf("parse model: %w", err)
	}
	return stmt.Schema.Table, nil
}

func openDB(envFile string) (*gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return database.Open(cfg)
}
