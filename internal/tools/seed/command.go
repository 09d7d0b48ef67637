package seed

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

const toolName = "seed"

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: toolName, Short: "Demo catalog seed tooling"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Minute, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newApplyCommand(opts), newDryRunCommand(opts))
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Insert the demo catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := common.Run(toolName, "apply", opts.ci, opts.timeout, ui.Run, func(ctx context.Context) ([]string, error) {
				db, closeDB, err := openMigratedDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB()
				report, err := database.SeedCatalog(db.WithContext(ctx))
				if err != nil {
					return nil, err
				}
				if report.Noop {
					return []string{"catalog already seeded"}, nil
				}
				return []string{fmt.Sprintf("created %d products", report.CreatedProducts)}, nil
			})
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "List the products apply would create",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := common.Run(toolName, "dry-run", opts.ci, opts.timeout, ui.Run, func(ctx context.Context) ([]string, error) {
				db, closeDB, err := openMigratedDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB()
				pending, err := database.PendingCatalog(db.WithContext(ctx))
				if err != nil {
					return nil, err
				}
				if len(pending) == 0 {
					return []string{"nothing to seed"}, nil
				}
				details := make([]string, 0, len(pending))
				for _, name := range pending {
					details = append(details, "would create product: "+name)
				}
				return details, nil
			})
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

// openMigratedDB seeds need the products table, so the schema is brought up
// to date first.
func openMigratedDB(envFile string) (*gorm.DB, func(), error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := database.Migrate(db); err != nil {
		closeDB()
		return nil, nil, err
	}
	return db, closeDB, nil
}
