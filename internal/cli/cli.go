package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/cannadmin/internal/app"
	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/migration"
	"github.com/Additional-Code/cannadmin/internal/seeder"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

// NewRootCommand builds the root cannadmin CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cannadmin",
		Short: "cannadmin developer toolkit",
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newTokenCmd())

	return root
}

// Execute runs the cannadmin CLI.
func Execute(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP and gRPC services",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := fx.New(app.Module)
			if err := application.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return application.Stop(stopCtx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, mig.Status)
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed demo data for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := tenantFlag(cmd)
			if err != nil {
				return err
			}
			var seed *seeder.Seeder
			opts := fx.Options(app.Core, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				f, err := seed.Seed(ctx, tenantID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seed data applied for tenant %s (admin %s)\n", tenantID, f.Admin.ID)
				return nil
			})
		},
	}
	cmd.Flags().String("tenant", seeder.DemoTenant.String(), "Tenant id to seed")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run worker engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := fx.New(app.Worker)
			if err := application.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return application.Stop(stopCtx)
		},
	})
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage admin session tokens",
	}
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Mint a signed session token for local use",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := tenantFlag(cmd)
			if err != nil {
				return err
			}
			rawAdmin, _ := cmd.Flags().GetString("admin")
			adminID, err := uuid.Parse(rawAdmin)
			if err != nil {
				return fmt.Errorf("invalid --admin: %w", err)
			}
			role, _ := cmd.Flags().GetString("role")

			var tokens *tenant.TokenManager
			opts := fx.Options(config.Module, tenant.Module, fx.Populate(&tokens))
			return runWithApp(cmd.Context(), opts, func(context.Context) error {
				token, err := tokens.Issue(tenant.Session{TenantID: tenantID, AdminID: adminID, Role: role})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	issue.Flags().String("tenant", seeder.DemoTenant.String(), "Tenant id carried by the token")
	issue.Flags().String("admin", seeder.AdminID(seeder.DemoTenant).String(), "Admin user id (token subject)")
	issue.Flags().String("role", tenant.RoleOwner, "Admin role")

	cmd.AddCommand(issue)
	return cmd
}

func tenantFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("tenant")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --tenant: %w", err)
	}
	if id == uuid.Nil {
		return uuid.Nil, tenant.ErrMissingTenant
	}
	return id, nil
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
