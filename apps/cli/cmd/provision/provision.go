package provisioncmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	provadapters "github.com/nimbuserp/nimbus-saas/domains/provisioning/be/adapters"
	provrepo "github.com/nimbuserp/nimbus-saas/domains/provisioning/be/repo"
	provservice "github.com/nimbuserp/nimbus-saas/domains/provisioning/be/service"
	tenantsrepo "github.com/nimbuserp/nimbus-saas/domains/tenants/be/repo"
	tenantsservice "github.com/nimbuserp/nimbus-saas/domains/tenants/be/service"
	platformlogging "github.com/nimbuserp/nimbus-saas/platform/go/logging"
	"github.com/nimbuserp/nimbus-saas/platform/go/persistence"
)

// remoteConfig holds the external collaborator endpoints. They come from the
// environment rather than flags so credentials stay out of shell history.
type remoteConfig struct {
	DBServiceURL    string `env:"DBSERVICE_URL,required"`
	DBServiceAPIKey string `env:"DBSERVICE_API_KEY"`

	PrimaryOdooURL      string `env:"PRIMARY_ODOO_URL,required"`
	PrimaryOdooLogin    string `env:"PRIMARY_ODOO_LOGIN,required"`
	PrimaryOdooPassword string `env:"PRIMARY_ODOO_PASSWORD,required"`

	SecondaryOdooURL      string `env:"SECONDARY_ODOO_URL,required"`
	SecondaryOdooDatabase string `env:"SECONDARY_ODOO_DATABASE,required"`
	SecondaryOdooLogin    string `env:"SECONDARY_ODOO_LOGIN,required"`
	SecondaryOdooPassword string `env:"SECONDARY_ODOO_PASSWORD,required"`
}

// Command groups provisioning helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provisioning pipeline utilities (run/retry/status)",
	}

	cmd.AddCommand(runCommand())
	cmd.AddCommand(retryCommand())
	cmd.AddCommand(statusCommand())
	return cmd
}

func runCommand() *cobra.Command {
	var (
		databaseURL string
		tenantCode  string
	)

	c := &cobra.Command{
		Use:   "run",
		Short: "Run the provisioning pipeline for a tenant synchronously",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, logger, err := openPool(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			executor, _, err := buildExecutor(pool, logger)
			if err != nil {
				return err
			}

			job, err := executor.Run(ctx, tenantCode)
			if err != nil {
				return fmt.Errorf("run provisioning: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Provisioning complete. Tenant: %s, status: %s\n", tenantCode, job.Status)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&tenantCode, "tenant", "", "Tenant code to provision")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("tenant")

	return c
}

func retryCommand() *cobra.Command {
	var (
		databaseURL string
		tenantCode  string
	)

	c := &cobra.Command{
		Use:   "retry",
		Short: "Resume a failed provisioning job from its failed step",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, logger, err := openPool(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			executor, jobRepo, err := buildExecutor(pool, logger)
			if err != nil {
				return err
			}

			retry := provservice.NewRetry(jobRepo, executor, logger)
			job, err := retry.Retry(ctx, tenantCode)
			if err != nil {
				return fmt.Errorf("retry provisioning: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Retry complete. Tenant: %s, status: %s, attempts: %d\n",
				tenantCode, job.Status, job.AttemptCount)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&tenantCode, "tenant", "", "Tenant code to retry")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("tenant")

	return c
}

func statusCommand() *cobra.Command {
	var (
		databaseURL string
		tenantCode  string
		locale      string
	)

	c := &cobra.Command{
		Use:   "status",
		Short: "Print the provisioning status report for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, logger, err := openPool(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)
			_ = logger

			jobRepo, gateway, err := buildStores(pool)
			if err != nil {
				return err
			}

			reporter := provservice.NewStatusReporter(jobRepo, gateway)
			report, err := reporter.Status(ctx, tenantCode, locale)
			if err != nil {
				return fmt.Errorf("status report: %w", err)
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&tenantCode, "tenant", "", "Tenant code to inspect")
	c.Flags().StringVar(&locale, "locale", "en", "Locale for step descriptions (en, es)")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("tenant")

	return c
}

func openPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, *zap.Logger, error) {
	logger, err := platformlogging.NewLogger(platformlogging.Config{Component: "nimbusctl", Level: "info"})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}
	return pool, logger, nil
}

func buildStores(pool *pgxpool.Pool) (provservice.JobRepository, provservice.TenantGateway, error) {
	tenantStore, err := persistence.NewTenantStore(pool)
	if err != nil {
		return nil, nil, fmt.Errorf("init tenant store: %w", err)
	}
	jobStore, err := persistence.NewJobStore(pool)
	if err != nil {
		return nil, nil, fmt.Errorf("init job store: %w", err)
	}

	tenantService := tenantsservice.New(tenantsrepo.NewPostgresRepository(tenantStore))
	gateway := provadapters.NewTenantGateway(tenantService)
	return provrepo.NewPostgresRepository(jobStore), gateway, nil
}

func buildExecutor(pool *pgxpool.Pool, logger *zap.Logger) (*provservice.Executor, provservice.JobRepository, error) {
	var cfg remoteConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, nil, fmt.Errorf("load remote endpoints from environment: %w", err)
	}

	jobRepo, gateway, err := buildStores(pool)
	if err != nil {
		return nil, nil, err
	}

	adapters := provservice.Adapters{
		Database: provadapters.NewDBServiceClient(cfg.DBServiceURL, cfg.DBServiceAPIKey, logger),
		Primary: provadapters.NewPrimaryOdoo(provadapters.OdooConfig{
			Endpoint: cfg.PrimaryOdooURL,
			Login:    cfg.PrimaryOdooLogin,
			Password: cfg.PrimaryOdooPassword,
		}, logger),
		Secondary: provadapters.NewSecondaryOdoo(provadapters.OdooConfig{
			Endpoint: cfg.SecondaryOdooURL,
			Login:    cfg.SecondaryOdooLogin,
			Password: cfg.SecondaryOdooPassword,
		}, cfg.SecondaryOdooDatabase, logger),
	}

	return provservice.NewExecutor(jobRepo, gateway, adapters, logger), jobRepo, nil
}
