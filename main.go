package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/giygas/benefits-api/config"
	"github.com/giygas/benefits-api/coverage"
	"github.com/giygas/benefits-api/data"
	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/gateway"
	"github.com/giygas/benefits-api/handlers"
	"github.com/giygas/benefits-api/health"
	"github.com/giygas/benefits-api/logging"
	"github.com/giygas/benefits-api/planform"
	"github.com/giygas/benefits-api/plans"
	"github.com/giygas/benefits-api/scheduler"
	"github.com/giygas/benefits-api/seed"
	"github.com/giygas/benefits-api/server"
	"github.com/giygas/benefits-api/storage"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	fixturesPath string
)

var rootCmd = &cobra.Command{
	Use:   "benefits-api",
	Short: "Coverage codes and medical plans administration API",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadEnv()

		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		logging.InitLogger(cfg.LogDir, cfg.LogLevel, cfg.LogRetentionWeeks, cfg.MaxLogFileSize)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Close()
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the integrity audit once and print the report",
	RunE:  runAudit,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import coverage codes and medical plans from YAML fixtures",
	Long: `Imports fixtures through the persistence gateway. Without --file the
demo fixtures built into the binary are used. Codes already present make
the whole batch fail without writing.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&fixturesPath, "file", "f", "", "fixture file (YAML)")
	rootCmd.AddCommand(serveCmd, auditCmd, seedCmd)
}

// loadEnv reads .env from the working directory, falling back to the
// executable's directory
func loadEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}

	ex, err := os.Executable()
	if err != nil {
		return
	}
	_ = godotenv.Load(filepath.Join(filepath.Dir(ex), ".env"))
}

// app holds the wired components shared by the commands
type app struct {
	kv        storage.KV
	gateway   *gateway.Gateway
	codes     *gateway.Collection[entities.CoverageCode]
	plans     *gateway.Collection[entities.MedicalPlanDetail]
	dataStore *data.DataContainer
}

func newApp(ctx context.Context) (*app, error) {
	kv, err := storage.Open(ctx, cfg.StorageDriver, cfg.StoragePath, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	// Writes take longer than reads, as they did against the browser store
	g := gateway.New(kv, gateway.WithLatency(cfg.SimulatedLatency, cfg.SimulatedLatency*3/2))

	return &app{
		kv:        kv,
		gateway:   g,
		codes:     gateway.NewCollection[entities.CoverageCode](g, entities.CoverageCodesCollection, coverage.Label),
		plans:     gateway.NewCollection[entities.MedicalPlanDetail](g, entities.MedicalPlansCollection, plans.Label),
		dataStore: data.NewDataContainer(),
	}, nil
}

func (a *app) close() {
	if err := a.kv.Close(); err != nil {
		logging.Error("Failed to close storage", "error", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	a.dataStore.SetServerStartTime(time.Now())
	forms := planform.NewRegistry(cfg.FormSessionTTL)

	sched := scheduler.NewScheduler(a.dataStore, a.codes, a.plans, forms, cfg.AuditAt)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	handler := handlers.NewHTTPHandler(
		coverage.NewService(a.codes, a.plans),
		plans.NewService(a.plans),
		planform.NewLoader(a.plans, a.codes),
		forms,
		health.NewHealthChecker(a.gateway, a.codes, a.plans, a.dataStore),
		a.dataStore,
	)
	srv := server.NewServer(cfg, handler)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}

func runAudit(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	report, err := scheduler.NewScheduler(a.dataStore, a.codes, a.plans, nil, cfg.AuditAt).RunAudit(cmd.Context())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if issues := report.Issues(); issues > 0 {
		return fmt.Errorf("audit found %d issues", issues)
	}
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	var (
		fx  *seed.Fixtures
		err error
	)
	if fixturesPath == "" {
		fx, err = seed.Default()
	} else {
		fx, err = seed.LoadFile(fixturesPath)
	}
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	summary, err := seed.Import(cmd.Context(), a.codes, a.plans, fx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d coverage codes and %d medical plans\n",
		summary.CoverageCodes, summary.MedicalPlans)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
