// Command tithe-reconcile finds salaries of a user that were stored without
// their tithe and, unless -dry-run is given, derives the missing tithes.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"financas/internal/backend"
	"financas/internal/cli"
	"financas/internal/config"
	"financas/internal/core"
	"financas/internal/services"
	"financas/internal/session"
)

func main() {
	userID := flag.String("user", "", "user id whose salaries are checked (required)")
	dryRun := flag.Bool("dry-run", false, "only list salaries missing a tithe")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "tithe-reconcile: -user is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid record store configuration", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if bcfg.Type == backend.MemoryBackend {
		logger.Error("The memory backend holds no persisted salaries", "backend", bcfg.Type)
		os.Exit(1)
	}
	stores, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize record store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer stores.Cleanup()

	svc := services.NewFinanceService(stores.Gateway)
	missing, repaired, err := reconcile(ctx, svc, session.Session{UserID: *userID}, *dryRun, os.Stdout)
	if err != nil {
		logger.Error("Reconciliation incomplete", "error", err, "user_id", *userID, "missing", missing, "repaired", repaired)
		os.Exit(1)
	}
	switch {
	case missing == 0:
		logger.Info("Every salary has its tithe", "user_id", *userID)
	case *dryRun:
		logger.Info("Dry run, nothing written", "missing", missing)
	default:
		logger.Info("Reconciliation finished", "missing", missing, "repaired", repaired)
	}
}

// reconcile writes one line per salary missing its tithe and, unless dryRun,
// derives the missing tithes.
func reconcile(ctx context.Context, svc *services.FinanceService, sess session.Session, dryRun bool, w io.Writer) (missing, repaired int, err error) {
	salaries, err := svc.FindSalariesWithoutTithe(ctx, sess)
	if err != nil {
		return 0, 0, fmt.Errorf("list salaries: %w", err)
	}
	for _, sal := range salaries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", sal.ID, core.PeriodLabel(sal.Year, sal.Month), core.FormatBRL(sal.Amount))
	}
	if len(salaries) == 0 || dryRun {
		return len(salaries), 0, nil
	}
	tithes, err := svc.RepairMissingTithes(ctx, sess)
	return len(salaries), len(tithes), err
}
