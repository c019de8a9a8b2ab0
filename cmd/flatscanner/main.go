package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"FlatScanner/internal/app"
	"FlatScanner/internal/config"
	"FlatScanner/internal/domain"
	"FlatScanner/internal/filter"
	"FlatScanner/internal/logging"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flatscanner",
		Short: "Crawl apartment listings and forward the interesting ones",
		Long: `FlatScanner crawls listing search pages, filters the exposes found there
(price, size, rooms, price per square, excluded titles, already seen) and
forwards the survivors to Telegram.

Examples:
  # One crawl pass
  flatscanner run --config config.yaml

  # Crawl every scheduler.interval and serve the preview API
  flatscanner serve --config config.yaml

  # Evaluate exposes from a JSON file without touching the seen-id store
  flatscanner check exposes.json --config config.yaml`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml or .toml), defaults to $FLATSCANNER_CONFIG")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run a single crawl, filter and notify pass",
			Args:  cobra.NoArgs,
			RunE:  runOnce,
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Run passes on the configured interval and serve the preview API",
			Args:  cobra.NoArgs,
			RunE:  serve,
		},
		&cobra.Command{
			Use:   "check <exposes.json>",
			Short: "Evaluate exposes from a JSON file against the configured filters",
			Args:  cobra.ExactArgs(1),
			RunE:  check,
		},
	)
	return root
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("init application", "error", err)
		return err
	}
	defer application.Close()

	report, err := application.Run(ctx)
	if !cfg.Notifications.Telegram.Enabled() {
		for _, e := range report.Exposes {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", e.ID, e.Label(), e.Price, e.URL)
		}
	}
	if err != nil {
		logger.Error("pipeline pass failed", "error", err)
		return err
	}
	return nil
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("init application", "error", err)
		return err
	}
	defer application.Close()

	if err := application.Serve(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	logger.Info("application stopped")
	return nil
}

func check(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read exposes: %w", err)
	}
	var exposes []domain.Expose
	if err := json.Unmarshal(raw, &exposes); err != nil {
		return fmt.Errorf("decode exposes %s: %w", args[0], err)
	}

	chain, err := app.NewPreviewChain(cfg.Filters, logger)
	if err != nil {
		return err
	}
	return printEvaluations(cmd.Context(), cmd.OutOrStdout(), chain, exposes)
}

func printEvaluations(ctx context.Context, w io.Writer, chain *filter.Chain, exposes []domain.Expose) error {
	for _, e := range exposes {
		res, err := chain.Evaluate(ctx, e)
		if err != nil {
			return err
		}
		if res.Accepted {
			fmt.Fprintf(w, "ACCEPT %d %s\n", e.ID, e.Label())
			continue
		}
		fmt.Fprintf(w, "REJECT %d %s\n - %s\n", e.ID, e.Label(), strings.Join(res.Reasons, "\n - "))
	}
	return nil
}
