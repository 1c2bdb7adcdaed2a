package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"informer/internal/app"
	"informer/internal/artifact"
	"informer/internal/config"
	"informer/internal/store"
)

const defaultConfigPath = "configs/config.yaml"

type rootOptions struct {
	configPath string
	envFiles   []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "informer",
		Short:         "informer - LLM trade decision pipeline for prop-firm accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", envOr("INFORMER_CONFIG", defaultConfigPath), "configuration file path")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config")

	root.AddCommand(newDecideCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newRunsCmd(opts))
	root.AddCommand(newForwardTestCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	return root
}

func (o *rootOptions) load() (*config.Config, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// open loads config, routes logs and builds the app. The caller must call
// the returned cleanup.
func (o *rootOptions) open() (*app.App, func(), error) {
	cfg, err := o.load()
	if err != nil {
		return nil, func() {}, err
	}
	closeLogs, err := setupLogging(cfg.App)
	if err != nil {
		closeLogs()
		return nil, func() {}, fmt.Errorf("init logs: %w", err)
	}
	a, err := app.NewApp(cfg)
	if err != nil {
		closeLogs()
		return nil, func() {}, fmt.Errorf("init app: %w", err)
	}
	return a, func() {
		_ = a.Close()
		closeLogs()
	}, nil
}

func newDecideCmd(opts *rootOptions) *cobra.Command {
	var (
		req     app.DecideRequest
		asOf    string
		asJSON  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "decide [SYMBOL...]",
		Short: "Run the decision pipeline once and write the artifact",
		Example: `  informer decide
  informer decide AAPL MSFT --profile trade_the_pool_25k_beginner
  informer decide --run-id 2025-03-14-am --as-of 2025-03-14T14:30:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				req.Symbols = args
			}
			if asOf != "" {
				t, err := time.Parse(time.RFC3339, asOf)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				req.AsOf = t
			}
			a, cleanup, err := opts.open()
			defer cleanup()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if timeout > 0 {
				var stop context.CancelFunc
				ctx, stop = context.WithTimeout(ctx, timeout)
				defer stop()
			}
			res, err := a.Decide(ctx, req)
			if err != nil {
				return err
			}
			if asJSON {
				data, err := artifact.Encode(res.Record)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDecision(res))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.RunID, "run-id", "", "run id (a UUID when empty); reusing one replays the run")
	cmd.Flags().StringVar(&asOf, "as-of", "", "decision time, RFC3339 (now when empty)")
	cmd.Flags().StringVar(&req.Profile, "profile", "", "risk profile name (overrides risk.profile)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the artifact JSON instead of the summary")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall deadline for the run")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only decision API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open()
			defer cleanup()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return a.Serve(ctx)
		},
	}
}

func newRunsCmd(opts *rootOptions) *cobra.Command {
	var q store.RunQuery
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded decision runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open()
			defer cleanup()
			if err != nil {
				return err
			}
			st := a.Store()
			if st == nil {
				return fmt.Errorf("run log disabled (store.enabled=false)")
			}
			uow, err := st.Begin(cmd.Context())
			if err != nil {
				return err
			}
			defer uow.Rollback()
			rows, err := uow.Runs().List(cmd.Context(), q)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRuns(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&q.TradeDateNY, "date", "", "trade date (YYYY-MM-DD, New York)")
	cmd.Flags().StringVar(&q.Action, "action", "", "TRADE, NO_TRADE or NOT_READY")
	cmd.Flags().StringVar(&q.Symbol, "symbol", "", "decided symbol")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "max rows")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration, then print the resolved summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.open()
			defer cleanup()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(a.Summary))
			return nil
		},
	})
	return configCmd
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
