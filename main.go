package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/apperrors"
	"github.com/estategraph/estate-engine/pkg/config"
	"github.com/estategraph/estate-engine/pkg/logging"
	"github.com/estategraph/estate-engine/pkg/pipeline"
	"github.com/estategraph/estate-engine/pkg/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Exit codes. Null-vector degradation alone still exits 0; a failed entity
// or a run where no enabled sink succeeded exits 1.
const (
	exitOK           = 0
	exitFatal        = 1
	exitConfig       = 2
	exitSourcesEmpty = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	return exitCode(newRootCmd().Execute())
}

// exitCode maps a command error onto the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, apperrors.ErrAllSourcesEmpty):
		return exitSourcesEmpty
	case errors.Is(err, apperrors.ErrConfigInvalid):
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitConfig
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitFatal
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "estate-engine",
		Short:         "Real-estate knowledge base ingestion and enrichment pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newDropRunCmd(), newProbeSinksCmd(), newVersionCmd())
	return root
}

// environment is the shared setup of every store-touching command.
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
	store  store.Store
}

func setup(configPath string) (*environment, error) {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrConfigInvalid, err)
	}
	st, err := store.New(&cfg.Store, logger)
	if err != nil {
		logger.Sync()
		return nil, err
	}
	return &environment{cfg: cfg, logger: logger, store: st}, nil
}

func (e *environment) close() {
	e.store.Close()
	e.logger.Sync()
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		sampleSize int
		entities   []string
		skipSinks  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a full pipeline run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(configPath)
			if err != nil {
				return err
			}
			defer env.close()

			if cmd.Flags().Changed("sample-size") {
				env.cfg.Run.SampleSize = sampleSize
			}
			if len(entities) > 0 {
				env.cfg.Run.Entities = entities
			}
			if err := env.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runner := pipeline.NewRunner(env.cfg, env.store, env.logger)
			runner.SkipSinks = skipSinks
			report, err := runner.Run(ctx)
			if err != nil {
				return err
			}

			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")
			if err := out.Encode(report); err != nil {
				return err
			}
			if report.AllSourcesEmpty() {
				return apperrors.ErrAllSourcesEmpty
			}
			if report.AnyEntityFailed() {
				return fmt.Errorf("run %d: at least one entity failed", report.RunID)
			}
			if len(env.cfg.Sinks.Enabled) > 0 && !skipSinks && !report.AnySinkSucceeded() {
				return fmt.Errorf("run %d: no sink write succeeded", report.RunID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (default config.yaml)")
	cmd.Flags().IntVar(&sampleSize, "sample-size", 0, "cap rows read per source (0 reads all)")
	cmd.Flags().StringSliceVar(&entities, "entities", nil, "restrict the run to these entities")
	cmd.Flags().BoolVar(&skipSinks, "skip-sinks", false, "skip sink exports")
	return cmd
}

func newDropRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "drop-run <runId>",
		Short: "Remove every table of a previous run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}
			env, err := setup(configPath)
			if err != nil {
				return err
			}
			defer env.close()

			if err := pipeline.NewRunner(env.cfg, env.store, env.logger).DropRun(cmd.Context(), runID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %d dropped\n", runID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (default config.yaml)")
	return cmd
}

func newProbeSinksCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "probe-sinks",
		Short: "Verify connectivity of every enabled sink",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(configPath)
			if err != nil {
				return err
			}
			defer env.close()

			if len(env.cfg.Sinks.Enabled) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sinks enabled")
				return nil
			}
			return pipeline.NewRunner(env.cfg, env.store, env.logger).ProbeSinks(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (default config.yaml)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
