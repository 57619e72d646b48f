package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/payengine/internal/adapter/csvio"
	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/engine"
	"github.com/iho/payengine/internal/infrastructure/config"
	"github.com/iho/payengine/internal/infrastructure/debugsrv"
	"github.com/iho/payengine/internal/infrastructure/logger"
	"github.com/iho/payengine/internal/infrastructure/metrics"
	"github.com/iho/payengine/internal/infrastructure/retry"
	"github.com/iho/payengine/internal/ledger"
	"github.com/iho/payengine/internal/store"
	"github.com/iho/payengine/internal/store/coldstore"
	"github.com/iho/payengine/internal/store/pgkv"
	"github.com/iho/payengine/internal/store/redikv"
	"github.com/iho/payengine/internal/store/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var output string

	cmd := &cobra.Command{
		Use:   "payengine <input.csv>",
		Short: "Batch payments engine",
		Long: `Processes an ordered CSV stream of deposits, withdrawals, disputes,
resolves and chargebacks, and writes the final per-client account
report as CSV. Pass "-" to read the stream from stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, args[0], output)
		},
	}

	// Flag defaults come from the environment, so flags always win.
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "write the account report to a file instead of stdout")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "worker goroutines (0 = number of CPUs)")
	f.IntVar(&cfg.MaxPending, "max-pending", cfg.MaxPending, "max transactions in flight")
	f.IntVar(&cfg.HotCapacity, "hot-capacity", cfg.HotCapacity, "in-memory transaction store capacity")
	f.StringVar(&cfg.ColdBackend, "cold-backend", cfg.ColdBackend, "cold tier backend: sqlite, redis, postgres or memory")
	f.StringVar(&cfg.ColdDir, "cold-dir", cfg.ColdDir, "directory for the sqlite cold tier (empty = per-run temp dir)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	f.StringVar(&cfg.DebugAddr, "debug-addr", cfg.DebugAddr, "serve /metrics and /healthz on this address (empty = disabled)")
	f.BoolVar(&cfg.DisputableWithdrawals, "dispute-withdrawals", cfg.DisputableWithdrawals, "record withdrawals so they can be disputed too")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, inputPath, outputPath string) error {
	runID := ulid.Make().String()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}).
		With().
		Str("run_id", runID).
		Logger()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	if cfg.DebugAddr != "" {
		dbg := debugsrv.New(cfg.DebugAddr, reg, log)
		dbg.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = dbg.Shutdown(shutdownCtx)
		}()
	}

	cold, cleanup, err := openColdBackend(ctx, cfg, runID, log)
	if err != nil {
		return fmt.Errorf("open cold backend: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	st := store.New(cold, cfg.HotCapacity, m)
	defer st.Close()

	input, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer input.Close()

	eng := engine.New(
		ledger.New(st, cfg.DisputableWithdrawals),
		engine.Config{Workers: cfg.Workers, MaxPending: cfg.MaxPending},
		log,
		m,
	)

	src := csvio.NewReader(input, log, m)

	start := time.Now()
	snapshots, err := eng.Run(ctx, src)
	if err != nil {
		return err
	}

	if err := writeReport(outputPath, snapshots); err != nil {
		return err
	}

	log.Info().
		Int("accounts", len(snapshots)).
		Int("skipped_rows", src.Skipped()).
		Dur("elapsed", time.Since(start)).
		Msg("run complete")
	return nil
}

// openColdBackend builds the configured cold tier, wrapped in a retrier
// keyed to the backend's transient error predicate. The returned
// cleanup, if any, removes per-run scratch state and must be called
// after the store is closed.
func openColdBackend(ctx context.Context, cfg *config.Config, runID string, log zerolog.Logger) (coldstore.Backend, func(), error) {
	switch cfg.ColdBackend {
	case config.BackendMemory:
		return coldstore.NewMemory(), nil, nil

	case config.BackendSQLite:
		dir := cfg.ColdDir
		var cleanup func()
		if dir == "" {
			tmp, err := os.MkdirTemp("", "payengine-"+runID+"-")
			if err != nil {
				return nil, nil, err
			}
			dir = tmp
			cleanup = func() { _ = os.RemoveAll(tmp) }
		}
		backend, err := sqlite.Open(filepath.Join(dir, "cold.db"))
		if err != nil {
			if cleanup != nil {
				cleanup()
			}
			return nil, nil, err
		}
		return coldstore.WithRetry(backend, retry.New(sqlite.IsTransient, log)), cleanup, nil

	case config.BackendRedis:
		backend, err := redikv.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return coldstore.WithRetry(backend, retry.New(redikv.IsTransient, log)), nil, nil

	case config.BackendPostgres:
		backend, err := pgkv.Open(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
		if err != nil {
			return nil, nil, err
		}
		return coldstore.WithRetry(backend, retry.New(pgkv.IsTransient, log)), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown cold backend %q", cfg.ColdBackend)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

func writeReport(path string, snapshots []domain.AccountSnapshot) error {
	if path == "" {
		return csvio.WriteAccounts(os.Stdout, snapshots)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := csvio.WriteAccounts(f, snapshots); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
