package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/sadopc/godudb/internal/config"
	"github.com/sadopc/godudb/internal/lifecycle"
	"github.com/sadopc/godudb/internal/logging"
	"github.com/sadopc/godudb/internal/remote"
	"github.com/sadopc/godudb/internal/store"
)

var (
	version = "dev"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand once the root command's
// pre-run has resolved configuration.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	log     *slog.Logger

	stdout io.Writer
	stderr io.Writer

	metrics *http.Server
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr, log: logging.Discard()}

	root := &cobra.Command{
		Use:   "godudb",
		Short: "Resumable disk usage scans stored in SQLite",
		Long: `godudb walks a directory tree, local or over SFTP, and stores every file and
directory it visits in a SQLite database. Interrupted scans can be resumed
without revisiting what was already recorded.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("godudb {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: "+filepath.Join(config.DefaultDir(), "config.yaml")+")")
	pf.String(config.KeyDB, filepath.Join(config.DefaultDir(), "godudb.db"), "SQLite database holding scans")
	pf.String(config.KeyLogLevel, "info", "log level: debug, info, warn or error")
	pf.String(config.KeyLogFormat, "auto", "log format: auto, text or json")
	pf.String(config.KeyMetricsAddr, "", "serve Prometheus metrics on this address, e.g. :9090")

	root.AddCommand(
		newScanCmd(a),
		newResumeCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newDiffCmd(a),
		newDeleteCmd(a),
		newRecoverCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("no-hidden"); f != nil && f.Changed && f.Value.String() == "true" {
		cfg.Hidden = false
	}
	a.cfg = cfg

	log, err := logging.New(a.stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.log = log
	slog.SetDefault(log)
	if cfg.File != "" {
		log.Debug("loaded config file", "path", cfg.File)
	}

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		log.Debug("cannot set GOMAXPROCS", "err", err)
	}

	if cfg.MetricsAddr != "" {
		a.metrics = serveMetrics(cfg.MetricsAddr, log)
	}
	return nil
}

func (a *app) teardown() error {
	if a.metrics == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return a.metrics.Shutdown(ctx)
}

func serveMetrics(addr string, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", "err", err)
		}
	}()
	return srv
}

// openStore opens the configured database, creating its directory first.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if dir := filepath.Dir(a.cfg.DB); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	return store.Open(ctx, a.cfg.DB, a.log)
}

func (a *app) controller(st lifecycle.Store) *lifecycle.Controller {
	return lifecycle.New(st, lifecycle.Options{
		BatchSize:       a.cfg.BatchSize,
		MailboxCapacity: a.cfg.Mailbox,
		Walker:          a.cfg.WalkerOptions(),
		Open:            remote.NewOpener(a.cfg.Remote(), nil).Open,
		Logger:          a.log,
	})
}

// withStore opens the database for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(st *store.Store) error) error {
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			a.log.Warn("close database", "err", err)
		}
	}()
	return fn(st)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid scan id %q", s)
	}
	return id, nil
}
