// Command idlkit decodes and builds Solana program data from Anchor IDLs: it
// decodes accounts, traces transaction logs, drives the price feed program,
// streams program events and backfills their history into storage.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"solana-idl-kit/internal/coder"
	"solana-idl-kit/internal/config"
	"solana-idl-kit/internal/dfeed"
	"solana-idl-kit/internal/idl"
	"solana-idl-kit/internal/logger"
	"solana-idl-kit/internal/observability"
	"solana-idl-kit/internal/solana"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries what every command needs once the config is resolved.
type app struct {
	configPath string
	flags      struct {
		rpc      string
		ws       string
		program  string
		idl      string
		storage  string
		logLevel string
	}

	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	out      io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "idlkit",
		Short:        "Decode and build Solana program data from Anchor IDLs",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "path to the YAML config file")
	f.StringVar(&a.flags.rpc, "rpc", "", "Solana RPC HTTP endpoint (overrides rpc.endpoint)")
	f.StringVar(&a.flags.ws, "ws", "", "Solana WebSocket endpoint (overrides rpc.ws_endpoint)")
	f.StringVar(&a.flags.program, "program", "", "program address (overrides program.id)")
	f.StringVar(&a.flags.idl, "idl", "", "Anchor IDL JSON file (overrides program.idl_path)")
	f.StringVar(&a.flags.storage, "storage", "", "storage backend: memory or postgres (overrides storage.type)")
	f.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newAccountCmd(a),
		newTraceCmd(a),
		newFeedCmd(a),
		newDeriveCmd(a),
		newWatchCmd(a),
		newBackfillCmd(a),
		newTokenCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("rpc") {
		cfg.RPC.Endpoint = a.flags.rpc
		cfg.RPC.WSEndpoint = config.WSEndpointFor(a.flags.rpc)
	}
	if flags.Changed("ws") {
		cfg.RPC.WSEndpoint = a.flags.ws
	}
	if flags.Changed("program") {
		cfg.Program.ID = a.flags.program
	}
	if flags.Changed("idl") {
		cfg.Program.IDLPath = a.flags.idl
	}
	if flags.Changed("storage") {
		cfg.Storage.Type = a.flags.storage
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := cfg.Log.SlogLevel()
	a.cfg = cfg
	a.logger = logger.Init(logger.Options{Level: level, Writer: cmd.ErrOrStderr()})
	a.registry = prometheus.NewRegistry()
	a.metrics = observability.NewMetrics("", a.registry)
	a.out = cmd.OutOrStdout()
	return nil
}

func (a *app) rpcClient() *solana.HTTPClient {
	return solana.NewHTTPClient(a.cfg.RPC.Endpoint,
		solana.WithTimeout(a.cfg.RPC.Timeout),
		solana.WithMaxRetries(a.cfg.RPC.MaxRetries),
		solana.WithLogger(a.logger),
		solana.WithObserver(a.metrics),
	)
}

// coder compiles the configured IDL, or the embedded feed program IDL when
// none is configured.
func (a *app) coder() (*coder.Coder, error) {
	var (
		doc *idl.Idl
		err error
	)
	if a.cfg.Program.IDLPath != "" {
		doc, err = idl.Load(a.cfg.Program.IDLPath)
	} else {
		doc, err = dfeed.IDL()
	}
	if err != nil {
		return nil, fmt.Errorf("load idl: %w", err)
	}
	return coder.New(doc)
}

func (a *app) feedProgram() (*dfeed.Program, error) {
	id, err := a.cfg.ProgramID()
	if err != nil {
		return nil, err
	}
	return dfeed.NewProgram(id)
}

// serveMetrics exposes /metrics and /health until ctx is done.
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg.Metrics.Addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(a.registry))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		a.logger.Info("metrics server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", "error", err)
		}
	}()
}
