// Package cmd implements nomosd's CLI surface with cobra.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nomos-run/nomos/internal/config"
	"github.com/nomos-run/nomos/internal/defs"
	"github.com/nomos-run/nomos/internal/engine"
	"github.com/nomos-run/nomos/internal/httpapi"
	"github.com/nomos-run/nomos/internal/obslog"
	"github.com/nomos-run/nomos/internal/resultstore"
	"github.com/nomos-run/nomos/internal/sigctx"
	"github.com/nomos-run/nomos/internal/supervisor"
	"github.com/nomos-run/nomos/internal/webhook"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 10 * time.Second
)

var rootCmd = &cobra.Command{
	Use:     "nomosd",
	Short:   "Nomos self-hosted CI/automation daemon",
	Version: Version,
	RunE:    runServe,
}

// Execute runs the root command with SIGINT/SIGTERM-aware cancellation.
func Execute() error {
	ctx := sigctx.WithSignals(context.Background())
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// deps holds every component nomosd needs, wired by buildDeps and shared by
// the serve and validate commands.
type deps struct {
	cfg        config.Config
	logger     *slog.Logger
	defs       *defs.Store
	results    *resultstore.Store
	engine     *engine.Engine
	supervisor *supervisor.Supervisor
	webhook    *webhook.Dispatcher
}

func buildDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("preparing state root: %w", err)
	}

	logger := obslog.New(slog.LevelInfo)

	store := defs.NewStore(cfg.StateRoot)
	results := resultstore.NewStore(cfg.StateRoot)

	eng := &engine.Engine{
		Scripts:     store,
		Results:     results,
		IDs:         resultstore.NewIDAllocator(cfg.StateRoot),
		Credentials: store,
		Syncer:      store,
	}
	sv := supervisor.New(eng, results)
	dispatcher := &webhook.Dispatcher{
		Jobs:        store,
		Credentials: store,
		Supervisor:  sv,
		Logger:      logger,
	}

	return &deps{
		cfg:        cfg,
		logger:     logger,
		defs:       store,
		results:    results,
		engine:     eng,
		supervisor: sv,
		webhook:    dispatcher,
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	if dryRunFile != "" {
		return runValidateFile(cmd.Context(), dryRunFile)
	}

	d, err := buildDeps()
	if err != nil {
		return err
	}

	handler := &httpapi.Handler{
		Defs:          d.defs,
		Engine:        d.engine,
		Supervisor:    d.supervisor,
		Results:       d.results,
		Webhook:       d.webhook,
		BasicAuthUser: d.cfg.BasicAuthUser,
		BasicAuthPass: d.cfg.BasicAuthPass,
		Logger:        d.logger,
	}

	server := &http.Server{
		Addr:              d.cfg.ListenAddr,
		Handler:           handler.NewMux(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	ctx := cmd.Context()
	serverErr := make(chan error, 1)
	go func() {
		d.logger.Info("nomosd listening", "addr", d.cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case <-ctx.Done():
		d.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			d.logger.Error("server shutdown error", "error", err)
		}
		d.supervisor.Wait()
		return nil
	case err := <-serverErr:
		return err
	}
}
