package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/itree/internal/server"
	"github.com/Sumatoshi-tech/itree/pkg/observability"
	"github.com/Sumatoshi-tech/itree/pkg/rangefile"
)

// ErrWatchWithoutFiles is returned for --watch with no files to watch.
var ErrWatchWithoutFiles = errors.New("--watch needs at least one range file")

type serveOptions struct {
	addr     string
	watch    bool
	debounce time.Duration
}

// NewServeCommand creates the serve subcommand.
func NewServeCommand(globals *GlobalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve [FILE...]",
		Short: "Serve an interval index over HTTP",
		Long: `Load zero or more range files into an index and serve it over HTTP.

Endpoints:
  GET    /v1/search?low=L&high=H   intervals overlapping [L, H]
  GET    /v1/stab?point=P          intervals containing P
  GET    /v1/intervals             all intervals
  POST   /v1/intervals             insert {"low","high","value"}
  DELETE /v1/intervals             remove {"low","high","value"}
  GET    /v1/stats                 index statistics
  GET    /healthz, /readyz         liveness and readiness
  GET    /metrics                  Prometheus metrics (server.metrics)

With --watch the index is rebuilt from the files whenever one of them
changes; intervals added over HTTP are dropped on reload.

The server stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, globals, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default: server.host:server.port)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "reload the index when a range file changes")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", rangefile.DefaultDebounce, "wait this long for writes to settle before reloading")

	return cmd
}

func runServe(cmd *cobra.Command, globals *GlobalOptions, opts *serveOptions, files []string) error {
	if opts.watch && len(files) == 0 {
		return ErrWatchWithoutFiles
	}

	ctx := cmd.Context()

	sess, err := openSession(ctx, globals, observability.ModeServe, files)
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	srvCfg := sess.cfg.Server

	srv, err := server.New(sess.index, server.Options{
		ReadTimeout:     srvCfg.ReadTimeout,
		WriteTimeout:    srvCfg.WriteTimeout,
		IdleTimeout:     srvCfg.IdleTimeout,
		ShutdownTimeout: srvCfg.ShutdownTimeout,
		Logger:          sess.providers.Logger,
		Tracer:          sess.providers.Tracer,
		Meter:           sess.providers.Meter,
		MetricsHandler:  sess.providers.MetricsHandler,
		CacheSize:       srvCfg.CacheSize,
		RateLimit:       srvCfg.RateLimit,
		RateBurst:       srvCfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	addr := opts.addr
	if addr == "" {
		addr = srvCfg.Addr()
	}

	if !opts.watch {
		return srv.ListenAndServe(ctx, addr)
	}

	watcher, err := rangefile.NewWatcher(files, opts.debounce)
	if err != nil {
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return srv.ListenAndServe(egCtx, addr)
	})

	eg.Go(func() error {
		return watcher.Run(egCtx, func(reloadCtx context.Context) {
			reloadErr := sess.reload(reloadCtx, files)
			if reloadErr != nil {
				sess.providers.Logger.ErrorContext(reloadCtx, "reload failed", "error", reloadErr)

				return
			}

			sess.providers.Logger.InfoContext(reloadCtx, "index reloaded", "intervals", sess.index.Len())
		})
	})

	return eg.Wait()
}
