package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"thinkchat/internal/config"
	"thinkchat/internal/engine"
	"thinkchat/internal/httpapi"
	"thinkchat/internal/telemetry"
	"thinkchat/internal/worker"
	"thinkchat/pkg/types"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var noLoad bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the worker behind the HTTP command/event API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, !noLoad)
		},
	}
	fs := cmd.Flags()
	fs.String("addr", "", "HTTP listen address, e.g. :8080")
	fs.String("cors-origins", "", "Comma-separated browser origins allowed to call the API")
	fs.BoolVar(&noLoad, "no-load", false, "Wait for an explicit load command instead of loading on start")
	addModelFlags(fs)
	return cmd
}

func serve(ctx context.Context, cfg config.Config, autoLoad bool) error {
	log, closer := telemetry.NewLogger(nil, cfg.LogLevel, cfg.LogFile)
	defer closer.Close()
	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.TraceFile)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("trace shutdown")
		}
	}()

	logHost(ctx, log)
	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	hub := httpapi.NewEventHub()
	w := worker.New(provider, worker.Config{
		ModelID:           cfg.ModelID,
		Precision:         cfg.Precision,
		Device:            cfg.Device,
		MaxNewTokens:      cfg.MaxNewTokens,
		ContextWindowSize: cfg.ContextWindowSize,
		Logger:            log,
		Publisher:         hub,
	})

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetSubscriberBuffer(cfg.SubscriberBuffer)
	httpapi.SetCORSOrigins(cfg.CORSOrigins)
	httpapi.SetBaseContext(ctx)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(w, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := w.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("provider", provider.Name()).Str("model", cfg.ModelID).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hub.Close()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown")
		}
		w.Close()
		return nil
	})
	if autoLoad {
		if _, err := w.Send(types.Command{Type: types.CommandLoad}); err != nil {
			log.Error().Err(err).Msg("queue load")
		}
	}
	err = g.Wait()
	log.Info().Msg("stopped")
	return err
}

func logHost(ctx context.Context, log zerolog.Logger) {
	info, err := engine.ProbeHost(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("host probe")
		return
	}
	log.Info().Str("host", info.String()).Msg("host")
}
