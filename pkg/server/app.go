package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TrendPulse/internal/bus"
	"TrendPulse/internal/feed"
	"TrendPulse/internal/usecase"
	pkgch "TrendPulse/pkg/clickhouse"
	"TrendPulse/pkg/config"
	xhttp "TrendPulse/pkg/http"
	applogger "TrendPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	bus      *bus.Bus
	feed     *feed.Feed
	pipeline *usecase.Pipeline
	view     *usecase.StateView
	tap      *usecase.ArchiveTap
	router   *usecase.ArchiveRouter
	chClient *pkgch.Client

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	b *bus.Bus,
	f *feed.Feed,
	pipeline *usecase.Pipeline,
	view *usecase.StateView,
	tap *usecase.ArchiveTap,
	router *usecase.ArchiveRouter,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		bus:         b,
		feed:        f,
		pipeline:    pipeline,
		view:        view,
		tap:         tap,
		router:      router,
		chClient:    chClient,
		httpHandler: handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Archive flusher before the feed, so no closed candle races past it.
	a.tap.Start(ctx)

	if err := a.feed.Start(ctx); err != nil {
		a.log.Error("feed start error", applogger.Error(err))
		return err
	}
	a.log.Info("feed started",
		applogger.String("symbol", a.cfg.Exchange.Symbol),
		applogger.String("interval", a.cfg.Exchange.Interval))

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services, producers first, then the
// consumers hanging off the bus, then infrastructure.
func (a *App) shutdown(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.feed.Shutdown(stopCtx); err != nil {
		a.log.Warn("feed stop error", applogger.Error(err))
	}

	a.pipeline.Close()
	a.tap.Close()
	a.view.Close()
	a.bus.Close()

	if err := a.httpServer.Stop(stopCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	a.router.Close()
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
