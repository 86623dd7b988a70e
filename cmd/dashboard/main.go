package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xhad/speechbuddy/internal/app"
	"github.com/xhad/speechbuddy/pkg/content"
	"github.com/xhad/speechbuddy/pkg/rag"
	"github.com/xhad/speechbuddy/pkg/session"
	"github.com/xhad/speechbuddy/server"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath string
		addr       string
		document   string
		warm       bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides dashboard.addr)")
	flag.StringVar(&document, "document", "", "Reference document path or URL (overrides document.path)")
	flag.BoolVar(&warm, "warm", false, "Build the retrieval pipeline before serving")
	flag.Parse()

	if err := run(configPath, addr, document, warm); err != nil {
		fmt.Fprintln(os.Stderr, "dashboard:", err)
		os.Exit(1)
	}
}

func run(configPath, addr, document string, warm bool) error {
	cfg, log, err := app.Load(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	if addr != "" {
		cfg.Dashboard.Addr = addr
	}
	if document != "" {
		cfg.Document.Path = document
	}
	if err := app.Validate(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.NewPipeline(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	answerer, err := rag.NewCached(pipeline.Builder, cfg.Document.CacheTTL, nil)
	if err != nil {
		return err
	}
	if warm {
		if _, err := answerer.Chain(ctx); err != nil {
			return err
		}
	}

	sessions := session.NewStore(session.StoreConfig{
		TTL:          cfg.Dashboard.SessionTTL,
		MemoryWindow: cfg.Document.MemoryWindow,
	})
	go sweepSessions(ctx, sessions, log)
	go reloadOnHangup(ctx, answerer, log)

	dashboard, err := server.NewDashboard(server.DashboardConfig{
		Answerer: answerer,
		Sessions: sessions,
		Renderer: content.NewRenderer(),
		Logger:   log.Named("dashboard"),
	})
	if err != nil {
		return err
	}

	log.Info("starting dashboard",
		zap.String("document", cfg.Document.Path),
		zap.Duration("cache_ttl", cfg.Document.CacheTTL),
	)
	return server.Run(ctx, cfg.Dashboard.Addr, dashboard.Routes(), log)
}

func sweepSessions(ctx context.Context, sessions *session.Store, log *zap.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				log.Debug("expired sessions removed", zap.Int("count", n))
			}
		}
	}
}

// reloadOnHangup drops the cached chain on SIGHUP so the next question
// re-reads the reference document.
func reloadOnHangup(ctx context.Context, answerer *rag.Cached, log *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			answerer.Invalidate()
			log.Info("reference document will be reloaded on next question")
		}
	}
}
