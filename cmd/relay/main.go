package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xhad/speechbuddy/internal/app"
	"github.com/xhad/speechbuddy/pkg/transcribe"
	"github.com/xhad/speechbuddy/server"
	"go.uber.org/zap"
)

func main() {
	var configPath, addr string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides relay.addr)")
	flag.Parse()

	if err := run(configPath, addr); err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	cfg, log, err := app.Load(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	if addr != "" {
		cfg.Relay.Addr = addr
	}
	if err := app.Validate(cfg); err != nil {
		return err
	}

	generator, err := app.NewGenerator(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %w", err)
	}

	relay, err := server.NewRelay(server.RelayConfig{
		Transcriber: transcribe.NewStub(),
		Generator:   generator,
		Logger:      log.Named("relay"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting relay",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.Int("max_tokens", cfg.Relay.MaxTokens),
	)
	return server.Run(ctx, cfg.Relay.Addr, relay.Handler(), log)
}
