package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/secagg"
	"github.com/absmach/secagg/client"
	"github.com/absmach/secagg/pkg/protect"
	"github.com/absmach/secagg/pkg/tracing"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	svcName         = "secagg-client"
	shutdownTimeout = 10 * time.Second
)

var (
	configPath string
	numClients int
	logLevel   slog.Level
	namegen    = namegenerator.NewGenerator()
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	flag.StringVar(&configPath, "config", os.Getenv("SECAGG_CONFIG"), "Path to the TOML configuration file")
	flag.IntVar(&numClients, "clients", 1, "Number of clients to run in this process")
	flag.Parse()

	if numClients < 1 {
		return fmt.Errorf("clients must be positive, got %d", numClients)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := secagg.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := configureLogger(cfg.Client.LogLevel)
	slog.SetDefault(logger)

	shareCipher, err := cfg.ShareCipher()
	if err != nil {
		return fmt.Errorf("failed to build share cipher: %w", err)
	}

	params, err := cfg.ProtectParams()
	if err != nil {
		return err
	}

	tp, err := tracing.NewProvider(ctx, svcName, cfg.Client.JaegerURL, uuid.NewString(), cfg.Client.TraceRatio)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", slog.Any("error", err))
		}
	}()
	tracer := tp.Tracer(svcName)

	sdk, err := client.NewHTTPSDK(client.SDKConfig{
		ServerURL: cfg.Client.ServerURL,
		Timeout:   cfg.Client.Timeout,
		CBOR:      cfg.Client.CBOR,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range numClients {
		clientID := cfg.Client.ClientID
		switch {
		case clientID == "":
			clientID = namegen.Generate()
		case numClients > 1:
			clientID = fmt.Sprintf("%s-%d", clientID, i+1)
		}

		protector, err := protect.New(params, shareCipher)
		if err != nil {
			return fmt.Errorf("failed to build protector: %w", err)
		}

		trainer, err := client.NewLinearTrainer(client.LinearTrainerConfig{
			LearningRate: cfg.Protocol.LearningRate,
			BatchSize:    cfg.Protocol.BatchSize,
			Samples:      cfg.Client.Samples,
			Seed:         cfg.Client.Seed + uint64(i),
		})
		if err != nil {
			return err
		}

		ctrl := client.NewController(sdk, trainer, protector, clientID, logger,
			client.WithRetryInterval(cfg.Client.RetryInterval),
			client.WithTracer(tracer))

		logger.Info("Starting secure aggregation client",
			slog.String("client_id", clientID),
			slog.String("server_url", cfg.Client.ServerURL),
			slog.Int("rounds", cfg.Protocol.Rounds),
			slog.String("key_id", shareCipher.KeyID()))

		g.Go(func() error {
			return ctrl.Run(gctx, cfg.Protocol.Rounds)
		})
	}

	return g.Wait()
}

func configureLogger(level string) *slog.Logger {
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		log.Printf("Invalid log level: %s. Defaulting to info.\n", level)
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(logHandler)
}
