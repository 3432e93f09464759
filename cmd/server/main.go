package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/absmach/secagg"
	"github.com/absmach/secagg/manager"
	"github.com/absmach/secagg/manager/api"
	"github.com/absmach/secagg/pkg/mqtt"
	"github.com/absmach/secagg/pkg/protect"
	"github.com/absmach/secagg/pkg/tracing"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	svcName         = "secagg-manager"
	shutdownTimeout = 10 * time.Second
)

var (
	configPath string
	logLevel   slog.Level
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	flag.StringVar(&configPath, "config", os.Getenv("SECAGG_CONFIG"), "Path to the TOML configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := secagg.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := configureLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	instanceID := uuid.NewString()

	tp, err := tracing.NewProvider(ctx, svcName, cfg.Server.JaegerURL, instanceID, cfg.Server.TraceRatio)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}

	shareCipher, err := cfg.ShareCipher()
	if err != nil {
		return fmt.Errorf("failed to build share cipher: %w", err)
	}

	params, err := cfg.ProtectParams()
	if err != nil {
		return err
	}
	// The server only recovers vectors; noising happens on the clients.
	params.Sensitivity, params.Epsilon = 0, 0
	recoverer, err := protect.New(params, shareCipher)
	if err != nil {
		return fmt.Errorf("failed to build share recoverer: %w", err)
	}

	var publisher manager.Publisher
	if cfg.Server.MQTTURL != "" {
		ps, err := mqtt.NewPubSub(mqtt.Config{
			URL:         cfg.Server.MQTTURL,
			ClientID:    cfg.Server.MQTTClientID,
			Username:    cfg.Server.MQTTUsername,
			Password:    cfg.Server.MQTTPassword,
			QoS:         1,
			Timeout:     cfg.Server.MQTTTimeout,
			StatusTopic: cfg.Server.MQTTTopic + "/status",
			CACert:      cfg.Server.MQTTCACert,
			ClientCert:  cfg.Server.MQTTClientCert,
			ClientKey:   cfg.Server.MQTTClientKey,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		defer func() {
			if err := ps.Disconnect(context.Background()); err != nil {
				logger.Warn("Failed to disconnect from MQTT broker", slog.Any("error", err))
			}
		}()

		publisher, err = mqtt.NewEventPublisher(ps, cfg.Server.MQTTTopic)
		if err != nil {
			return err
		}
	}

	svc, err := manager.NewService(manager.Config{
		AggregationGoal: cfg.Protocol.AggregationGoal,
		ModelDim:        cfg.Protocol.ModelDim,
		History:         cfg.Server.ModelHistory,
	}, recoverer, nil, publisher, logger)
	if err != nil {
		return fmt.Errorf("service initialization error: %w", err)
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           api.MakeHandler(svc, logger, instanceID),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info("Starting secure aggregation server",
		slog.String("instance_id", instanceID),
		slog.String("address", server.Addr),
		slog.Int("aggregation_goal", cfg.Protocol.AggregationGoal),
		slog.Int("num_shares", cfg.Protocol.NumShares),
		slog.Int("threshold", cfg.Protocol.Threshold),
		slog.String("scheme", cfg.Protocol.Scheme),
		slog.String("cipher", shareCipher.Algorithm()),
		slog.String("key_id", shareCipher.KeyID()),
		slog.Bool("tracing", tp.Enabled()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}

		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down secure aggregation server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return errors.Join(server.Shutdown(shutdownCtx), tp.Shutdown(shutdownCtx))
	})

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
