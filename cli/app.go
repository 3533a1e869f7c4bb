package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/shelf-labs/shelfsync"
	"github.com/shelf-labs/shelfsync/notify"
	shelfotel "github.com/shelf-labs/shelfsync/otel"
	"github.com/shelf-labs/shelfsync/session"
)

// newApp builds the composed client from the discovered config and the
// command's persistent flags. The returned cleanup closes every resource the
// builder opened; call it exactly once.
func newApp(cmd *cobra.Command) (*shelfsync.App, func(), error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger(cmd)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	credPath := cfg.CredentialsPath
	if credPath == "" {
		credPath, err = defaultCredentialsPath()
		if err != nil {
			return nil, nil, err
		}
	}
	creds, err := session.NewSQLiteStore(session.SQLiteStoreConfig{DSN: credPath})
	if err != nil {
		return nil, nil, fmt.Errorf("opening credential store: %w", err)
	}
	closers = append(closers, func() { _ = creds.Close() })

	var history notify.HistoryStore
	if cfg.HistoryPath != "" {
		sqliteHistory, err := notify.NewSQLiteHistory(notify.SQLiteHistoryConfig{
			DSN:            cfg.HistoryPath,
			RetentionCount: cfg.HistorySize,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("opening notification history: %w", err)
		}
		closers = append(closers, func() { _ = sqliteHistory.Close() })
		history = sqliteHistory
	}

	shutdownTelemetry, err := setupTelemetry(cmd.Context(), cfg.OTLPEndpoint)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	closers = append(closers, shutdownTelemetry)

	observer, err := shelfotel.NewCallObserver(
		otelapi.GetMeterProvider().Meter("shelfsync/api"),
		otelapi.GetTracerProvider().Tracer("shelfsync/api"),
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("initializing call observability: %w", err)
	}

	app, err := shelfsync.New(shelfsync.Config{
		BaseURL:     cfg.BaseURL,
		SocketURL:   cfg.SocketURL,
		Credentials: creds,
		Navigator: session.NavigatorFunc(func(route string) {
			logger.Debug("session navigation", "route", route)
		}),
		Observer:   observer,
		History:    history,
		RecentSize: cfg.HistorySize,
		Logger:     logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = app.Close() })

	if err := app.Start(cmd.Context()); err != nil {
		cleanup()
		return nil, nil, err
	}
	return app, cleanup, nil
}

func resolveConfig(cmd *cobra.Command) (Config, error) {
	explicitPath, _ := cmd.Flags().GetString("config")
	path, found, err := DiscoverConfigPath(explicitPath)
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	if found {
		cfg, err = LoadConfig(path)
		if err != nil {
			return Config{}, err
		}
	}

	if baseURL, _ := cmd.Flags().GetString("base-url"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if socketURL, _ := cmd.Flags().GetString("socket-url"); socketURL != "" {
		cfg.SocketURL = socketURL
	}
	if endpoint, _ := cmd.Flags().GetString("otlp-endpoint"); endpoint != "" {
		cfg.OTLPEndpoint = endpoint
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// setupTelemetry installs an OTLP trace exporter as the global tracer
// provider when an endpoint is configured. Without one the global no-op
// providers stay in place.
func setupTelemetry(ctx context.Context, endpoint string) (func(), error) {
	if endpoint == "" {
		return func() {}, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otelapi.SetTracerProvider(provider)

	return func() {
		_ = provider.Shutdown(context.Background())
	}, nil
}
