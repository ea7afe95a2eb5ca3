package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/atsocial/atsocial"
	"github.com/atsocial/atsocial/client"
	"github.com/atsocial/atsocial/internal/codec"
	"github.com/atsocial/atsocial/internal/config"
	"github.com/atsocial/atsocial/internal/discovery"
	"github.com/atsocial/atsocial/internal/infra/sessionstore"
	"github.com/atsocial/atsocial/internal/present/rest"
	restmiddleware "github.com/atsocial/atsocial/internal/present/rest/middleware"
	"github.com/atsocial/atsocial/internal/service"
	"github.com/atsocial/atsocial/internal/state"
	"github.com/atsocial/atsocial/internal/usecase"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found")
	}

	configPath := os.Getenv("ATSOCIAL_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	conf, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config",
			slog.String("path", configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if conf.Server.EnableTrace {
		shutdown, err := setupTracer(conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdown()
	}

	var rdb *redis.Client
	if conf.Server.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: conf.Server.RedisAddr,
			DB:   conf.Server.RedisDB,
		})
	}

	var store atsocial.SessionStore
	if rdb != nil {
		store = sessionstore.NewRedisStore(rdb)
	} else {
		path := conf.Host.SessionPath
		if path == "" {
			home, _ := os.UserHomeDir()
			path = filepath.Join(home, ".config", "atsocial", "session.json")
		}
		store = sessionstore.NewFileStore(path)
	}

	var clientOpts []client.Option
	if conf.Server.MemcachedAddr != "" {
		mc := memcache.New(conf.Server.MemcachedAddr)
		clientOpts = append(clientOpts, client.WithProfileCache(client.NewMemcachedCache(mc, 0)))
	}
	transport := client.New(conf.Host.ServiceURL, store, clientOpts...)

	var scheme codec.Codec
	switch conf.Host.Codec {
	case "typed":
		scheme = codec.NewTypedCodec()
	default:
		scheme = codec.NewMarkerCodec()
	}

	engine := discovery.NewEngine(transport, scheme, discovery.Options{
		TimelineLimit: conf.Discovery.TimelineLimit,
		ScanLimit:     conf.Discovery.ScanLimit,
		Concurrency:   conf.Discovery.Concurrency,
	})

	signal := service.NewSignalService(rdb)
	hub := state.NewHub()
	sig := usecase.Signals(signal, hub)

	sessions := usecase.NewSessionUsecase(transport)
	timeline := usecase.NewTimelineUsecase(transport, sig)
	groups := usecase.NewGroupUsecase(transport, scheme, engine, sig)
	pages := usecase.NewPageUsecase(transport, scheme, engine, sig)

	views := state.NewViews(hub, groups, pages, timeline, conf.Discovery.PageSize)

	handler := rest.NewHandler(sessions, timeline, groups, pages, views, signal)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("atsocial"))
	}
	e.Use(restmiddleware.NewSessionMiddleware(sessions).ResolveSession)
	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(conf.Server.Listen))
}

func setupTracer(endpoint string) (func(), error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{}
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", "atsocial"),
	))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			slog.Error("failed to shut down tracer", slog.String("error", err.Error()))
		}
	}, nil
}
