package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"tickerfeed/internal/bot"
	"tickerfeed/internal/catalog"
	"tickerfeed/internal/config"
	"tickerfeed/internal/enrich"
	"tickerfeed/internal/job"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps()
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func stubServerDeps() func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origLoadCatalog := loadCatalogFunc
	origStartDiscord := startDiscordBotFunc
	origStartPoller := startPollerFunc
	origStartOverview := startOverviewFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{
			RedisURL:         "",
			DatabaseURL:      "",
			TimelinePollSecs: 1,
			OverviewPollSecs: 1,
			MarketTimezone:   "UTC",
			MarketOpenHHMM:   "09:30",
			MarketCloseHHMM:  "16:00",
		}
	}
	initPostgresFunc = func(context.Context, string) {}
	initRedisFunc = func(context.Context, string) {}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	loadCatalogFunc = func(context.Context, *catalog.Catalog) error { return nil }
	startDiscordBotFunc = func(trace.Tracer, string, map[string]string, *enrich.Resolver, bot.PortfolioStore) *bot.Bot {
		return nil
	}
	startPollerFunc = func(*job.TimelinePoller, context.Context) {}
	startOverviewFunc = func(*job.OverviewJob, context.Context) {}
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(*http.Server) error { return http.ErrServerClosed }
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		loadCatalogFunc = origLoadCatalog
		startDiscordBotFunc = origStartDiscord
		startPollerFunc = origStartPoller
		startOverviewFunc = origStartOverview
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}
