package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickerfeed/internal/bot"
	"tickerfeed/internal/cache"
	"tickerfeed/internal/catalog"
	"tickerfeed/internal/classify"
	"tickerfeed/internal/config"
	"tickerfeed/internal/db"
	"tickerfeed/internal/domain"
	"tickerfeed/internal/enrich"
	"tickerfeed/internal/fetch"
	"tickerfeed/internal/handler"
	"tickerfeed/internal/job"
	"tickerfeed/internal/provider"
	"tickerfeed/internal/repository"
	"tickerfeed/internal/router"
	"tickerfeed/internal/twitter"
	"tickerfeed/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newTickerRepoFunc      = repository.NewTickerRepository
	newMentionRepoFunc     = repository.NewMentionRepository
	newPortfolioRepoFunc   = repository.NewPortfolioRepository
	loadCatalogFunc        = func(ctx context.Context, c *catalog.Catalog) error { return c.Load(ctx) }
	startDiscordBotFunc    = bot.StartDiscordBot
	startPollerFunc        = func(p *job.TimelinePoller, ctx context.Context) { go p.Start(ctx) }
	startOverviewFunc      = func(j *job.OverviewJob, ctx context.Context) { go j.Start(ctx) }
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Create repositories and run migrations. Without Postgres the pipeline
	// still runs; classification and mentions just stay in-process.
	tickerRepo := newTickerRepoFunc(db.Pool, tracer)
	mentionRepo := newMentionRepoFunc(db.Pool, tracer)
	portfolioRepo := newPortfolioRepoFunc(db.Pool, tracer)

	var (
		tickerStore     enrich.TickerStore
		mentionStore    job.MentionStore
		mentionQuerier  handler.MentionQuerier
		portfolioStore  bot.PortfolioStore
		portfolioLookup router.PortfolioLookup
	)
	if db.Pool != nil {
		if err := tickerRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		if err := mentionRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		if err := portfolioRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		if err := tickerRepo.PurgeOlderThan(ctx, 3); err != nil {
			log.Printf("failed to purge stale tickers: %v", err)
		}
		tickerStore = tickerRepo
		mentionStore = mentionRepo
		mentionQuerier = mentionRepo
		portfolioStore = portfolioRepo
		portfolioLookup = portfolioRepo
	}

	// Load the coin catalog; on failure resolution falls back to symbol search.
	cat := catalog.New(tracer)
	if err := loadCatalogFunc(ctx, cat); err != nil {
		log.Printf("failed to load coin catalog: %v", err)
	}

	// Providers and the resolution pipeline
	cgProvider := provider.NewCoinGeckoProvider(tracer, cat)
	hours, err := provider.NewMarketHours(cfg.MarketTimezone, cfg.MarketOpenHHMM, cfg.MarketCloseHHMM)
	if err != nil {
		log.Fatalf("invalid market hours config: %v", err)
	}
	stockProvider := provider.NewStockProvider(tracer, hours)
	gateway := provider.NewQuoteGateway(tracer)
	resolver := enrich.NewResolver(tracer, cgProvider, stockProvider, gateway, tickerStore, enrich.NewRedisQuoteCache(cache.Client))

	var sentiment classify.SentimentClassifier = classify.NewLexiconClassifier()
	if cfg.OpenAIAPIKey != "" {
		sentiment = classify.NewOpenAIClassifier(tracer, classify.NewOpenAIClient(cfg.OpenAIAPIKey), cfg.OpenAIModel, nil)
	}
	charts := classify.NewHeuristicChartClassifier(tracer, fetch.New(tracer))
	enricher := enrich.NewService(tracer, resolver, sentiment)
	rt := router.New(tracer, cfg, portfolioLookup)

	// Start Discord bot
	discordBot := startDiscordBotFunc(tracer, cfg.DiscordBotToken, cfg.ChannelWebhooks, resolver, portfolioStore)

	// Background jobs (stopped by ctx cancel)
	source := twitter.NewTimelineSource(cfg.TimelineRequestFile, tracer)
	poller := job.NewTimelinePoller(tracer, source, enricher, rt, charts, mentionStore, discordBot, job.NewRedisWatermark(cache.Client), cfg.TimelinePollSecs)
	overview := job.NewOverviewJob(tracer, mentionRepo, discordBot, job.NewRedisMessageMemory(cache.Client), map[domain.Category]string{
		domain.CategoryCrypto: cfg.Channels.CryptoOverview,
		domain.CategoryStocks: cfg.Channels.StocksOverview,
		domain.CategoryForex:  cfg.Channels.ForexOverview,
	}, cfg.OverviewPollSecs)

	if discordBot != nil {
		startPollerFunc(poller, ctx)
		if db.Pool != nil {
			startOverviewFunc(overview, ctx)
		}
	} else {
		log.Println("Discord bot not configured, timeline poller disabled")
	}

	// Create handlers and routes
	h := handler.New(tracer, mentionQuerier, resolver, poller)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("tickerfeed"))

	h.RegisterRoutes(r, cfg.APIKey)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
