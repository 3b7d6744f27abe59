package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/octobees/contact-crawler/internal/audit"
	"github.com/octobees/contact-crawler/internal/cache"
	"github.com/octobees/contact-crawler/internal/config"
	"github.com/octobees/contact-crawler/internal/crawler"
	"github.com/octobees/contact-crawler/internal/database"
	"github.com/octobees/contact-crawler/internal/handler"
	"github.com/octobees/contact-crawler/internal/monitoring"
	"github.com/octobees/contact-crawler/internal/queue"
	"github.com/octobees/contact-crawler/internal/repository"
	"github.com/octobees/contact-crawler/internal/service"
	"github.com/octobees/contact-crawler/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	broker := queue.NewBroker(redisClient)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer startupCancel()
	if err := broker.Ping(startupCtx); err != nil {
		log.Fatalf("failed to reach redis: %v", err)
	}

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	crawlerOpts := []crawler.SiteCrawlerOption{
		crawler.WithSiteMetrics(metrics),
		crawler.WithBetweenRequests(cfg.Crawl.BetweenRequests),
	}
	if cfg.Crawl.EnableCache {
		crawlerOpts = append(crawlerOpts, crawler.WithPageCache(cache.NewPageCache(redisClient, 0)))
	}

	siteCrawler := crawler.NewSiteCrawler(
		crawler.NewSafeURLGate(),
		crawler.NewRobotsCache(cfg.Crawl.BotName),
		crawler.NewLimiter(cfg.Crawl.GlobalConcurrency, cfg.Crawl.PerHostMinTime, cfg.Crawl.PerHostMaxConcurrent),
		crawler.NewFetcher(cfg.Crawl.BotName, cfg.Crawl.RequestTimeout, cfg.Crawl.MaxRetries),
		service.NewEmailClassifier(cfg.Crawl.EnableMXCheck),
		service.NewDNCList(),
		service.DefaultTOSList(),
		crawlerOpts...,
	)

	runnerOpts := []worker.RunnerOption{worker.WithRunnerMetrics(metrics)}

	auditLog, err := audit.NewLogger(cfg.AuditLogPath)
	if err != nil {
		log.Fatalf("failed to open audit log: %v", err)
	}
	if auditLog != nil {
		defer auditLog.Close()
		runnerOpts = append(runnerOpts, worker.WithAuditLog(auditLog))
	}

	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(startupCtx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
		defer pool.Close()
		runnerOpts = append(runnerOpts, worker.WithRecordSink(repository.NewPGXRecordsRepository(pool)))
	}

	runner := worker.NewRunner(broker, siteCrawler, runnerOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echoMiddleware.Recover())
	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "worker healthy", map[string]any{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	go func() {
		if err := e.Start(":" + cfg.MetricsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()

	log.Printf("worker started concurrency=%d metricsPort=%s", cfg.WorkerConcurrency, cfg.MetricsPort)

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.WorkerConcurrency; i++ {
		group.Go(func() error {
			return runner.Run(groupCtx)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("worker stopped: %v", err)
	} else {
		log.Print("worker stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown failed: %v", err)
	}
}
