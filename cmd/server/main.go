package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/sirupsen/logrus"

	"cfsub/internal/config"
	"cfsub/internal/database"
	"cfsub/internal/server"
	"cfsub/internal/server/handlers"
	"cfsub/internal/server/middleware"
	"cfsub/internal/services"
)

func main() {
	log := logrus.New()

	// Load environment variables
	if err := config.Load(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	cfg := config.Current
	setupLogger(log, cfg)

	// Init DB
	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database connect failed")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	repo := database.NewCandidateStore(db)

	// Outbound clients
	scrapeClient, err := services.NewHTTPClient(30*time.Second, cfg.FetchProxy)
	if err != nil {
		log.WithError(err).Fatal("scrape client")
	}
	sourceClient, err := services.NewHTTPClient(cfg.SourceTimeout, cfg.FetchProxy)
	if err != nil {
		log.WithError(err).Fatal("source client")
	}

	seeds, err := services.LoadSeeds(cfg.SeedFile)
	if err != nil {
		log.WithError(err).Fatal("seed list")
	}

	feed := services.NewISPFeed(cfg.ISPFeedURL, scrapeClient, cfg.ISPFeedTTL, log)
	scraper := &services.Scraper{Seeds: seeds, URL: cfg.ScrapeURL, Client: scrapeClient, Log: log}
	if cfg.ISPFeedMerge {
		scraper.Extras = append(scraper.Extras, feed)
	}
	pipeline := &services.Pipeline{
		Source:    scraper,
		Prober:    services.NewProber(cfg.ProbePort, cfg.ProbeTimeout),
		Repo:      repo,
		BatchSize: cfg.ProbeBatchSize,
		Log:       log,
	}
	generator := &services.Generator{
		Repo:      repo,
		Refresher: pipeline,
		Loader:    &services.SourceLoader{Client: sourceClient, UserAgent: cfg.SourceUserAgent, Log: log},
		Shuffler:  services.DefaultShuffler,
		Log:       log,
	}

	// Template engine
	engine := html.New("web/templates", ".html")

	app := fiber.New(fiber.Config{
		Views:        engine,
		ViewsLayout:  "layout",
		ServerHeader: "cfsub",
		AppName:      "cfsub",
	})
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.AccessLog(log.WithField("component", "http")))

	// Setup routes
	server.RegisterRoutes(app, &handlers.Handler{
		Repo:       repo,
		Refresher:  pipeline,
		Subscriber: generator,
		Feed:       feed,
		Log:        log.WithField("component", "http"),
	}, server.RouteOptions{
		AdminSecret:         cfg.AdminJWTSecret,
		SubscribeRatePerMin: cfg.SubscribeRatePerMin,
	})

	// start background jobs
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	refresherDone := services.StartRefresher(ctx, pipeline, repo, cfg.RefreshInterval, log)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Warn("http shutdown")
		}
	}()

	log.WithField("port", cfg.Port).Info("server listening")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("server failed")
	}
	<-refresherDone
}

func setupLogger(log *logrus.Logger, cfg config.Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
}
