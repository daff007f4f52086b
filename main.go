package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annazecevic/song-service/config"
	"github.com/annazecevic/song-service/handler"
	"github.com/annazecevic/song-service/logger"
	"github.com/annazecevic/song-service/metrics"
	"github.com/annazecevic/song-service/middleware"
	"github.com/annazecevic/song-service/repository"
	"github.com/annazecevic/song-service/seed"
	"github.com/annazecevic/song-service/service"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	serviceName     = "song-service"
	shutdownTimeout = 15 * time.Second
	maxBodyBytes    = 1 << 20
)

func main() {
	app := &cli.App{
		Name:  serviceName,
		Usage: "Song catalog and rating API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Value:   ".env",
				Usage:   "dotenv file loaded before reading the environment",
				EnvVars: []string{"SONG_SERVICE_ENV_FILE"},
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "import the seed file if needed and serve the HTTP API",
				Action: serveAction,
			},
			{
				Name:  "seed",
				Usage: "import songs into an empty catalog and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "newline-delimited JSON file with one song per line (defaults to SEED_FILE)",
					},
				},
				Action: seedAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func bootstrap(c *cli.Context) *config.Config {
	cfg := config.LoadConfig(c.String("env-file"))

	logger.Init(logger.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		LogFilePath: cfg.LogFilePath,
		MaxSizeMB:   cfg.LogMaxSizeMB,
		MaxBackups:  cfg.LogMaxBackups,
		MaxAgeDays:  cfg.LogMaxAgeDays,
	})

	return cfg
}

func connect(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetTimeout(cfg.MongoTimeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		logger.Error(logger.EventDBError, "Failed to connect to MongoDB", logger.Fields(
			"error", err.Error(),
			"mongo_uri", cfg.MongoURI,
		))
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		logger.Error(logger.EventDBError, "Failed to ping MongoDB", logger.Fields("error", err.Error()))
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info(logger.EventDBConnection, "Connected to MongoDB successfully", logger.Fields(
		"database", cfg.MongoDatabase,
	))
	return client, nil
}

func disconnect(client *mongo.Client) {
	if err := client.Disconnect(context.Background()); err != nil {
		logger.Error(logger.EventDBError, "Error disconnecting from MongoDB", logger.Fields("error", err.Error()))
	}
}

func seedAction(c *cli.Context) error {
	cfg := bootstrap(c)
	defer logger.GetLogger().Sync()

	path := c.String("file")
	if path == "" {
		path = cfg.SeedFile
	}

	client, err := connect(c.Context, cfg)
	if err != nil {
		return err
	}
	defer disconnect(client)

	db := client.Database(cfg.MongoDatabase)
	loader := seed.NewLoader(repository.NewSongRepository(db), repository.NewRatingRepository(db), nil)

	inserted, err := loader.Run(c.Context, path)
	if err != nil {
		logger.Error(logger.EventSeedImport, "Seed import failed", logger.Fields(
			"file", path,
			"error", err.Error(),
		))
		return err
	}

	fmt.Printf("Loaded %d songs into the database\n", inserted)
	return nil
}

func serveAction(c *cli.Context) error {
	cfg := bootstrap(c)
	defer logger.GetLogger().Sync()

	logger.Info(logger.EventServiceStartup, "Song service starting", logger.Fields(
		"port", cfg.ServerPort,
		"environment", cfg.Environment,
	))

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer disconnect(client)

	db := client.Database(cfg.MongoDatabase)
	m := metrics.NewMetrics()

	songRepo := repository.NewSongRepository(db)
	ratingRepo := repository.NewRatingRepository(db)

	_, err = seed.NewLoader(songRepo, ratingRepo, m).Run(ctx, cfg.SeedFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn(logger.EventSeedImport, "Seed file not found, skipping import", logger.Fields("file", cfg.SeedFile))
	case err != nil:
		return err
	}

	songService := service.NewSongService(songRepo, ratingRepo, cfg.SongsPerPage)
	songHandler := handler.NewSongHandler(songService, m)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = false

	zl := logger.GetLogger().Zap()
	router.Use(ginzap.Ginzap(zl, time.RFC3339, true))
	router.Use(ginzap.CustomRecoveryWithZap(zl, !cfg.IsProduction(), func(c *gin.Context, recovered any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}))
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodyLimit(maxBodyBytes))
	router.Use(middleware.Metrics(m))

	if cfg.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
		go limiter.Cleanup(ctx, time.Minute)
		router.Use(limiter.Middleware())
	}

	songHandler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info(logger.EventServiceStartup, "Server starting", logger.Fields("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error(logger.EventGeneral, "Failed to start server", logger.Fields("error", err.Error()))
			return err
		}
	case <-ctx.Done():
	}

	logger.Info(logger.EventServiceShutdown, "Song service shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(logger.EventServiceShutdown, "Graceful shutdown failed", logger.Fields("error", err.Error()))
		return err
	}

	return nil
}
