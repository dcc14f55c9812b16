package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"

	"celebria/internal/api"
	"celebria/internal/config"
	"celebria/internal/database"
	"celebria/internal/design"
	"celebria/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("api bootstrapping",
		slog.String("db_host", cfg.Database.Host),
		slog.Int("db_port", cfg.Database.Port),
		slog.String("db_name", cfg.Database.Name),
		slog.String("locale", cfg.Render.Locale),
		slog.String("timezone", cfg.Render.Timezone),
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	logger.Info("database ready")

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer queue.Close()

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	loc, err := cfg.Render.Location()
	if err != nil {
		log.Fatalf("render timezone: %v", err)
	}
	tag := language.Make(cfg.Render.Locale)
	base, _ := tag.Base()

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, api.Deps{
		DB:      db,
		Queue:   queue,
		Redis:   redisClient,
		Storage: storageClient,
		Scanner: api.NewClamdScanner(cfg.Clamd.Addr),
		Logger:  logger,
		Render: api.RenderSettings{
			Location:  loc,
			Formatter: design.NewLocaleFormatter(cfg.Render.Locale, loc),
			Lang:      base.String(),
		},
		PublicBaseURL:  cfg.API.PublicBaseURL,
		AllowedOrigins: cfg.API.AllowedOrigins,
		Upload: api.UploadLimits{
			MaxBytes:  cfg.Upload.MaxBytes,
			MaxPerDay: cfg.Upload.MaxPerDay,
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           api.WithCORS(router, cfg.API.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start api server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("api shutdown failed", slog.Any("error", err))
	}
	logger.Info("api stopped")
}
