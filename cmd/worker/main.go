package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"celebria/internal/config"
	"celebria/internal/database"
	"celebria/internal/metrics"
	"celebria/internal/pdf"
	"celebria/internal/storage"
	"celebria/internal/tasks"
	"celebria/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	loc, err := cfg.Render.Location()
	if err != nil {
		log.Fatalf("render timezone: %v", err)
	}

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

	browser, err := pdf.Launch(logger)
	if err != nil {
		log.Fatalf("launch browser: %v", err)
	}
	defer browser.Close()

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	invitationHandler := worker.NewInvitationTaskHandler(db, storageClient, browser, redisClient, logger, loc)
	templateHandler := worker.NewTemplatePreviewHandler(db, storageClient, browser, logger, loc)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeInvitationPreview, invitationHandler)
	mux.Handle(tasks.TypeInvitationPDF, invitationHandler)
	mux.Handle(tasks.TypeTemplatePreview, templateHandler)

	logger.Info("worker service started",
		slog.String("redis_addr", redisAddr),
		slog.Int("concurrency", cfg.Worker.Concurrency),
	)
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
