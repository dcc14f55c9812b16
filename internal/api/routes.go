package api

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"celebria/internal/design"
	"celebria/internal/rsvp"
	"celebria/internal/storage"
	"celebria/internal/worker"
)

// TaskEnqueuer 是 asynq.Client 中被 API 使用的部分。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ObjectStore 是 storage.Client 中被 API 使用的部分，测试里用内存实现替换。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	GeneratePresignedURLWithParams(ctx context.Context, objectKey string, duration time.Duration, params map[string]string) (string, error)
	ListObjects(ctx context.Context, prefix string, limit int) ([]storage.ObjectMeta, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

var _ ObjectStore = (*storage.Client)(nil)

// RenderSettings 控制日期解析、格式化与页面语言。
type RenderSettings struct {
	Location  *time.Location
	Formatter design.DateFormatter
	Lang      string
	Now       func() time.Time
}

func (s RenderSettings) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Deps 汇总路由所需的全部依赖。
type Deps struct {
	DB            *gorm.DB
	Queue         TaskEnqueuer
	Redis         *redis.Client
	Storage       ObjectStore
	Scanner       Scanner
	Logger        *slog.Logger
	Render        RenderSettings
	PublicBaseURL string
	// AllowedOrigins 同时用于 WebSocket 的 Origin 校验。
	AllowedOrigins []string
	Upload         UploadLimits
}

// RegisterRoutes 注册 API 路由。
func RegisterRoutes(router *gin.Engine, deps Deps) {
	var publisher worker.Publisher
	var fallback rsvp.FallbackStore = rsvp.NewMemoryStore()
	var counter redisRateCounter
	if deps.Redis != nil {
		publisher = deps.Redis
		fallback = rsvp.NewRedisStore(deps.Redis)
		counter = deps.Redis
	}

	publicHandler := NewPublicHandler(deps.DB, fallback, publisher, deps.Render, deps.Logger)
	invitationHandler := NewInvitationHandler(deps.DB, deps.Queue, deps.Storage, deps.Render, deps.PublicBaseURL)
	eventHandler := NewEventHandler(deps.DB)
	templateHandler := NewTemplateHandler(deps.DB, deps.Queue, deps.Storage)
	confirmationHandler := NewConfirmationHandler(deps.DB, fallback)
	assetHandler := NewAssetHandler(deps.DB, deps.Storage, deps.Scanner, counter, deps.Upload)

	router.GET("/i/:slug", publicHandler.Page)

	v1 := router.Group("/v1")
	{
		if deps.Redis != nil {
			wsHandler := NewWsHandler(deps.Redis, deps.Logger, deps.AllowedOrigins)
			v1.GET("/ws", wsHandler.HandleConnection)
		}

		public := v1.Group("/public/invitations/:slug")
		{
			public.GET("", publicHandler.Get)
			public.POST("/confirmations", publicHandler.Confirm)
			public.GET("/calendar.ics", publicHandler.Calendar)
		}

		events := v1.Group("/events")
		{
			events.POST("", eventHandler.Create)
			events.GET("/:id", eventHandler.Get)
			events.PUT("/:id", eventHandler.Update)
		}

		templates := v1.Group("/templates")
		{
			templates.GET("", templateHandler.ListTemplates)
			templates.POST("", templateHandler.CreateTemplate)
			templates.GET("/:id", templateHandler.GetTemplate)
			templates.PUT("/:id", templateHandler.UpdateTemplate)
		}

		invitations := v1.Group("/invitations")
		{
			invitations.POST("", invitationHandler.Create)
			invitations.GET("/:id", invitationHandler.Get)
			invitations.PUT("/:id/design", invitationHandler.UpdateDesign)
			invitations.POST("/:id/design/ops", invitationHandler.ApplyOps)
			invitations.GET("/:id/preview", invitationHandler.Preview)
			invitations.POST("/:id/link", invitationHandler.GenerateLink)
			invitations.POST("/:id/sync-event", invitationHandler.SyncEvent)
			invitations.POST("/:id/import-template", invitationHandler.ImportTemplate)
			invitations.POST("/:id/sections", invitationHandler.RouteSections)
			invitations.POST("/:id/preview-image", invitationHandler.EnqueuePreview)
			invitations.POST("/:id/pdf", invitationHandler.EnqueuePDF)
			invitations.GET("/:id/pdf", invitationHandler.DownloadPDF)
			invitations.GET("/:id/pdf/link", invitationHandler.PDFLink)

			invitations.GET("/:id/confirmations", confirmationHandler.List)

			invitations.POST("/:id/assets", assetHandler.UploadAsset)
			invitations.GET("/:id/assets", assetHandler.ListAssets)
			invitations.GET("/:id/assets/view", assetHandler.GetAssetURL)
			invitations.DELETE("/:id/assets", assetHandler.DeleteAsset)
		}

		confirmations := v1.Group("/confirmations")
		{
			confirmations.PUT("/:id", confirmationHandler.Update)
			confirmations.DELETE("/:id", confirmationHandler.Delete)
		}
	}
}
