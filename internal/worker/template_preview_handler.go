package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"celebria/internal/database"
	"celebria/internal/design"
	"celebria/internal/storage"
	"celebria/internal/tasks"
)

// TemplatePreviewHandler 负责模板缩略图生成任务。
type TemplatePreviewHandler struct {
	db       *gorm.DB
	storage  ObjectStore
	capturer Capturer
	logger   *slog.Logger
	location *time.Location
}

func NewTemplatePreviewHandler(
	db *gorm.DB,
	storageClient ObjectStore,
	capturer Capturer,
	logger *slog.Logger,
	location *time.Location,
) *TemplatePreviewHandler {
	if location == nil {
		location = time.UTC
	}
	return &TemplatePreviewHandler{
		db:       db,
		storage:  storageClient,
		capturer: capturer,
		logger:   logger,
		location: location,
	}
}

func (h *TemplatePreviewHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	log := h.logger

	var payload tasks.TemplatePreviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal template preview payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	log = log.With(
		slog.Uint64("template_id", uint64(payload.TemplateID)),
		slog.String("correlation_id", payload.CorrelationID),
	)
	log.Info("starting template preview task")

	var tpl database.Template
	if err := h.db.WithContext(ctx).First(&tpl, payload.TemplateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("template not found, skipping task")
			return nil
		}
		log.Error("query template failed", slog.Any("error", err))
		return err
	}

	doc, err := database.DecodeDesign(tpl.Design)
	if err != nil {
		log.Error("decode template design failed", slog.Any("error", err))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	// 模板没有真实活动，用标题占位
	snap, err := buildSnapshot(ctx, doc, design.EventInfo{Title: tpl.Title}, tpl.Title, h.location, time.Now())
	if err != nil {
		log.Error("render template failed", slog.Any("error", err))
		return err
	}

	previewBytes, err := h.capturer.Screenshot(ctx, snap.HTML, snap.Viewport, FrameSelector, previewQuality)
	if err != nil {
		log.Error("capture template screenshot failed", slog.Any("error", err))
		return err
	}

	previous := tpl.PreviewObjectKey
	objectName := storage.TemplatePreviewPrefix(tpl.ID) + uuid.NewString() + ".jpg"
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(previewBytes), int64(len(previewBytes)), "image/jpeg"); err != nil {
		log.Error("upload template preview failed", slog.Any("error", err))
		return err
	}

	if err := h.db.WithContext(ctx).
		Model(&tpl).
		Update("preview_object_key", objectName).Error; err != nil {
		log.Error("update template preview key failed", slog.Any("error", err))
		return err
	}
	if previous != "" && previous != objectName {
		if err := h.storage.DeleteObject(ctx, previous); err != nil {
			log.Warn("delete previous template preview failed", slog.String("object_key", previous), slog.Any("error", err))
		}
	}

	log.Info("template preview task completed")
	return nil
}
