package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"celebria/internal/database"
	"celebria/internal/errcode"
	"celebria/internal/pdf"
	"celebria/internal/storage"
	"celebria/internal/tasks"
)

const (
	previewQuality = 80
	presignTTL     = 7 * 24 * time.Hour
)

// Capturer 在无头浏览器中渲染 HTML。
type Capturer interface {
	PDF(ctx context.Context, htmlContent string, vp pdf.Viewport, paper pdf.Paper) ([]byte, error)
	Screenshot(ctx context.Context, htmlContent string, vp pdf.Viewport, selector string, quality int) ([]byte, error)
}

// ObjectStore 是 worker 使用的存储子集。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

var _ ObjectStore = (*storage.Client)(nil)

// InvitationTaskHandler 负责消费邀请函预览截图与 PDF 导出任务。
type InvitationTaskHandler struct {
	db        *gorm.DB
	storage   ObjectStore
	capturer  Capturer
	publisher Publisher
	logger    *slog.Logger
	location  *time.Location
	now       func() time.Time
}

// NewInvitationTaskHandler 创建任务处理器。
func NewInvitationTaskHandler(
	db *gorm.DB,
	storage ObjectStore,
	capturer Capturer,
	publisher Publisher,
	logger *slog.Logger,
	location *time.Location,
) *InvitationTaskHandler {
	if location == nil {
		location = time.UTC
	}
	return &InvitationTaskHandler{
		db:        db,
		storage:   storage,
		capturer:  capturer,
		publisher: publisher,
		logger:    logger,
		location:  location,
		now:       time.Now,
	}
}

// ProcessTask 实现 asynq.Handler，按任务类型分派。
func (h *InvitationTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	kind := NotifyPreview
	if t.Type() == tasks.TypeInvitationPDF {
		kind = NotifyPDF
	}
	log := h.logger.With(slog.String("task_type", t.Type()))

	var payload tasks.InvitationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("invitation_id", uint64(payload.InvitationID)),
	)
	log.Info("starting invitation capture task")

	inv, doc, err := database.LoadInvitation(ctx, h.db, payload.InvitationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("invitation not found, skipping task")
			return nil
		}
		if errors.Is(err, database.ErrInvalidDesign) {
			log.Error("stored design is invalid", slog.Any("error", err))
			notify := NotifyMessage{
				Kind:          kind,
				Status:        "error",
				InvitationID:  payload.InvitationID,
				CorrelationID: payload.CorrelationID,
				ErrorCode:     errcode.InvalidDesign,
				ErrorMessage:  "el diseño guardado no es válido",
			}
			if err := Publish(ctx, h.publisher, notify); err != nil {
				log.Error("publish error notification failed", slog.Any("error", err))
			}
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		log.Error("load invitation failed", slog.Any("error", err))
		return err
	}

	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		notify := NotifyMessage{
			Kind:          kind,
			Status:        "error",
			InvitationID:  inv.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := Publish(ctx, h.publisher, notify); err != nil {
			log.Error("publish error notification failed", slog.Any("error", err))
		}
	}()

	snap, err := buildSnapshot(ctx, doc, inv.Event.Info(), inv.Title, h.location, h.now())
	if err != nil {
		log.Error("render invitation failed", slog.Any("error", err))
		return err
	}

	var (
		data        []byte
		objectName  string
		previous    string
		contentType string
		column      string
	)
	switch kind {
	case NotifyPDF:
		data, err = h.capturer.PDF(ctx, snap.HTML, snap.Viewport, snap.Paper)
		objectName = storage.PDFPrefix(inv.ID) + uuid.NewString() + ".pdf"
		previous = inv.PDFObjectKey
		contentType = "application/pdf"
		column = "pdf_object_key"
	default:
		data, err = h.capturer.Screenshot(ctx, snap.HTML, snap.Viewport, FrameSelector, previewQuality)
		objectName = storage.PreviewPrefix(inv.ID) + uuid.NewString() + ".jpg"
		previous = inv.PreviewObjectKey
		contentType = "image/jpeg"
		column = "preview_object_key"
	}
	if err != nil {
		log.Error("headless capture failed", slog.Any("error", err))
		return err
	}

	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		log.Error("upload artifact failed", slog.Any("error", err))
		return err
	}
	if err := h.db.WithContext(ctx).Model(&inv).Update(column, objectName).Error; err != nil {
		log.Error("update invitation failed", slog.Any("error", err))
		return err
	}
	// 新产物落库后再删旧的，失败时旧文件仍可用
	if previous != "" && previous != objectName {
		if err := h.storage.DeleteObject(ctx, previous); err != nil {
			log.Warn("delete previous artifact failed", slog.String("object_key", previous), slog.Any("error", err))
		}
	}

	notify := NotifyMessage{
		Kind:          kind,
		Status:        "completed",
		InvitationID:  inv.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if url, err := h.storage.GeneratePresignedURL(ctx, objectName, presignTTL); err == nil {
		notify.URL = url
	} else {
		log.Warn("presign artifact failed", slog.Any("error", err))
	}
	if len(doc.Pages) == 0 {
		notify.ErrorCode = errcode.ResourceMissing
		notify.ErrorMessage = "la invitación no tiene páginas; se usó la portada por defecto"
	}
	if err := Publish(ctx, h.publisher, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("invitation capture task completed", slog.String("object_key", objectName))
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
