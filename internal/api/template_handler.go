package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"celebria/internal/api/middleware"
	"celebria/internal/database"
	"celebria/internal/design"
	"celebria/internal/tasks"
)

// TemplateHandler 负责模板相关的 API。
type TemplateHandler struct {
	db      *gorm.DB
	queue   TaskEnqueuer
	storage ObjectStore
}

func NewTemplateHandler(db *gorm.DB, queue TaskEnqueuer, storage ObjectStore) *TemplateHandler {
	return &TemplateHandler{db: db, queue: queue, storage: storage}
}

type templateRequest struct {
	Title    string          `json:"title" binding:"required"`
	Design   design.Document `json:"design"`
	IsPublic bool            `json:"isPublic"`
}

type templateListItem struct {
	ID         uint   `json:"id"`
	Title      string `json:"title"`
	Pages      int    `json:"pages"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

type templateDetailResponse struct {
	ID         uint            `json:"id"`
	Title      string          `json:"title"`
	Design     design.Document `json:"design"`
	IsPublic   bool            `json:"isPublic"`
	PreviewURL string          `json:"previewUrl,omitempty"`
}

// POST /v1/templates
// 创建模板并异步生成预览图。
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	raw, err := database.EncodeDesign(req.Design)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	model := database.Template{
		Title:    req.Title,
		Design:   raw,
		IsPublic: req.IsPublic,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&model).Error; err != nil {
		Internal(c, "failed to create template")
		return
	}
	h.enqueuePreview(c, model.ID)

	c.JSON(http.StatusCreated, gin.H{
		"id":    model.ID,
		"title": model.Title,
	})
}

// GET /v1/templates
// 列表：仅返回公开模板。
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	var templates []database.Template
	if err := h.db.WithContext(c.Request.Context()).
		Where("is_public = ?", true).
		Order("updated_at DESC").
		Find(&templates).Error; err != nil {
		Internal(c, "failed to list templates")
		return
	}

	items := make([]templateListItem, 0, len(templates))
	for _, t := range templates {
		doc, err := database.DecodeDesign(t.Design)
		if err != nil {
			middleware.LoggerFromContext(c).Warn("skip template with invalid design",
				slog.Uint64("template_id", uint64(t.ID)), slog.Any("error", err))
			continue
		}
		items = append(items, templateListItem{
			ID:         t.ID,
			Title:      t.Title,
			Pages:      len(doc.Pages),
			PreviewURL: h.previewURL(c, t.PreviewObjectKey),
		})
	}
	c.JSON(http.StatusOK, items)
}

// GET /v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	model, ok := h.load(c)
	if !ok {
		return
	}
	doc, err := database.DecodeDesign(model.Design)
	if err != nil {
		Error(c, http.StatusUnprocessableEntity, "template design is invalid")
		return
	}
	c.JSON(http.StatusOK, templateDetailResponse{
		ID:         model.ID,
		Title:      model.Title,
		Design:     doc,
		IsPublic:   model.IsPublic,
		PreviewURL: h.previewURL(c, model.PreviewObjectKey),
	})
}

// PUT /v1/templates/:id
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	model, ok := h.load(c)
	if !ok {
		return
	}
	raw, err := database.EncodeDesign(req.Design)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(&model).Updates(map[string]any{
		"title":     req.Title,
		"design":    raw,
		"is_public": req.IsPublic,
	}).Error; err != nil {
		Internal(c, "failed to update template")
		return
	}
	h.enqueuePreview(c, model.ID)

	c.JSON(http.StatusOK, gin.H{
		"id":    model.ID,
		"title": req.Title,
	})
}

func (h *TemplateHandler) load(c *gin.Context) (database.Template, bool) {
	var model database.Template
	id, err := parseID(c, "id")
	if err == nil {
		err = h.db.WithContext(c.Request.Context()).First(&model, id).Error
	}
	if err != nil {
		respondLoadError(c, err, "template")
		return model, false
	}
	return model, true
}

// enqueuePreview 失败只记录日志，不影响模板保存。
func (h *TemplateHandler) enqueuePreview(c *gin.Context, id uint) {
	if h.queue == nil {
		return
	}
	log := middleware.LoggerFromContext(c)
	task, err := tasks.NewTemplatePreviewTask(id, middleware.GetCorrelationID(c))
	if err != nil {
		log.Warn("create template preview task failed", slog.Any("error", err))
		return
	}
	if _, err := h.queue.EnqueueContext(c.Request.Context(), task, asynq.MaxRetry(2), asynq.Timeout(time.Minute)); err != nil {
		log.Warn("enqueue template preview failed", slog.Any("error", err))
	}
}

func (h *TemplateHandler) previewURL(c *gin.Context, key string) string {
	if key == "" || h.storage == nil {
		return ""
	}
	url, err := h.storage.GeneratePresignedURL(c.Request.Context(), key, 15*time.Minute)
	if err != nil {
		return ""
	}
	return url
}
