package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"celebria/internal/api/middleware"
	"celebria/internal/calendar"
	"celebria/internal/database"
	"celebria/internal/design"
	"celebria/internal/metrics"
	"celebria/internal/render"
	"celebria/internal/storage"
	"celebria/internal/tasks"
)

// InvitationHandler 负责组织者侧的邀请函编辑、预览与导出。
type InvitationHandler struct {
	db            *gorm.DB
	queue         TaskEnqueuer
	storage       ObjectStore
	settings      RenderSettings
	publicBaseURL string
}

func NewInvitationHandler(db *gorm.DB, queue TaskEnqueuer, storage ObjectStore, settings RenderSettings, publicBaseURL string) *InvitationHandler {
	return &InvitationHandler{
		db:            db,
		queue:         queue,
		storage:       storage,
		settings:      settings,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

type createInvitationRequest struct {
	Title      string `json:"title" binding:"required"`
	EventID    uint   `json:"eventId" binding:"required"`
	TemplateID *uint  `json:"templateId"`
}

type invitationResponse struct {
	ID         uint             `json:"id"`
	Title      string           `json:"title"`
	Slug       string           `json:"slug,omitempty"`
	Status     string           `json:"status"`
	TemplateID *uint            `json:"templateId,omitempty"`
	Event      design.EventInfo `json:"event"`
	Design     design.Document  `json:"design"`
	PreviewURL string           `json:"previewUrl,omitempty"`
	PDFReady   bool             `json:"pdfReady"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// POST /v1/invitations
func (h *InvitationHandler) Create(c *gin.Context) {
	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	var event database.Event
	if err := h.db.WithContext(ctx).First(&event, req.EventID).Error; err != nil {
		respondLoadError(c, err, "event")
		return
	}
	if req.TemplateID != nil {
		var tpl database.Template
		if err := h.db.WithContext(ctx).First(&tpl, *req.TemplateID).Error; err != nil {
			respondLoadError(c, err, "template")
			return
		}
	}

	inv := database.Invitation{
		Title:      strings.TrimSpace(req.Title),
		EventID:    event.ID,
		TemplateID: req.TemplateID,
		Status:     database.StatusDraft,
	}
	if err := h.db.WithContext(ctx).Create(&inv).Error; err != nil {
		Internal(c, "failed to create invitation")
		return
	}
	inv.Event = event
	h.respond(c, http.StatusCreated, inv)
}

// GET /v1/invitations/:id
func (h *InvitationHandler) Get(c *gin.Context) {
	inv, _, ok := h.load(c)
	if !ok {
		return
	}
	h.respond(c, http.StatusOK, inv)
}

func (h *InvitationHandler) respond(c *gin.Context, status int, inv database.Invitation) {
	ctx := c.Request.Context()
	doc, err := database.InvitationDesign(ctx, h.db, inv)
	if err != nil {
		respondLoadError(c, err, "design")
		return
	}
	resp := invitationResponse{
		ID:         inv.ID,
		Title:      inv.Title,
		Slug:       inv.SlugValue(),
		Status:     inv.Status,
		TemplateID: inv.TemplateID,
		Event:      inv.Event.Info(),
		Design:     doc,
		PDFReady:   inv.PDFObjectKey != "",
		UpdatedAt:  inv.UpdatedAt,
	}
	if inv.PreviewObjectKey != "" && h.storage != nil {
		if url, err := h.storage.GeneratePresignedURL(ctx, inv.PreviewObjectKey, 15*time.Minute); err == nil {
			resp.PreviewURL = url
		} else {
			middleware.LoggerFromContext(c).Warn("presign preview failed", slog.Any("error", err))
		}
	}
	c.JSON(status, resp)
}

func (h *InvitationHandler) load(c *gin.Context) (database.Invitation, design.Document, bool) {
	id, err := parseID(c, "id")
	if err != nil {
		respondLoadError(c, err, "invitation")
		return database.Invitation{}, design.Document{}, false
	}
	inv, doc, err := database.LoadInvitation(c.Request.Context(), h.db, id)
	if err != nil {
		respondLoadError(c, err, "invitation")
		return database.Invitation{}, design.Document{}, false
	}
	return inv, doc, true
}

// save 持久化设计并返回最新结果。
func (h *InvitationHandler) save(c *gin.Context, inv database.Invitation, doc design.Document) {
	raw, err := database.EncodeDesign(doc)
	if err != nil {
		Internal(c, "failed to encode design")
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Model(&inv).Update("custom_design", raw).Error; err != nil {
		middleware.LoggerFromContext(c).Error("save design failed", slog.Any("error", err))
		Internal(c, "failed to save design")
		return
	}
	inv.CustomDesign = raw
	h.respond(c, http.StatusOK, inv)
}

// PUT /v1/invitations/:id/design
// 整体替换设计文档。
func (h *InvitationHandler) UpdateDesign(c *gin.Context) {
	var doc design.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		BadRequest(c, err.Error())
		return
	}
	inv, _, ok := h.load(c)
	if !ok {
		return
	}
	h.save(c, inv, doc)
}

type applyOpsRequest struct {
	Ops []EditOp `json:"ops" binding:"required"`
}

// POST /v1/invitations/:id/design/ops
// 按顺序应用编辑操作；任一失败则整体不保存。
func (h *InvitationHandler) ApplyOps(c *gin.Context) {
	var req applyOpsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	inv, doc, ok := h.load(c)
	if !ok {
		return
	}
	for i, op := range req.Ops {
		next, err := op.Apply(doc)
		if err != nil {
			respondDesignError(c, fmt.Errorf("op %d (%s): %w", i, op.Op, err))
			return
		}
		doc = next
	}
	h.save(c, inv, doc)
}

// parseMode 同时接受编辑器用的简称和完整模式名。
func parseMode(raw string) (render.Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "preview", string(render.ModePreview):
		return render.ModePreview, true
	case "editor", string(render.ModeEditor):
		return render.ModeEditor, true
	case "public", string(render.ModePublic):
		return render.ModePublic, true
	}
	return "", false
}

// GET /v1/invitations/:id/preview?mode=editor&page=0&width=360&height=640
// 返回与公开页相同渲染器生成的 HTML，供编辑器画布与预览面板嵌入。
func (h *InvitationHandler) Preview(c *gin.Context) {
	mode, ok := parseMode(c.Query("mode"))
	if !ok {
		BadRequest(c, "invalid mode")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	viewport := render.DefaultViewport
	if w, err := strconv.ParseFloat(c.Query("width"), 64); err == nil && w > 0 {
		viewport.Width = w
	}
	if hgt, err := strconv.ParseFloat(c.Query("height"), 64); err == nil && hgt > 0 {
		viewport.Height = hgt
	}

	inv, doc, ok := h.load(c)
	if !ok {
		return
	}
	root := render.RenderDocument(doc, inv.Event.Info(), render.Options{
		Mode:     mode,
		Selected: page,
		Title:    inv.Title,
		Viewport: viewport,
		Location: h.settings.Location,
		Now:      h.settings.now(),
	})
	metrics.ObserveRender(string(mode))

	var buf bytes.Buffer
	if err := render.WritePage(c.Request.Context(), &buf, render.PageData{
		Title: inv.Title,
		Lang:  h.settings.Lang,
		Slug:  inv.SlugValue(),
		Root:  root,
	}); err != nil {
		middleware.LoggerFromContext(c).Error("render preview failed", slog.Any("error", err))
		Internal(c, "failed to render preview")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// newSlug 生成 "<标题>-<随机串>"，标题折叠为 ASCII 单词。
func newSlug(title string) string {
	base := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(foldAccents(title)), "-"), "-")
	if len(base) > 40 {
		base = strings.TrimRight(base[:40], "-")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

// foldAccents 拆出组合附加符号后去掉，"Fête" 变成 "Fete"。
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// POST /v1/invitations/:id/link
// 生成分享链接并发布邀请函；已有 slug 时原样返回。
func (h *InvitationHandler) GenerateLink(c *gin.Context) {
	inv, _, ok := h.load(c)
	if !ok {
		return
	}
	slug := inv.SlugValue()
	if slug == "" {
		slug = newSlug(inv.Title)
	}
	if err := h.db.WithContext(c.Request.Context()).Model(&inv).Updates(map[string]any{
		"slug":   slug,
		"status": database.StatusPublished,
	}).Error; err != nil {
		middleware.LoggerFromContext(c).Error("publish invitation failed", slog.Any("error", err))
		Internal(c, "failed to generate link")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"slug": slug,
		"url":  h.publicBaseURL + "/i/" + slug,
	})
}

type syncEventRequest struct {
	// Mode 为 inject（默认，已包含则跳过）或 resync（替换旧的活动信息）。
	Mode string `json:"mode"`
}

// POST /v1/invitations/:id/sync-event
func (h *InvitationHandler) SyncEvent(c *gin.Context) {
	var req syncEventRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			BadRequest(c, err.Error())
			return
		}
	}
	inv, doc, ok := h.load(c)
	if !ok {
		return
	}
	switch req.Mode {
	case "", "inject":
		doc = design.InjectEventDetails(doc, inv.Event.Info(), h.settings.Formatter)
	case "resync":
		doc = design.ResyncEventDetails(doc, inv.Event.Info(), h.settings.Formatter)
	default:
		BadRequest(c, "invalid mode")
		return
	}
	h.save(c, inv, doc)
}

type importTemplateRequest struct {
	TemplateID uint `json:"templateId" binding:"required"`
}

// POST /v1/invitations/:id/import-template
// 将模板的页面追加到当前设计之后。
func (h *InvitationHandler) ImportTemplate(c *gin.Context) {
	var req importTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	inv, doc, ok := h.load(c)
	if !ok {
		return
	}
	var tpl database.Template
	if err := h.db.WithContext(c.Request.Context()).First(&tpl, req.TemplateID).Error; err != nil {
		respondLoadError(c, err, "template")
		return
	}
	tplDoc, err := database.DecodeDesign(tpl.Design)
	if err != nil {
		Error(c, http.StatusUnprocessableEntity, "template design is invalid")
		return
	}
	h.save(c, inv, design.ImportTemplatePages(doc, tplDoc))
}

type routeSectionsRequest struct {
	Routing design.SectionRouting        `json:"routing"`
	Texts   map[design.SectionKey]string `json:"texts" binding:"required"`
}

// POST /v1/invitations/:id/sections
func (h *InvitationHandler) RouteSections(c *gin.Context) {
	var req routeSectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	for key := range req.Texts {
		if !key.Valid() {
			respondDesignError(c, fmt.Errorf("section %q: %w", key, design.ErrSectionKey))
			return
		}
	}
	inv, doc, ok := h.load(c)
	if !ok {
		return
	}
	next, err := design.RouteSections(doc, req.Routing, req.Texts)
	if err != nil {
		respondDesignError(c, err)
		return
	}
	h.save(c, inv, next)
}

// POST /v1/invitations/:id/preview-image
func (h *InvitationHandler) EnqueuePreview(c *gin.Context) {
	h.enqueue(c, tasks.NewInvitationPreviewTask)
}

// POST /v1/invitations/:id/pdf
func (h *InvitationHandler) EnqueuePDF(c *gin.Context) {
	h.enqueue(c, tasks.NewInvitationPDFTask)
}

func (h *InvitationHandler) enqueue(c *gin.Context, build func(uint, string) (*asynq.Task, error)) {
	inv, _, ok := h.load(c)
	if !ok {
		return
	}
	task, err := build(inv.ID, middleware.GetCorrelationID(c))
	if err != nil {
		Internal(c, "failed to create task")
		return
	}
	info, err := h.queue.EnqueueContext(c.Request.Context(), task, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute))
	if err != nil {
		middleware.LoggerFromContext(c).Error("enqueue task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue task")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message": "task accepted",
		"task_id": info.ID,
	})
}

func (h *InvitationHandler) pdfFileName(inv database.Invitation) string {
	return strings.TrimSuffix(calendar.FileName(inv.Title), ".ics") + ".pdf"
}

// GET /v1/invitations/:id/pdf/link
func (h *InvitationHandler) PDFLink(c *gin.Context) {
	inv, _, ok := h.load(c)
	if !ok {
		return
	}
	if inv.PDFObjectKey == "" {
		Conflict(c, "pdf not ready")
		return
	}
	url, err := h.storage.GeneratePresignedURLWithParams(c.Request.Context(), inv.PDFObjectKey, 5*time.Minute, map[string]string{
		"response-content-disposition": `attachment; filename="` + h.pdfFileName(inv) + `"`,
	})
	if err != nil {
		Internal(c, "failed to generate download link")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GET /v1/invitations/:id/pdf
// 直接从对象存储转发 PDF。
func (h *InvitationHandler) DownloadPDF(c *gin.Context) {
	inv, _, ok := h.load(c)
	if !ok {
		return
	}
	if inv.PDFObjectKey == "" {
		Conflict(c, "pdf not ready")
		return
	}
	obj, err := h.storage.GetObject(c.Request.Context(), inv.PDFObjectKey)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			NotFound(c, "pdf not found")
			return
		}
		Internal(c, "failed to read pdf")
		return
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			NotFound(c, "pdf not found")
			return
		}
		Internal(c, "failed to read pdf")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+h.pdfFileName(inv)+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}
