package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"celebria/internal/api/middleware"
	"celebria/internal/calendar"
	"celebria/internal/database"
	"celebria/internal/design"
	"celebria/internal/metrics"
	"celebria/internal/render"
	"celebria/internal/rsvp"
	"celebria/internal/worker"
)

// PublicHandler 提供宾客可见的邀请函页面与出席确认。
type PublicHandler struct {
	db        *gorm.DB
	fallback  rsvp.FallbackStore
	publisher worker.Publisher
	settings  RenderSettings
	logger    *slog.Logger
}

func NewPublicHandler(db *gorm.DB, fallback rsvp.FallbackStore, publisher worker.Publisher, settings RenderSettings, logger *slog.Logger) *PublicHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublicHandler{
		db:        db,
		fallback:  fallback,
		publisher: publisher,
		settings:  settings,
		logger:    logger,
	}
}

// ConfirmPath 是宾客页面提交确认的地址。
func ConfirmPath(slug string) string {
	return "/v1/public/invitations/" + slug + "/confirmations"
}

func (h *PublicHandler) load(c *gin.Context) (database.Invitation, design.Document, bool) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		BadRequest(c, "missing slug")
		return database.Invitation{}, design.Document{}, false
	}
	inv, doc, err := database.LoadInvitationBySlug(c.Request.Context(), h.db, slug)
	if err != nil {
		respondLoadError(c, err, "invitation")
		return database.Invitation{}, design.Document{}, false
	}
	if inv.Status != database.StatusPublished {
		NotFound(c, "invitation not found")
		return database.Invitation{}, design.Document{}, false
	}
	return inv, doc, true
}

// GET /i/:slug
// 公开页面：逐页纵向排列，宽度随容器缩放。
func (h *PublicHandler) Page(c *gin.Context) {
	inv, doc, ok := h.load(c)
	if !ok {
		return
	}
	slug := inv.SlugValue()

	root := render.RenderDocument(doc, inv.Event.Info(), render.Options{
		Mode:          render.ModePublic,
		Title:         inv.Title,
		Slug:          slug,
		Location:      h.settings.Location,
		Now:           h.settings.now(),
		ConfirmAction: ConfirmPath(slug),
	})
	metrics.ObserveRender(string(render.ModePublic))

	var buf bytes.Buffer
	err := render.WritePage(c.Request.Context(), &buf, render.PageData{
		Title:         inv.Title,
		Lang:          h.settings.Lang,
		Slug:          slug,
		ConfirmAction: ConfirmPath(slug),
		Root:          root,
	})
	if err != nil {
		middleware.LoggerFromContext(c).Error("render public page failed", slog.Any("error", err))
		Internal(c, "failed to render invitation")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

type publicInvitationResponse struct {
	Slug   string           `json:"slug"`
	Title  string           `json:"title"`
	Event  design.EventInfo `json:"event"`
	Design design.Document  `json:"design"`
}

// GET /v1/public/invitations/:slug
func (h *PublicHandler) Get(c *gin.Context) {
	inv, doc, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, publicInvitationResponse{
		Slug:   inv.SlugValue(),
		Title:  inv.Title,
		Event:  inv.Event.Info(),
		Design: doc,
	})
}

type confirmRequest struct {
	Name       string `json:"name"`
	LastName   string `json:"lastName"`
	Label      string `json:"label"`
	DateISO    string `json:"dateISO"`
	EndDateISO string `json:"endDateISO"`
}

// POST /v1/public/invitations/:slug/confirmations
// 先写入兜底列表，再尝试落库；两者都失败才返回错误。
func (h *PublicHandler) Confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		BadRequest(c, "name is required")
		return
	}

	inv, _, ok := h.load(c)
	if !ok {
		return
	}
	log := middleware.LoggerFromContext(c)

	submitter := &confirmationSubmitter{
		db:            h.db,
		invitationID:  inv.ID,
		publisher:     h.publisher,
		logger:        log,
		correlationID: middleware.GetCorrelationID(c),
	}
	flow := rsvp.NewFlow(
		rsvp.Invitation{Slug: inv.SlugValue(), Title: inv.Title, Event: inv.Event.Info()},
		h.fallback,
		submitter,
		rsvp.WithLogger(log),
		rsvp.WithLocation(h.settings.Location),
		rsvp.WithClock(h.settings.now),
	)
	if err := flow.Open(rsvp.Prompt{Label: req.Label, DateISO: req.DateISO, EndDateISO: req.EndDateISO}); err != nil {
		Conflict(c, err.Error())
		return
	}

	result, err := flow.Submit(c.Request.Context(), rsvp.Guest{Name: req.Name, LastName: req.LastName})
	switch {
	case errors.Is(err, rsvp.ErrNotRecorded):
		metrics.ObserveConfirmation("failed")
		Unavailable(c, "confirmation could not be recorded")
		return
	case err != nil:
		metrics.ObserveConfirmation("failed")
		log.Error("confirmation flow failed", slog.Any("error", err))
		Internal(c, "failed to confirm")
		return
	}

	if result.Submitted {
		metrics.ObserveConfirmation("submitted")
	} else {
		metrics.ObserveConfirmation("fallback_only")
	}
	c.JSON(http.StatusCreated, result)
}

// GET /v1/public/invitations/:slug/calendar.ics
func (h *PublicHandler) Calendar(c *gin.Context) {
	inv, _, ok := h.load(c)
	if !ok {
		return
	}
	event := inv.Event.Info()
	if event.EventDate == "" {
		NotFound(c, "event has no date")
		return
	}
	start, err := design.ParseISO(event.EventDate, h.settings.Location)
	if err != nil {
		Error(c, http.StatusUnprocessableEntity, "event date is not a valid date")
		return
	}

	now := h.settings.now()
	att, err := calendar.NewAttachment(calendar.Event{
		UID:      inv.SlugValue() + "-event",
		Start:    start,
		Summary:  inv.Title,
		Location: event.Location,
		Stamp:    now,
	})
	if err != nil {
		if errors.Is(err, calendar.ErrIncomplete) {
			NotFound(c, "calendar not available")
			return
		}
		Internal(c, "failed to build calendar")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+att.FileName+`"`)
	c.Data(http.StatusOK, att.ContentType, []byte(att.Content))
}

// confirmationSubmitter 保存确认并通知组织者。
type confirmationSubmitter struct {
	db            *gorm.DB
	invitationID  uint
	publisher     worker.Publisher
	logger        *slog.Logger
	correlationID string
}

func (s *confirmationSubmitter) Submit(ctx context.Context, _ string, g rsvp.Guest) error {
	rec := database.Confirmation{
		InvitationID: s.invitationID,
		Name:         g.Name,
		LastName:     g.LastName,
		Status:       database.ConfirmationConfirmed,
		ConfirmedAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return err
	}
	if s.publisher == nil {
		return nil
	}
	err := worker.Publish(ctx, s.publisher, worker.NotifyMessage{
		Kind:          worker.NotifyConfirmation,
		Status:        "completed",
		InvitationID:  s.invitationID,
		CorrelationID: s.correlationID,
		Guest:         strings.TrimSpace(g.Name + " " + g.LastName),
	})
	if err != nil {
		s.logger.Warn("publish confirmation notification failed", slog.Any("error", err))
	}
	return nil
}
