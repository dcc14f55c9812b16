package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"celebria/internal/api/middleware"
	"celebria/internal/database"
	"celebria/internal/rsvp"
)

// ConfirmationHandler 让组织者查看与整理宾客的确认记录。
type ConfirmationHandler struct {
	db       *gorm.DB
	fallback rsvp.FallbackStore
}

func NewConfirmationHandler(db *gorm.DB, fallback rsvp.FallbackStore) *ConfirmationHandler {
	return &ConfirmationHandler{db: db, fallback: fallback}
}

type confirmationItem struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	LastName    string    `json:"lastName"`
	Status      string    `json:"status"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

type confirmationListResponse struct {
	Items []confirmationItem `json:"items"`
	// Fallback 为保存在 Redis 兜底列表中的记录，包含未能落库的确认。
	Fallback []rsvp.Record `json:"fallback"`
}

// GET /v1/invitations/:id/confirmations
func (h *ConfirmationHandler) List(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondLoadError(c, err, "invitation")
		return
	}
	ctx := c.Request.Context()
	var inv database.Invitation
	if err := h.db.WithContext(ctx).First(&inv, id).Error; err != nil {
		respondLoadError(c, err, "invitation")
		return
	}

	var rows []database.Confirmation
	if err := h.db.WithContext(ctx).
		Where("invitation_id = ?", inv.ID).
		Order("confirmed_at DESC").
		Find(&rows).Error; err != nil {
		Internal(c, "failed to list confirmations")
		return
	}

	resp := confirmationListResponse{
		Items:    make([]confirmationItem, 0, len(rows)),
		Fallback: []rsvp.Record{},
	}
	for _, r := range rows {
		resp.Items = append(resp.Items, confirmationItem{
			ID:          r.ID,
			Name:        r.Name,
			LastName:    r.LastName,
			Status:      r.Status,
			ConfirmedAt: r.ConfirmedAt,
		})
	}
	if slug := inv.SlugValue(); slug != "" && h.fallback != nil {
		records, err := h.fallback.List(ctx, slug)
		if err != nil {
			middleware.LoggerFromContext(c).Warn("list fallback confirmations failed", slog.Any("error", err))
		} else if records != nil {
			resp.Fallback = records
		}
	}
	c.JSON(http.StatusOK, resp)
}

type updateConfirmationRequest struct {
	Status string `json:"status" binding:"required"`
}

// PUT /v1/confirmations/:id
func (h *ConfirmationHandler) Update(c *gin.Context) {
	var req updateConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.Status != database.ConfirmationConfirmed && req.Status != database.ConfirmationDeclined {
		BadRequest(c, "status must be confirmed or declined")
		return
	}
	row, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Model(&row).Update("status", req.Status).Error; err != nil {
		Internal(c, "failed to update confirmation")
		return
	}
	c.JSON(http.StatusOK, confirmationItem{
		ID:          row.ID,
		Name:        row.Name,
		LastName:    row.LastName,
		Status:      req.Status,
		ConfirmedAt: row.ConfirmedAt,
	})
}

// DELETE /v1/confirmations/:id
func (h *ConfirmationHandler) Delete(c *gin.Context) {
	row, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Delete(&row).Error; err != nil {
		Internal(c, "failed to delete confirmation")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ConfirmationHandler) load(c *gin.Context) (database.Confirmation, bool) {
	var row database.Confirmation
	id, err := parseID(c, "id")
	if err == nil {
		err = h.db.WithContext(c.Request.Context()).First(&row, id).Error
	}
	if err != nil {
		respondLoadError(c, err, "confirmation")
		return row, false
	}
	return row, true
}
