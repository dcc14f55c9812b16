package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"celebria/internal/database"
	"celebria/internal/design"
)

// EventHandler 管理活动信息，邀请函渲染时只读取。
type EventHandler struct {
	db *gorm.DB
}

func NewEventHandler(db *gorm.DB) *EventHandler {
	return &EventHandler{db: db}
}

type eventRequest struct {
	Title       string `json:"title" binding:"required"`
	EventDate   string `json:"eventDate"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type eventResponse struct {
	ID uint `json:"id"`
	design.EventInfo
}

func toEventResponse(e database.Event) eventResponse {
	return eventResponse{ID: e.ID, EventInfo: e.Info()}
}

func (r eventRequest) apply(e *database.Event) {
	e.Title = strings.TrimSpace(r.Title)
	e.EventDate = strings.TrimSpace(r.EventDate)
	e.Location = strings.TrimSpace(r.Location)
	e.Description = r.Description
}

// POST /v1/events
func (h *EventHandler) Create(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	var event database.Event
	req.apply(&event)
	if err := h.db.WithContext(c.Request.Context()).Create(&event).Error; err != nil {
		Internal(c, "failed to create event")
		return
	}
	c.JSON(http.StatusCreated, toEventResponse(event))
}

// GET /v1/events/:id
func (h *EventHandler) Get(c *gin.Context) {
	event, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toEventResponse(event))
}

// PUT /v1/events/:id
// 修改活动后，已有邀请函需调用 sync-event 才会更新正文。
func (h *EventHandler) Update(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	event, ok := h.load(c)
	if !ok {
		return
	}
	req.apply(&event)
	if err := h.db.WithContext(c.Request.Context()).Save(&event).Error; err != nil {
		Internal(c, "failed to update event")
		return
	}
	c.JSON(http.StatusOK, toEventResponse(event))
}

func (h *EventHandler) load(c *gin.Context) (database.Event, bool) {
	var event database.Event
	id, err := parseID(c, "id")
	if err == nil {
		err = h.db.WithContext(c.Request.Context()).First(&event, id).Error
	}
	if err != nil {
		respondLoadError(c, err, "event")
		return event, false
	}
	return event, true
}
