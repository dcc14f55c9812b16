package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"celebria/internal/design"
)

// 邀请函状态。
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// 确认状态。
const (
	ConfirmationConfirmed = "confirmed"
	ConfirmationDeclined  = "declined"
)

// Event 表示被邀请的活动本身（婚礼、生日等）。
type Event struct {
	gorm.Model
	Title string `gorm:"size:255"`
	// EventDate 保存 ISO 字符串，原样交给渲染层解析。
	EventDate   string `gorm:"size:64"`
	Location    string `gorm:"size:512"`
	Description string `gorm:"type:text"`
}

// Info 返回渲染和合并逻辑使用的只读视图。
func (e Event) Info() design.EventInfo {
	return design.EventInfo{
		Title:       e.Title,
		EventDate:   e.EventDate,
		Location:    e.Location,
		Description: e.Description,
	}
}

// Template 表示可复用的邀请函设计。
type Template struct {
	gorm.Model
	Title            string         `gorm:"size:255"`
	PreviewObjectKey string         `gorm:"size:512"`
	Design           datatypes.JSON `gorm:"type:jsonb"`
	IsPublic         bool           `gorm:"default:false"`
}

// Invitation 是某个活动的一份可分享邀请函。
type Invitation struct {
	gorm.Model
	// Slug 为空表示尚未生成分享链接。
	Slug             *string        `gorm:"uniqueIndex;size:64"`
	Title            string         `gorm:"size:255"`
	EventID          uint           `gorm:"index"`
	Event            Event          `gorm:"constraint:OnDelete:CASCADE"`
	TemplateID       *uint          `gorm:"index"`
	CustomDesign     datatypes.JSON `gorm:"type:jsonb"`
	PreviewObjectKey string         `gorm:"size:512"`
	PDFObjectKey     string         `gorm:"size:512"`
	Status           string         `gorm:"size:32;default:draft"`
}

// SlugValue 返回分享 slug，没有则为空。
func (i Invitation) SlugValue() string {
	if i.Slug == nil {
		return ""
	}
	return *i.Slug
}

// Confirmation 记录宾客的出席确认。
type Confirmation struct {
	gorm.Model
	InvitationID uint   `gorm:"index"`
	Name         string `gorm:"size:128"`
	LastName     string `gorm:"size:128"`
	Status       string `gorm:"size:32;default:confirmed"`
	ConfirmedAt  time.Time
}

// Asset 记录组织者上传到对象存储的图片。
type Asset struct {
	gorm.Model
	InvitationID uint   `gorm:"index"`
	ObjectKey    string `gorm:"uniqueIndex;size:255"`
	ContentType  string `gorm:"size:64"`
	Size         int64
}

// ErrInvalidDesign 表示存储的设计列不是合法文档。
var ErrInvalidDesign = errors.New("invalid design")

// DecodeDesign 解析存储的设计列，空列视为空文档。
func DecodeDesign(raw datatypes.JSON) (design.Document, error) {
	var doc design.Document
	if len(raw) == 0 || string(raw) == "null" {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return design.Document{}, fmt.Errorf("decode design: %w: %w", ErrInvalidDesign, err)
	}
	return doc, nil
}

// EncodeDesign 把 doc 序列化为 jsonb 列。
func EncodeDesign(doc design.Document) (datatypes.JSON, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode design: %w", err)
	}
	return datatypes.JSON(b), nil
}
