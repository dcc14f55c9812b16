package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"celebria/internal/design"
)

// InvitationDesign 返回 inv 要展示的设计：自己的设计，
// 还没有时取模板的设计。
func InvitationDesign(ctx context.Context, db *gorm.DB, inv Invitation) (design.Document, error) {
	if len(inv.CustomDesign) > 0 && string(inv.CustomDesign) != "null" {
		return DecodeDesign(inv.CustomDesign)
	}
	if inv.TemplateID == nil {
		return design.Document{}, nil
	}
	var tpl Template
	if err := db.WithContext(ctx).First(&tpl, *inv.TemplateID).Error; err != nil {
		return design.Document{}, fmt.Errorf("load template %d: %w", *inv.TemplateID, err)
	}
	return DecodeDesign(tpl.Design)
}

// LoadInvitation 读取邀请函及其活动，并解析出要渲染的设计。
func LoadInvitation(ctx context.Context, db *gorm.DB, id uint) (Invitation, design.Document, error) {
	var inv Invitation
	if err := db.WithContext(ctx).Preload("Event").First(&inv, id).Error; err != nil {
		return Invitation{}, design.Document{}, err
	}
	doc, err := InvitationDesign(ctx, db, inv)
	if err != nil {
		return Invitation{}, design.Document{}, err
	}
	return inv, doc, nil
}

// LoadInvitationBySlug 按公开分享 slug 加载，其余同 LoadInvitation。
func LoadInvitationBySlug(ctx context.Context, db *gorm.DB, slug string) (Invitation, design.Document, error) {
	var inv Invitation
	if err := db.WithContext(ctx).Preload("Event").Where("slug = ?", slug).First(&inv).Error; err != nil {
		return Invitation{}, design.Document{}, err
	}
	doc, err := InvitationDesign(ctx, db, inv)
	if err != nil {
		return Invitation{}, design.Document{}, err
	}
	return inv, doc, nil
}
