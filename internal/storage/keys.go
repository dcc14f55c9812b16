package storage

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

// 桶内对象布局：
//
//	invitations/<id>/assets/<uuid>.<ext>   组织者上传
//	invitations/<id>/preview/<uuid>.jpg    最新预览截图
//	invitations/<id>/pdf/<uuid>.pdf        最新 PDF 导出
//	templates/<id>/preview/<uuid>.jpg      模板缩略图

const maxKeyLength = 200

// ImageExtensions 把允许上传的内容类型映射到键扩展名。
var ImageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// InvitationPrefix 是一个邀请函所有对象的根前缀。
func InvitationPrefix(invitationID uint) string {
	return fmt.Sprintf("invitations/%d/", invitationID)
}

func AssetPrefix(invitationID uint) string {
	return InvitationPrefix(invitationID) + "assets/"
}

func AssetKey(invitationID uint, name, ext string) string {
	return AssetPrefix(invitationID) + name + ext
}

func PreviewPrefix(invitationID uint) string {
	return InvitationPrefix(invitationID) + "preview/"
}

func PDFPrefix(invitationID uint) string {
	return InvitationPrefix(invitationID) + "pdf/"
}

func TemplatePreviewPrefix(templateID uint) string {
	return fmt.Sprintf("templates/%d/preview/", templateID)
}

// ValidAssetKey 判断 key 是否为该邀请函素材前缀下格式正确的图片键。
func ValidAssetKey(invitationID uint, key string) bool {
	if key == "" || !utf8.ValidString(key) || len(key) > maxKeyLength {
		return false
	}
	if !strings.HasPrefix(key, AssetPrefix(invitationID)) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	ext := strings.ToLower(path.Ext(key))
	for _, allowed := range ImageExtensions {
		if ext == allowed {
			return true
		}
	}
	return ext == ".jpeg"
}
