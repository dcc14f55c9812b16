package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"celebria/internal/api/middleware"
	"celebria/internal/database"
	"celebria/internal/storage"
)

// ErrInfected 表示 Scanner 判定上传文件带毒。
var ErrInfected = errors.New("malicious file detected")

// Scanner 在上传前检查文件内容。
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// ClamdScanner 把上传内容流式交给 clamd 扫描。
type ClamdScanner struct {
	client *clamd.Clamd
}

// NewClamdScanner 在 addr 为空时返回 nil，上传不做扫描。
func NewClamdScanner(addr string) Scanner {
	if addr == "" {
		return nil
	}
	return &ClamdScanner{client: clamd.NewClamd(addr)}
}

func (s *ClamdScanner) Scan(ctx context.Context, r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := s.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("clamd scan: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-results:
			if !ok {
				return nil
			}
			if res.Status != clamd.RES_OK {
				return ErrInfected
			}
		}
	}
}

// UploadLimits 限制每个邀请函的上传。
type UploadLimits struct {
	MaxBytes  int64
	MaxPerDay int
}

func (l UploadLimits) withDefaults() UploadLimits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = 5 << 20
	}
	if l.MaxPerDay <= 0 {
		l.MaxPerDay = 100
	}
	return l
}

// AssetHandler 负责邀请函图片素材的上传与访问。
type AssetHandler struct {
	db      *gorm.DB
	storage ObjectStore
	scanner Scanner
	counter redisRateCounter
	limits  UploadLimits
}

func NewAssetHandler(db *gorm.DB, storage ObjectStore, scanner Scanner, counter redisRateCounter, limits UploadLimits) *AssetHandler {
	return &AssetHandler{
		db:      db,
		storage: storage,
		scanner: scanner,
		counter: counter,
		limits:  limits.withDefaults(),
	}
}

func uploadCounterKey(invitationID uint, now time.Time) string {
	return fmt.Sprintf("celebria:uploads:%d:%s", invitationID, now.UTC().Format("20060102"))
}

// invitationID 解析路径中的邀请函并确认其存在。
func (h *AssetHandler) invitationID(c *gin.Context) (uint, bool) {
	id, err := parseID(c, "id")
	if err == nil {
		var inv database.Invitation
		err = h.db.WithContext(c.Request.Context()).Select("id").First(&inv, id).Error
	}
	if err != nil {
		respondLoadError(c, err, "invitation")
		return 0, false
	}
	return id, true
}

// sniff 读取文件头判断真实类型，不信任客户端的 Content-Type。
func sniff(file *multipart.FileHeader) (string, error) {
	f, err := file.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

// POST /v1/invitations/:id/assets
// 上传图片：校验大小、类型与每日次数，扫描后写入对象存储。
func (h *AssetHandler) UploadAsset(c *gin.Context) {
	id, ok := h.invitationID(c)
	if !ok {
		return
	}
	log := middleware.LoggerFromContext(c)
	ctx := c.Request.Context()

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size <= 0 {
		BadRequest(c, "empty file")
		return
	}
	if file.Size > h.limits.MaxBytes {
		Error(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	contentType, err := sniff(file)
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	ext, allowed := storage.ImageExtensions[contentType]
	if !allowed {
		Error(c, http.StatusUnsupportedMediaType, "unsupported image type")
		return
	}

	if h.counter != nil {
		count, err := incrWithTTL(ctx, h.counter, uploadCounterKey(id, time.Now()), 24*time.Hour)
		if err != nil {
			log.Warn("upload counter unavailable", slog.Any("error", err))
		} else if count > int64(h.limits.MaxPerDay) {
			TooManyRequests(c, "daily upload limit reached")
			return
		}
	}

	if h.scanner != nil {
		reader, err := file.Open()
		if err != nil {
			Internal(c, "failed to open file")
			return
		}
		err = h.scanner.Scan(ctx, reader)
		reader.Close()
		switch {
		case errors.Is(err, ErrInfected):
			log.Warn("upload rejected by scanner", slog.Uint64("invitation_id", uint64(id)))
			BadRequest(c, ErrInfected.Error())
			return
		case err != nil:
			log.Error("scan file", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		}
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer reader.Close()

	objectKey := storage.AssetKey(id, uuid.NewString(), ext)
	if _, err := h.storage.UploadFile(ctx, objectKey, reader, file.Size, contentType); err != nil {
		log.Error("upload file", slog.Any("error", err))
		Internal(c, "failed to upload file")
		return
	}

	asset := database.Asset{
		InvitationID: id,
		ObjectKey:    objectKey,
		ContentType:  contentType,
		Size:         file.Size,
	}
	if err := h.db.WithContext(ctx).Create(&asset).Error; err != nil {
		log.Error("record asset", slog.Any("error", err))
		Internal(c, "failed to record asset")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey})
}

// GET /v1/invitations/:id/assets
// 列出邀请函的素材，按修改时间倒序。
func (h *AssetHandler) ListAssets(c *gin.Context) {
	id, ok := h.invitationID(c)
	if !ok {
		return
	}
	log := middleware.LoggerFromContext(c)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "60"))
	if err != nil || limit <= 0 {
		limit = 60
	}
	if limit > 200 {
		limit = 200
	}

	objects, err := h.storage.ListObjects(c.Request.Context(), storage.AssetPrefix(id), limit)
	if err != nil {
		log.Error("list assets", slog.Any("error", err))
		Internal(c, "failed to list assets")
		return
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	items := make([]gin.H, 0, len(objects))
	for _, obj := range objects {
		url, err := h.storage.GeneratePresignedURL(c.Request.Context(), obj.Key, 10*time.Minute)
		if err != nil {
			log.Error("generate asset url", slog.String("objectKey", obj.Key), slog.Any("error", err))
			continue
		}
		items = append(items, gin.H{
			"objectKey":    obj.Key,
			"previewUrl":   url,
			"size":         obj.Size,
			"lastModified": obj.LastModified,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GET /v1/invitations/:id/assets/view?key=...
func (h *AssetHandler) GetAssetURL(c *gin.Context) {
	id, ok := h.invitationID(c)
	if !ok {
		return
	}
	objectKey := c.Query("key")
	if objectKey == "" {
		BadRequest(c, "missing key")
		return
	}
	if !storage.ValidAssetKey(id, objectKey) {
		Forbidden(c, "access denied")
		return
	}

	signedURL, err := h.storage.GeneratePresignedURL(c.Request.Context(), objectKey, 15*time.Minute)
	if err != nil {
		middleware.LoggerFromContext(c).Error("generate presigned url", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

// DELETE /v1/invitations/:id/assets?key=...
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	id, ok := h.invitationID(c)
	if !ok {
		return
	}
	objectKey := c.Query("key")
	if !storage.ValidAssetKey(id, objectKey) {
		Forbidden(c, "access denied")
		return
	}
	ctx := c.Request.Context()
	if err := h.storage.DeleteObject(ctx, objectKey); err != nil {
		middleware.LoggerFromContext(c).Error("delete asset", slog.Any("error", err))
		Internal(c, "failed to delete asset")
		return
	}
	if err := h.db.WithContext(ctx).Where("object_key = ?", objectKey).Delete(&database.Asset{}).Error; err != nil {
		middleware.LoggerFromContext(c).Warn("delete asset row", slog.Any("error", err))
	}
	c.Status(http.StatusNoContent)
}
