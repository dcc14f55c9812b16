package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"celebria/internal/api/middleware"
	"celebria/internal/database"
	"celebria/internal/design"
)

var errInvalidID = errors.New("invalid id")

// Error 输出统一的错误结构，附带 correlation_id 便于排查。
func Error(c *gin.Context, status int, msg string) {
	body := gin.H{"error": msg}
	if id := middleware.GetCorrelationID(c); id != "" {
		body["correlation_id"] = id
	}
	c.JSON(status, body)
}

func BadRequest(c *gin.Context, msg string)  { Error(c, http.StatusBadRequest, msg) }
func NotFound(c *gin.Context, msg string)    { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)    { Error(c, http.StatusConflict, msg) }
func Forbidden(c *gin.Context, msg string)   { Error(c, http.StatusForbidden, msg) }
func Internal(c *gin.Context, msg string)    { Error(c, http.StatusInternalServerError, msg) }
func Unavailable(c *gin.Context, msg string) { Error(c, http.StatusServiceUnavailable, msg) }

// TooManyRequests 用于上传频率限制。
func TooManyRequests(c *gin.Context, msg string) { Error(c, http.StatusTooManyRequests, msg) }

// parseID 解析路径参数中的数字 ID。
func parseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

// respondLoadError 把具名资源的查询错误映射为状态码。
func respondLoadError(c *gin.Context, err error, resource string) {
	switch {
	case errors.Is(err, errInvalidID):
		BadRequest(c, "invalid "+resource+" id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, resource+" not found")
	case errors.Is(err, database.ErrInvalidDesign):
		Error(c, http.StatusUnprocessableEntity, "stored design is invalid")
	default:
		middleware.LoggerFromContext(c).Error("load "+resource+" failed", "error", err)
		Internal(c, "failed to query "+resource)
	}
}

// respondDesignError 把编辑操作错误映射为 4xx。
func respondDesignError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, design.ErrPageIndex),
		errors.Is(err, design.ErrElementNotFound),
		errors.Is(err, design.ErrUnknownKind),
		errors.Is(err, design.ErrSectionKey):
		Error(c, http.StatusUnprocessableEntity, err.Error())
	default:
		BadRequest(c, err.Error())
	}
}
