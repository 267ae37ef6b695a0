// internal/api/response_helpers.go
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/ScriptCraftAI/internal/errors"
	"github.com/Corphon/ScriptCraftAI/internal/utils"
)

// Result 所有接口统一的响应格式
type Result struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	Success   bool        `json:"success"`
	RequestID string      `json:"requestId,omitempty"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	msg := msgOK
	if len(message) > 0 {
		msg = message[0]
	}
	c.JSON(http.StatusOK, &Result{
		Code:      http.StatusOK,
		Message:   msg,
		Data:      data,
		Success:   true,
		RequestID: requestID(c),
	})
}

// Fail 以给定的状态码返回失败并中止后续处理
func (rh *ResponseHelper) Fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, &Result{
		Code:      status,
		Message:   message,
		Success:   false,
		RequestID: requestID(c),
	})
}

// Error 把 service 返回的错误转换为响应；非 AppError 按服务器内部错误处理
func (rh *ResponseHelper) Error(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		utils.GetLogger().Error("请求处理失败", map[string]interface{}{
			"request_id": requestID(c),
			"path":       c.Request.URL.Path,
			"status":     status,
			"error":      err.Error(),
		})
	}
	_ = c.Error(err)

	c.AbortWithStatusJSON(status, &Result{
		Code:      apperrors.EnvelopeCode(err),
		Message:   apperrors.UserMessage(err, msgInternalError),
		Success:   false,
		RequestID: requestID(c),
	})
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string) {
	rh.Fail(c, http.StatusBadRequest, message)
}

// Unauthorized 401错误响应
func (rh *ResponseHelper) Unauthorized(c *gin.Context, message string) {
	rh.Fail(c, http.StatusUnauthorized, message)
}

// InternalError 500错误响应
func (rh *ResponseHelper) InternalError(c *gin.Context) {
	rh.Fail(c, http.StatusInternalServerError, msgInternalError)
}

// writeResult 不经过 gin 直接写出响应，供 net/http 中间件使用
func writeResult(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&Result{
		Code:      status,
		Message:   message,
		Success:   false,
		RequestID: w.Header().Get(requestIDHeader),
	})
}

// requestID 获取请求ID
func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
