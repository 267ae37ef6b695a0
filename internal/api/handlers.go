// internal/api/handlers.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ScriptCraftAI/internal/services"
	"github.com/Corphon/ScriptCraftAI/internal/utils"
)

// Handler 处理API请求
type Handler struct {
	UserService   *services.UserService   // 用户服务
	ScriptService *services.ScriptService // 脚本生成服务
	Sessions      SessionBackend          // 登录会话，健康检查也会用到
	DBPing        func(ctx context.Context) error
	Response      *ResponseHelper // 响应助手

	// requestTimeout 生成类请求的整体超时
	requestTimeout time.Duration
}

// NewHandler 创建API处理器
func NewHandler(users *services.UserService, scripts *services.ScriptService, sessions SessionBackend, dbPing func(context.Context) error, requestTimeout time.Duration) *Handler {
	if requestTimeout <= 0 {
		requestTimeout = 180 * time.Second
	}
	return &Handler{
		UserService:    users,
		ScriptService:  scripts,
		Sessions:       sessions,
		DBPing:         dbPing,
		Response:       NewResponseHelper(),
		requestTimeout: requestTimeout,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=20"`
	Nickname string `json:"nickname" binding:"omitempty,max=50"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest 资料更新请求，未提供的字段保持不变
type UpdateProfileRequest struct {
	Nickname  *string `json:"nickname" binding:"omitempty,max=50"`
	AvatarURL *string `json:"avatarUrl" binding:"omitempty,url,max=512"`
}

// ========================================
// 认证与用户
// ========================================

// Register 注册
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.UserService.Register(c.Request.Context(), req.Email, req.Password, req.Nickname)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, user, msgRegistered)
}

// Login 登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.UserService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, result, msgLoggedIn)
}

// GetProfile 当前登录用户信息
func (h *Handler) GetProfile(c *gin.Context) {
	principal, _ := currentPrincipal(c)

	user, err := h.UserService.GetUserByID(c.Request.Context(), principal.UserID())
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, user)
}

// UpdateProfile 更新昵称与头像
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	principal, _ := currentPrincipal(c)

	user, err := h.UserService.UpdateProfile(c.Request.Context(), principal.UserID(), services.ProfileUpdate{
		Nickname:  req.Nickname,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, user, msgSaved)
}

// Logout 退出登录，销毁该用户的全部会话
func (h *Handler) Logout(c *gin.Context) {
	principal, _ := currentPrincipal(c)

	if err := h.UserService.Logout(c.Request.Context(), principal.UserID()); err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, nil, msgLoggedOut)
}

// ========================================
// 健康检查
// ========================================

// HealthStatus 健康检查结果
type HealthStatus struct {
	Database       string `json:"database"`
	Redis          string `json:"redis"`
	OnlineSessions int    `json:"onlineSessions"`
	Timestamp      string `json:"timestamp"`
}

// Health 检查数据库与 Redis 连通性，并报告在线会话数
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := HealthStatus{
		Database:  "ok",
		Redis:     "ok",
		Timestamp: time.Now().Format(time.RFC3339),
	}
	healthy := true
	logger := utils.GetLogger()

	if h.DBPing != nil {
		if err := h.DBPing(ctx); err != nil {
			status.Database = "unavailable"
			healthy = false
			logger.Warn("数据库健康检查失败", map[string]interface{}{"error": err.Error()})
		}
	}
	if err := h.Sessions.Ping(ctx); err != nil {
		status.Redis = "unavailable"
		healthy = false
		logger.Warn("Redis 健康检查失败", map[string]interface{}{"error": err.Error()})
	} else if count, err := h.Sessions.OnlineCount(ctx); err == nil {
		status.OnlineSessions = count
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, &Result{
			Code:      http.StatusServiceUnavailable,
			Message:   msgUnavailable,
			Data:      status,
			Success:   false,
			RequestID: requestID(c),
		})
		return
	}
	h.Response.Success(c, status)
}
