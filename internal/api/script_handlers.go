// internal/api/script_handlers.go
package api

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ScriptCraftAI/internal/models"
	"github.com/Corphon/ScriptCraftAI/internal/services"
)

// GenerateRequest 生成脚本请求
type GenerateRequest struct {
	VideoType       string `json:"videoType" binding:"required,notblank,max=50"`
	ThemeInput      string `json:"themeInput" binding:"required,notblank,max=200"`
	StylePreference string `json:"stylePreference" binding:"omitempty,max=50"`
	VersionCount    int    `json:"versionCount" binding:"omitempty,min=1"`
}

// UpdateVersionRequest 编辑版本内容
type UpdateVersionRequest struct {
	Content *models.ScriptContent `json:"content" binding:"required"`
}

// SceneLockRequest 锁定或解锁分镜
type SceneLockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// SceneLockResult 锁定操作的返回
type SceneLockResult struct {
	VersionID    string `json:"versionId"`
	LockedScenes []int  `json:"lockedScenes"`
}

// RegenerateResult 重新生成的返回；merge.fallback 存在表示锁定分镜已被放弃
type RegenerateResult struct {
	Content *models.ScriptContent `json:"content"`
	Merge   MergeInfo             `json:"merge"`
}

// MergeInfo 合并情况
type MergeInfo struct {
	Fallback *services.MergeFallback `json:"fallback,omitempty"`
}

// GenerateScript 生成脚本
func (h *Handler) GenerateScript(c *gin.Context) {
	var req GenerateRequest
	if !bindJSON(c, &req) {
		return
	}
	principal, _ := currentPrincipal(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	result, err := h.ScriptService.Generate(ctx, principal.UserID(), services.GenerateRequest{
		VideoType:       req.VideoType,
		ThemeInput:      req.ThemeInput,
		StylePreference: req.StylePreference,
		VersionCount:    req.VersionCount,
	})
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, result, msgGenerated)
}

// GetVersion 版本详情
func (h *Handler) GetVersion(c *gin.Context) {
	principal, _ := currentPrincipal(c)

	detail, err := h.ScriptService.GetVersionDetail(c.Request.Context(), principal.UserID(), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, detail)
}

// UpdateVersion 保存编辑后的脚本内容
func (h *Handler) UpdateVersion(c *gin.Context) {
	var req UpdateVersionRequest
	if !bindJSON(c, &req) {
		return
	}
	principal, _ := currentPrincipal(c)

	result, err := h.ScriptService.UpdateVersion(c.Request.Context(), principal.UserID(), c.Param("id"), req.Content)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, result, msgSaved)
}

// SelectVersion 选择版本
func (h *Handler) SelectVersion(c *gin.Context) {
	principal, _ := currentPrincipal(c)
	versionID := c.Param("id")

	if err := h.ScriptService.SelectVersion(c.Request.Context(), principal.UserID(), versionID); err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, gin.H{"versionId": versionID}, msgSelected)
}

// ToggleSceneLock 锁定或解锁分镜
func (h *Handler) ToggleSceneLock(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.Response.BadRequest(c, msgInvalidIndex)
		return
	}
	var req SceneLockRequest
	if !bindJSON(c, &req) {
		return
	}
	principal, _ := currentPrincipal(c)
	versionID := c.Param("id")

	locked, err := h.ScriptService.ToggleSceneLock(c.Request.Context(), principal.UserID(), versionID, index, *req.Locked)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, &SceneLockResult{VersionID: versionID, LockedScenes: locked})
}

// RegenerateVersion 重新生成未锁定的分镜
func (h *Handler) RegenerateVersion(c *gin.Context) {
	principal, _ := currentPrincipal(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	merged, err := h.ScriptService.Regenerate(ctx, principal.UserID(), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, &RegenerateResult{
		Content: merged.Content,
		Merge:   MergeInfo{Fallback: merged.Fallback},
	}, msgRegenerated)
}

// GetSessionVersions 会话下的全部版本
func (h *Handler) GetSessionVersions(c *gin.Context) {
	principal, _ := currentPrincipal(c)

	versions, err := h.ScriptService.ListSessionVersions(c.Request.Context(), principal.UserID(), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, versions)
}

// DeleteSession 删除一次生成记录
func (h *Handler) DeleteSession(c *gin.Context) {
	principal, _ := currentPrincipal(c)

	if err := h.ScriptService.DeleteSession(c.Request.Context(), principal.UserID(), c.Param("id")); err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, nil, msgSessionDeleted)
}

// ListSessions 分页查询生成历史；非法的分页参数按默认值处理
func (h *Handler) ListSessions(c *gin.Context) {
	principal, _ := currentPrincipal(c)
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))

	history, err := h.ScriptService.GetUserHistory(c.Request.Context(), principal.UserID(), page, pageSize, c.Query("videoType"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, history)
}
