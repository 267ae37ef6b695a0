// internal/services/script_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Corphon/ScriptCraftAI/internal/errors"
	"github.com/Corphon/ScriptCraftAI/internal/models"
	"github.com/Corphon/ScriptCraftAI/internal/storage"
	"github.com/Corphon/ScriptCraftAI/internal/utils"
)

// ScriptRepository 脚本会话与版本的持久化
type ScriptRepository interface {
	CreateSession(ctx context.Context, session *models.ScriptSession) error
	FindSession(ctx context.Context, id string) (*models.ScriptSession, error)
	CreateVersions(ctx context.Context, versions []*models.ScriptVersion) error
	FindVersion(ctx context.Context, id string) (*models.ScriptVersion, error)
	ListVersions(ctx context.Context, sessionID string) ([]models.ScriptVersion, error)
	SaveContent(ctx context.Context, version *models.ScriptVersion) error
	SaveLockedScenes(ctx context.Context, version *models.ScriptVersion) error
	SelectVersion(ctx context.Context, sessionID, versionID string) error
	ListSessions(ctx context.Context, userID, videoType string, offset, limit int) ([]storage.SessionSummary, int64, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// GenerateRequest 生成请求
type GenerateRequest struct {
	VideoType       string
	ThemeInput      string
	StylePreference string
	// VersionCount 并行生成的版本数，0 表示 1
	VersionCount int
}

// ScriptServiceOptions ScriptService 参数
type ScriptServiceOptions struct {
	GenerationTimeout time.Duration
	MaxVersions       int
	Metrics           *utils.Metrics
}

// ScriptService 编排提示词构造、模型调用、响应解析与持久化
type ScriptService struct {
	repo    ScriptRepository
	ai      AIClient
	prompts *PromptBuilder
	parser  *ResponseParser
	locks   *LockManager
	opts    ScriptServiceOptions
}

// NewScriptService 创建脚本服务
func NewScriptService(repo ScriptRepository, ai AIClient, locks *LockManager, opts ScriptServiceOptions) *ScriptService {
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = 70 * time.Second
	}
	if opts.MaxVersions <= 0 {
		opts.MaxVersions = 3
	}
	if locks == nil {
		locks = NewLockManager(0, 0)
	}
	return &ScriptService{
		repo:    repo,
		ai:      ai,
		prompts: NewPromptBuilder(),
		parser:  NewResponseParser(),
		locks:   locks,
		opts:    opts,
	}
}

// Generate 创建会话并并行生成 VersionCount 个版本；任一调用失败则整批失败，已保存的会话保留且没有版本
func (s *ScriptService) Generate(ctx context.Context, userID string, req GenerateRequest) (*models.GenerateResult, error) {
	count := req.VersionCount
	if count == 0 {
		count = 1
	}
	if count < 0 || count > s.opts.MaxVersions {
		return nil, apperrors.NewValidationError(fmt.Sprintf("生成版本数量需在1到%d之间", s.opts.MaxVersions), nil)
	}

	logger := utils.GetLogger()
	session := &models.ScriptSession{
		ID:              utils.NewID(),
		UserID:          userID,
		VideoType:       req.VideoType,
		ThemeInput:      req.ThemeInput,
		StylePreference: req.StylePreference,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, apperrors.NewProcessingError("保存生成记录失败", err)
	}

	logger.Info("开始生成脚本", map[string]interface{}{
		"session_id": session.ID,
		"user_id":    userID,
		"video_type": req.VideoType,
		"versions":   count,
	})

	prompt := s.prompts.BuildGenerationPrompt(req.VideoType, req.ThemeInput, req.StylePreference)
	contents, err := s.generateContents(ctx, prompt, count)
	if err != nil {
		s.opts.Metrics.RecordGeneration("generate", "failure")
		logger.Error("脚本生成失败", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
		return nil, err
	}

	versions := make([]*models.ScriptVersion, 0, count)
	for i, content := range contents {
		version := &models.ScriptVersion{
			ID:           utils.NewID(),
			SessionID:    session.ID,
			VersionIndex: i + 1,
			IsSelected:   count == 1,
		}
		if err := version.ApplyContent(content); err != nil {
			return nil, apperrors.NewProcessingError("保存脚本失败", err)
		}
		versions = append(versions, version)
	}
	if err := s.repo.CreateVersions(ctx, versions); err != nil {
		s.opts.Metrics.RecordGeneration("generate", "failure")
		return nil, apperrors.NewProcessingError("保存脚本失败", err)
	}
	s.opts.Metrics.RecordGeneration("generate", "success")

	result := &models.GenerateResult{
		SessionID: session.ID,
		Versions:  make([]models.VersionBrief, 0, len(versions)),
	}
	for _, v := range versions {
		result.Versions = append(result.Versions, models.NewVersionBrief(v))
	}

	logger.Info("脚本生成成功", map[string]interface{}{
		"session_id": session.ID,
		"versions":   len(versions),
	})
	return result, nil
}

// generateContents 在 GenerationTimeout 内并行调用 count 次，第一个失败会取消其余调用
func (s *ScriptService) generateContents(ctx context.Context, prompt string, count int) ([]*models.ScriptContent, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.opts.GenerationTimeout)
	defer cancel()

	contents := make([]*models.ScriptContent, count)
	g, gctx := errgroup.WithContext(genCtx)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			content, err := s.completeAndParse(gctx, prompt)
			if err != nil {
				return err
			}
			contents[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return contents, nil
}

func (s *ScriptService) completeAndParse(ctx context.Context, prompt string) (*models.ScriptContent, error) {
	resp, err := s.ai.Complete(ctx, prompt)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.NewUpstreamError(aiUnavailableMessage, err)
	}
	return s.parser.ParseCompletion(resp)
}

// loadOwnedVersion 读取版本并校验其所属会话归 userID 所有
func (s *ScriptService) loadOwnedVersion(ctx context.Context, userID, versionID string) (*models.ScriptVersion, *models.ScriptSession, error) {
	version, err := s.repo.FindVersion(ctx, versionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperrors.NewNotFoundError("脚本不存在", err)
		}
		return nil, nil, apperrors.NewProcessingError("查询脚本失败", err)
	}

	session, err := s.repo.FindSession(ctx, version.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperrors.NewNotFoundError("脚本不存在", err)
		}
		return nil, nil, apperrors.NewProcessingError("查询脚本失败", err)
	}
	if session.UserID != userID {
		return nil, nil, apperrors.NewForbiddenError("无权访问此脚本", nil)
	}
	return version, session, nil
}

// loadOwnedSession 读取会话并校验归属
func (s *ScriptService) loadOwnedSession(ctx context.Context, userID, sessionID string) (*models.ScriptSession, error) {
	session, err := s.repo.FindSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("会话不存在", err)
		}
		return nil, apperrors.NewProcessingError("查询会话失败", err)
	}
	if session.UserID != userID {
		return nil, apperrors.NewForbiddenError("无权访问此会话", nil)
	}
	return session, nil
}

// GetVersion 读取版本（校验归属）
func (s *ScriptService) GetVersion(ctx context.Context, userID, versionID string) (*models.ScriptVersion, error) {
	version, _, err := s.loadOwnedVersion(ctx, userID, versionID)
	return version, err
}

// GetVersionDetail 读取版本并解析内容
func (s *ScriptService) GetVersionDetail(ctx context.Context, userID, versionID string) (*models.VersionDetail, error) {
	version, _, err := s.loadOwnedVersion(ctx, userID, versionID)
	if err != nil {
		return nil, err
	}
	content, err := version.Content()
	if err != nil {
		return nil, apperrors.NewProcessingError("脚本内容解析失败", err)
	}
	return models.NewVersionDetail(version, content), nil
}

// UpdateVersion 覆盖版本内容并重新计算字数与分镜数；超出新分镜数的锁定序号被丢弃
func (s *ScriptService) UpdateVersion(ctx context.Context, userID, versionID string, content *models.ScriptContent) (*models.VersionUpdateResult, error) {
	if err := content.Validate(); err != nil {
		return nil, apperrors.NewValidationError("脚本内容格式不正确", err)
	}

	var result *models.VersionUpdateResult
	err := s.locks.ExecuteWithLock(versionID, func() error {
		version, _, err := s.loadOwnedVersion(ctx, userID, versionID)
		if err != nil {
			return err
		}
		if err := version.ApplyContent(content); err != nil {
			return apperrors.NewProcessingError("保存脚本失败", err)
		}
		if locked := s.lockedScenes(version); len(locked) > 0 {
			kept := make([]int, 0, len(locked))
			for _, idx := range locked {
				if idx < version.SceneCount {
					kept = append(kept, idx)
				}
			}
			if len(kept) != len(locked) {
				utils.GetLogger().Info("分镜减少，移除失效的锁定序号", map[string]interface{}{
					"version_id": version.ID,
					"kept":       kept,
				})
				version.SetLockedScenes(kept)
			}
		}
		if err := s.repo.SaveContent(ctx, version); err != nil {
			return apperrors.NewProcessingError("保存脚本失败", err)
		}
		result = &models.VersionUpdateResult{
			VersionID: version.ID,
			UpdatedAt: version.UpdatedAt.Format(models.TimeLayout),
		}
		return nil
	})
	return result, err
}

// SelectVersion 把版本设为所在会话中唯一被选中的版本
func (s *ScriptService) SelectVersion(ctx context.Context, userID, versionID string) error {
	version, session, err := s.loadOwnedVersion(ctx, userID, versionID)
	if err != nil {
		return err
	}
	if err := s.repo.SelectVersion(ctx, session.ID, version.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NewNotFoundError("脚本不存在", err)
		}
		return apperrors.NewProcessingError("选择版本失败", err)
	}
	utils.GetLogger().Info("选择脚本版本", map[string]interface{}{
		"session_id": session.ID,
		"version_id": version.ID,
	})
	return nil
}

// ToggleSceneLock 锁定或解锁一个分镜，返回更新后的锁定集合
func (s *ScriptService) ToggleSceneLock(ctx context.Context, userID, versionID string, sceneIndex int, locked bool) ([]int, error) {
	var result []int
	err := s.locks.ExecuteWithLock(versionID, func() error {
		version, _, err := s.loadOwnedVersion(ctx, userID, versionID)
		if err != nil {
			return err
		}
		// 解锁不检查上限，历史数据中遗留的越界序号也能被移除
		if sceneIndex < 0 || (locked && sceneIndex >= version.SceneCount) {
			return apperrors.NewValidationError(fmt.Sprintf("分镜序号超出范围(0-%d)", version.SceneCount-1), nil)
		}

		indices := s.lockedScenes(version)
		if locked {
			indices = append(indices, sceneIndex)
		} else {
			kept := indices[:0]
			for _, idx := range indices {
				if idx != sceneIndex {
					kept = append(kept, idx)
				}
			}
			indices = kept
		}

		version.SetLockedScenes(indices)
		if err := s.repo.SaveLockedScenes(ctx, version); err != nil {
			return apperrors.NewProcessingError("保存锁定状态失败", err)
		}
		result, _ = version.LockedSceneIndices()
		return nil
	})
	return result, err
}

// lockedScenes 无法解析的锁集合按空集合处理
func (s *ScriptService) lockedScenes(version *models.ScriptVersion) []int {
	indices, err := version.LockedSceneIndices()
	if err != nil {
		utils.GetLogger().Warn("锁定分镜数据无法解析，按未锁定处理", map[string]interface{}{
			"version_id": version.ID,
			"error":      err.Error(),
		})
	}
	return indices
}

// Regenerate 重新生成未锁定的分镜并与锁定分镜合并后保存
func (s *ScriptService) Regenerate(ctx context.Context, userID, versionID string) (*MergeResult, error) {
	var result *MergeResult
	err := s.locks.ExecuteWithLock(versionID, func() error {
		version, _, err := s.loadOwnedVersion(ctx, userID, versionID)
		if err != nil {
			return err
		}
		original, err := version.Content()
		if err != nil {
			return apperrors.NewProcessingError("脚本内容解析失败", err)
		}

		locked := s.lockedScenes(version)
		// NOTE: 没有锁定分镜时直接返回原内容而不是整体重写。
		// 这一行为存疑，可能并非有意为之，暂时保持现状。
		if len(locked) == 0 {
			result = &MergeResult{Content: original}
			return nil
		}

		genCtx, cancel := context.WithTimeout(ctx, s.opts.GenerationTimeout)
		defer cancel()

		prompt := s.prompts.BuildRegenerationPrompt(original, locked)
		generated, err := s.completeAndParse(genCtx, prompt)
		if err != nil {
			s.opts.Metrics.RecordGeneration("regenerate", "failure")
			return err
		}

		merged := MergeScenes(original, generated, locked)
		if merged.Fallback != nil {
			s.opts.Metrics.RecordMergeFallback()
			utils.GetLogger().Warn("分镜数量变化，放弃锁定分镜", map[string]interface{}{
				"version_id":      version.ID,
				"original_scenes": merged.Fallback.OriginalSceneCount,
				"new_scenes":      merged.Fallback.GeneratedSceneCount,
				"dropped_locks":   merged.Fallback.DroppedLocks,
			})
			version.SetLockedScenes(nil)
		}

		if err := version.ApplyContent(merged.Content); err != nil {
			return apperrors.NewProcessingError("保存脚本失败", err)
		}
		if err := s.repo.SaveContent(ctx, version); err != nil {
			return apperrors.NewProcessingError("保存脚本失败", err)
		}
		s.opts.Metrics.RecordGeneration("regenerate", "success")
		result = &merged
		return nil
	})
	return result, err
}

// ListSessionVersions 会话下全部版本的简要信息
func (s *ScriptService) ListSessionVersions(ctx context.Context, userID, sessionID string) ([]models.VersionBrief, error) {
	if _, err := s.loadOwnedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	versions, err := s.repo.ListVersions(ctx, sessionID)
	if err != nil {
		return nil, apperrors.NewProcessingError("查询版本失败", err)
	}

	briefs := make([]models.VersionBrief, 0, len(versions))
	for i := range versions {
		briefs = append(briefs, models.NewVersionBrief(&versions[i]))
	}
	return briefs, nil
}

// GetUserHistory 分页查询生成历史，按创建时间倒序
func (s *ScriptService) GetUserHistory(ctx context.Context, userID string, page, pageSize int, videoType string) (*models.HistoryPage, error) {
	page, pageSize = NormalizePage(page, pageSize)

	sessions, total, err := s.repo.ListSessions(ctx, userID, videoType, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, apperrors.NewProcessingError("查询历史记录失败", err)
	}

	items := make([]models.HistoryItem, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, models.HistoryItem{
			SessionID:       session.ID,
			VideoType:       session.VideoType,
			VideoTypeLabel:  models.VideoTypeLabel(session.VideoType),
			ThemeInput:      session.ThemeInput,
			StylePreference: session.StylePreference,
			VersionCount:    session.VersionCount,
			CreatedAt:       session.CreatedAt.Format(models.TimeLayout),
		})
	}

	return &models.HistoryPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// DeleteSession 删除会话及其全部版本
func (s *ScriptService) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if _, err := s.loadOwnedSession(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := s.repo.DeleteSession(ctx, sessionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NewNotFoundError("会话不存在", err)
		}
		return apperrors.NewProcessingError("删除会话失败", err)
	}
	utils.GetLogger().Info("删除生成记录", map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userID,
	})
	return nil
}
