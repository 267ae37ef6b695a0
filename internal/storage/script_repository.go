package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Corphon/ScriptCraftAI/internal/models"
)

// SessionSummary 历史列表中的会话及其版本数
type SessionSummary struct {
	models.ScriptSession
	VersionCount int
}

// ScriptStore 脚本会话与版本的表访问
type ScriptStore struct {
	db *gorm.DB
}

// NewScriptStore 创建脚本仓库
func NewScriptStore(db *gorm.DB) *ScriptStore {
	return &ScriptStore{db: db}
}

// CreateSession 保存生成会话
func (s *ScriptStore) CreateSession(ctx context.Context, session *models.ScriptSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

// FindSession 查询会话
func (s *ScriptStore) FindSession(ctx context.Context, id string) (*models.ScriptSession, error) {
	var session models.ScriptSession
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&session).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// CreateVersions 在一个事务中保存一批版本
func (s *ScriptStore) CreateVersions(ctx context.Context, versions []*models.ScriptVersion) error {
	if len(versions) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, v := range versions {
			if err := tx.Create(v).Error; err != nil {
				return fmt.Errorf("保存版本 %d 失败: %w", v.VersionIndex, err)
			}
		}
		return nil
	})
}

// FindVersion 查询版本
func (s *ScriptStore) FindVersion(ctx context.Context, id string) (*models.ScriptVersion, error) {
	var version models.ScriptVersion
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&version).Error; err != nil {
		return nil, translate(err)
	}
	return &version, nil
}

// ListVersions 按序号返回会话下的全部版本
func (s *ScriptStore) ListVersions(ctx context.Context, sessionID string) ([]models.ScriptVersion, error) {
	var versions []models.ScriptVersion
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("version_index ASC").
		Find(&versions).Error
	return versions, err
}

// SaveContent 写回内容、标题、统计与锁集合
func (s *ScriptStore) SaveContent(ctx context.Context, version *models.ScriptVersion) error {
	res := s.db.WithContext(ctx).Model(version).
		Select("title", "content_json", "word_count", "scene_count", "locked_scenes", "updated_at").
		Updates(version)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: version %s", ErrNotFound, version.ID)
	}
	return nil
}

// SaveLockedScenes 只更新锁集合
func (s *ScriptStore) SaveLockedScenes(ctx context.Context, version *models.ScriptVersion) error {
	res := s.db.WithContext(ctx).Model(version).
		Select("locked_scenes", "updated_at").
		Updates(version)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: version %s", ErrNotFound, version.ID)
	}
	return nil
}

// SelectVersion 在一个事务里把 versionID 设为会话中唯一被选中的版本
func (s *ScriptStore) SelectVersion(ctx context.Context, sessionID, versionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ScriptVersion{}).
			Where("id = ? AND session_id = ?", versionID, sessionID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: version %s in session %s", ErrNotFound, versionID, sessionID)
		}

		return tx.Model(&models.ScriptVersion{}).
			Where("session_id = ?", sessionID).
			Update("is_selected", gorm.Expr("id = ?", versionID)).Error
	})
}

// ListSessions 分页查询用户的生成历史，videoType 为空时不过滤
func (s *ScriptStore) ListSessions(ctx context.Context, userID, videoType string, offset, limit int) ([]SessionSummary, int64, error) {
	scoped := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&models.ScriptSession{}).Where("user_id = ?", userID)
		if videoType != "" {
			query = query.Where("video_type = ?", videoType)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []SessionSummary{}, 0, nil
	}

	var sessions []models.ScriptSession
	if err := scoped().Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}

	counts, err := s.countVersions(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, SessionSummary{
			ScriptSession: session,
			VersionCount:  counts[session.ID],
		})
	}
	return summaries, total, nil
}

func (s *ScriptStore) countVersions(ctx context.Context, sessionIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		SessionID string
		Total     int
	}
	err := s.db.WithContext(ctx).Model(&models.ScriptVersion{}).
		Select("session_id, COUNT(*) AS total").
		Where("session_id IN ?", sessionIDs).
		Group("session_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.SessionID] = row.Total
	}
	return counts, nil
}

// DeleteSession 删除会话及其全部版本
func (s *ScriptStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.ScriptVersion{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", sessionID).Delete(&models.ScriptSession{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return nil
	})
}
