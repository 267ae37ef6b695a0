package models

// VersionPreview 版本列表中的内容摘要
type VersionPreview struct {
	FirstScene string `json:"firstScene"`
	WordCount  int    `json:"wordCount"`
	SceneCount int    `json:"sceneCount"`
}

// VersionBrief 版本简要信息
type VersionBrief struct {
	VersionID    string         `json:"versionId"`
	VersionIndex int            `json:"versionIndex"`
	Title        string         `json:"title"`
	IsSelected   bool           `json:"isSelected"`
	Preview      VersionPreview `json:"preview"`
}

// NewVersionBrief 由版本生成简要信息；内容无法解析时 firstScene 为空
func NewVersionBrief(v *ScriptVersion) VersionBrief {
	brief := VersionBrief{
		VersionID:    v.ID,
		VersionIndex: v.VersionIndex,
		Title:        v.Title,
		IsSelected:   v.IsSelected,
		Preview: VersionPreview{
			WordCount:  v.WordCount,
			SceneCount: v.SceneCount,
		},
	}
	if content, err := v.Content(); err == nil {
		brief.Preview.FirstScene = content.FirstSceneVisual()
	}
	return brief
}

// GenerateResult 生成接口的返回
type GenerateResult struct {
	SessionID string         `json:"sessionId"`
	Versions  []VersionBrief `json:"versions"`
}

// VersionDetail 版本完整信息
type VersionDetail struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"sessionId"`
	VersionIndex int            `json:"versionIndex"`
	Title        string         `json:"title"`
	Content      *ScriptContent `json:"content"`
	IsSelected   bool           `json:"isSelected"`
	LockedScenes []int          `json:"lockedScenes"`
	WordCount    int            `json:"wordCount"`
	SceneCount   int            `json:"sceneCount"`
	CreatedAt    string         `json:"createdAt"`
	UpdatedAt    string         `json:"updatedAt"`
}

// NewVersionDetail 构造版本详情，content 需由调用方解析
func NewVersionDetail(v *ScriptVersion, content *ScriptContent) *VersionDetail {
	locked, _ := v.LockedSceneIndices()
	return &VersionDetail{
		ID:           v.ID,
		SessionID:    v.SessionID,
		VersionIndex: v.VersionIndex,
		Title:        v.Title,
		Content:      content,
		IsSelected:   v.IsSelected,
		LockedScenes: locked,
		WordCount:    v.WordCount,
		SceneCount:   v.SceneCount,
		CreatedAt:    v.CreatedAt.Format(TimeLayout),
		UpdatedAt:    v.UpdatedAt.Format(TimeLayout),
	}
}

// VersionUpdateResult 更新版本后的返回
type VersionUpdateResult struct {
	VersionID string `json:"versionId"`
	UpdatedAt string `json:"updatedAt"`
}

// HistoryItem 历史记录中的一次生成
type HistoryItem struct {
	SessionID       string `json:"sessionId"`
	VideoType       string `json:"videoType"`
	VideoTypeLabel  string `json:"videoTypeLabel"`
	ThemeInput      string `json:"themeInput"`
	StylePreference string `json:"stylePreference,omitempty"`
	VersionCount    int    `json:"versionCount"`
	CreatedAt       string `json:"createdAt"`
}

// HistoryPage 分页历史
type HistoryPage struct {
	Items    []HistoryItem `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

// LoginResult 登录返回
type LoginResult struct {
	Token string   `json:"token"`
	User  *UserDTO `json:"user"`
}
