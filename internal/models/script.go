package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
)

// ScriptSession 一次脚本生成请求，对应 script_sessions 表
type ScriptSession struct {
	ID              string    `gorm:"type:varchar(32);primaryKey" json:"id"`
	UserID          string    `gorm:"type:varchar(32);not null;index:idx_script_sessions_user_created,priority:1" json:"userId"`
	VideoType       string    `gorm:"type:varchar(32);not null;index" json:"videoType"`
	ThemeInput      string    `gorm:"type:varchar(200);not null" json:"themeInput"`
	StylePreference string    `gorm:"type:varchar(32)" json:"stylePreference"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index:idx_script_sessions_user_created,priority:2" json:"createdAt"`
}

// ScriptVersion 会话下的一个候选脚本，对应 script_versions 表
type ScriptVersion struct {
	ID           string         `gorm:"type:varchar(32);primaryKey"`
	SessionID    string         `gorm:"type:varchar(32);not null;index"`
	VersionIndex int            `gorm:"not null"`
	Title        string         `gorm:"type:varchar(255)"`
	ContentJSON  datatypes.JSON `gorm:"not null"`
	IsSelected   bool           `gorm:"not null;default:false"`
	LockedScenes datatypes.JSON // 已锁定分镜下标，如 [0,2]，为空时存 NULL
	WordCount    int            `gorm:"not null;default:0"`
	SceneCount   int            `gorm:"not null;default:0"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
}

// Content 解析保存的脚本内容
func (v *ScriptVersion) Content() (*ScriptContent, error) {
	var content ScriptContent
	if len(v.ContentJSON) == 0 {
		return nil, fmt.Errorf("version %s has no content", v.ID)
	}
	if err := json.Unmarshal(v.ContentJSON, &content); err != nil {
		return nil, fmt.Errorf("decode content of version %s: %w", v.ID, err)
	}
	return &content, nil
}

// ApplyContent 写入内容并同步标题、字数与分镜数
func (v *ScriptVersion) ApplyContent(content *ScriptContent) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}
	v.ContentJSON = datatypes.JSON(raw)
	v.Title = content.Title
	v.WordCount = content.WordCount()
	v.SceneCount = content.SceneCount()
	return nil
}

// LockedSceneIndices 解析锁定的分镜下标，升序返回；缺失或无法解析时返回空集合
func (v *ScriptVersion) LockedSceneIndices() ([]int, error) {
	if len(v.LockedScenes) == 0 || string(v.LockedScenes) == "null" {
		return []int{}, nil
	}
	var indices []int
	if err := json.Unmarshal(v.LockedScenes, &indices); err != nil {
		return []int{}, fmt.Errorf("decode locked scenes %q: %w", string(v.LockedScenes), err)
	}
	return normalizeIndices(indices), nil
}

// SetLockedScenes 去重排序后保存，空集合保存为 NULL
func (v *ScriptVersion) SetLockedScenes(indices []int) {
	indices = normalizeIndices(indices)
	if len(indices) == 0 {
		v.LockedScenes = nil
		return
	}
	raw, _ := json.Marshal(indices)
	v.LockedScenes = datatypes.JSON(raw)
}

func normalizeIndices(indices []int) []int {
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
