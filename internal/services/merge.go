package services

import (
	"github.com/Corphon/ScriptCraftAI/internal/models"
)

// MergeFallbackReason 合并回退原因
type MergeFallbackReason string

const (
	// FallbackSceneCountMismatch 新旧分镜数量不同，锁定下标不再指向同一分镜
	FallbackSceneCountMismatch MergeFallbackReason = "scene_count_mismatch"
)

// MergeFallback 锁定分镜被放弃时的说明
type MergeFallback struct {
	Reason              MergeFallbackReason `json:"reason"`
	OriginalSceneCount  int                 `json:"originalSceneCount"`
	GeneratedSceneCount int                 `json:"generatedSceneCount"`
	DroppedLocks        []int               `json:"droppedLocks"`
}

// MergeResult 合并结果，Fallback 为 nil 表示锁定分镜全部保留
type MergeResult struct {
	Content  *models.ScriptContent `json:"content"`
	Fallback *MergeFallback        `json:"fallback,omitempty"`
}

// MergeScenes 按锁定集合合并原脚本与重新生成的脚本。
// 分镜数量一致时逐位取值：锁定取原分镜，否则取新分镜；数量不一致时整体采用新分镜并返回 Fallback。
// 标题、备选标题、视频元素和结尾话术始终沿用原脚本。
func MergeScenes(original, generated *models.ScriptContent, locked []int) MergeResult {
	merged := &models.ScriptContent{
		Title:             original.Title,
		AlternativeTitles: original.AlternativeTitles,
		VideoElements:     original.VideoElements,
		EndingCTA:         original.EndingCTA,
	}

	if len(original.Scenes) != len(generated.Scenes) {
		merged.Scenes = append([]models.Scene(nil), generated.Scenes...)
		return MergeResult{
			Content: merged,
			Fallback: &MergeFallback{
				Reason:              FallbackSceneCountMismatch,
				OriginalSceneCount:  len(original.Scenes),
				GeneratedSceneCount: len(generated.Scenes),
				DroppedLocks:        append([]int{}, locked...),
			},
		}
	}

	lockedSet := make(map[int]struct{}, len(locked))
	for _, idx := range locked {
		lockedSet[idx] = struct{}{}
	}

	merged.Scenes = make([]models.Scene, len(generated.Scenes))
	for i := range generated.Scenes {
		if _, ok := lockedSet[i]; ok {
			merged.Scenes[i] = original.Scenes[i]
		} else {
			merged.Scenes[i] = generated.Scenes[i]
		}
	}
	return MergeResult{Content: merged}
}
