package services

import (
	"fmt"
	"strings"

	"github.com/Corphon/ScriptCraftAI/internal/models"
)

// scriptSchema 要求模型原样返回的 JSON 结构
const scriptSchema = `{
  "title": "脚本标题",
  "alternativeTitles": ["备选标题1", "备选标题2"],
  "scenes": [
    {
      "timeRange": "0-10秒",
      "visualDescription": "画面描述",
      "voiceover": "文案/旁白",
      "subtitle": "字幕提示"
    }
  ],
  "videoElements": {
    "bgmStyle": "BGM风格建议",
    "shootingLocation": "拍摄场地建议",
    "effects": "特效/转场建议"
  },
  "endingCTA": ["结尾话术1", "结尾话术2", "结尾话术3"]
}
`

const generationPersona = `你是一位资深的短视频内容专家，有着丰富的创作经验。
特别擅长将复杂专业知识转化为通俗易懂的短视频内容。
你的脚本总是准确、专业、有趣，并且具有很强的实用价值。

创作要求：
1. 深入理解主题的专业内涵
2. 使用准确的术语和概念
3. 避免常识性错误
4. 提供可操作的实用建议
5. 保持内容有趣性和可看性

请先分析这个主题涉及的专业领域和关键要点：
- 核心概念：
- 实用技巧：
- 注意事项：
- 常见误区：

`

const generationRules = `要求：
1. 脚本时长控制在60秒内
2. 分镜数量3-6个
3. 每个分镜的文案简洁有力
4. 画面描述要具体可执行
5. 确保返回的是纯JSON格式，不要包含任何markdown标记或其他文字`

const regenerationRules = `要求：
1. 保持锁定的分镜完全不变
2. 只重新生成未锁定的分镜
3. 整体风格和质量要与原脚本保持一致
4. 返回完整的脚本JSON格式
5. 确保返回的是纯JSON格式，不要包含任何markdown标记或其他文字

`

// PromptBuilder 构造发给模型的提示词，纯函数，相同输入得到相同输出
type PromptBuilder struct{}

// NewPromptBuilder 创建 PromptBuilder
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildGenerationPrompt 首次生成的提示词
func (b *PromptBuilder) BuildGenerationPrompt(videoType, theme, stylePreference string) string {
	var sb strings.Builder
	sb.WriteString(generationPersona)
	sb.WriteString("请根据以下要求生成一个完整的短视频脚本：\n\n")
	fmt.Fprintf(&sb, "视频类型：%s\n", models.VideoTypeLabel(videoType))
	fmt.Fprintf(&sb, "主题：%s\n", theme)
	if label := models.StyleLabel(stylePreference); label != "" {
		fmt.Fprintf(&sb, "风格：%s\n", label)
	}

	sb.WriteString("\n请按照以下JSON格式返回脚本内容（直接返回JSON，不要有任何其他说明文字）：\n")
	sb.WriteString(scriptSchema)
	sb.WriteString("\n")
	sb.WriteString(generationRules)
	return sb.String()
}

// BuildRegenerationPrompt 局部重新生成的提示词，locked 中的分镜原样给出并要求保持不变
func (b *PromptBuilder) BuildRegenerationPrompt(original *models.ScriptContent, locked []int) string {
	if original == nil {
		original = &models.ScriptContent{}
	}
	lockedSet := make(map[int]struct{}, len(locked))
	for _, idx := range locked {
		lockedSet[idx] = struct{}{}
	}

	var sb strings.Builder
	sb.WriteString("你是一个专业的短视频脚本编辑专家。请基于现有的脚本，重新生成未锁定的分镜内容。\n\n")
	fmt.Fprintf(&sb, "原始脚本标题：%s\n\n", original.Title)
	sb.WriteString("分镜情况：\n")

	for i, scene := range original.Scenes {
		if _, ok := lockedSet[i]; ok {
			fmt.Fprintf(&sb, "分镜%d（已锁定，保持不变）：\n", i+1)
			fmt.Fprintf(&sb, "- 时间范围：%s\n", scene.TimeRange)
			fmt.Fprintf(&sb, "- 画面描述：%s\n", scene.VisualDescription)
			fmt.Fprintf(&sb, "- 文案/旁白：%s\n", scene.Voiceover)
			fmt.Fprintf(&sb, "- 字幕提示：%s\n\n", scene.Subtitle)
			continue
		}
		fmt.Fprintf(&sb, "分镜%d（需要重新生成）：\n", i+1)
		fmt.Fprintf(&sb, "- 时间范围：%s\n", scene.TimeRange)
		sb.WriteString("- 保持风格一致，但内容要创新\n\n")
	}

	sb.WriteString(regenerationRules)
	sb.WriteString("请按照以下JSON格式返回重新生成的完整脚本内容：\n")
	sb.WriteString(scriptSchema)
	return sb.String()
}
