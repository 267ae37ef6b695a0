package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ScriptContent 脚本的结构化内容，以 JSON 形式保存在 ScriptVersion 中
type ScriptContent struct {
	Title             string        `json:"title" validate:"required"`
	AlternativeTitles []string      `json:"alternativeTitles"`
	Scenes            []Scene       `json:"scenes" validate:"required,min=1,dive"`
	VideoElements     VideoElements `json:"videoElements"`
	EndingCTA         []string      `json:"endingCTA"`
}

// Scene 分镜
type Scene struct {
	TimeRange         string `json:"timeRange"`
	VisualDescription string `json:"visualDescription"`
	Voiceover         string `json:"voiceover"` // 文案/旁白
	Subtitle          string `json:"subtitle"`
}

// VideoElements 视频元素建议
type VideoElements struct {
	BgmStyle         string `json:"bgmStyle"`
	ShootingLocation string `json:"shootingLocation"`
	Effects          string `json:"effects"`
}

var contentValidator = validator.New()

// Validate 检查内容是否满足脚本结构的最低要求
func (c *ScriptContent) Validate() error {
	if c == nil {
		return fmt.Errorf("script content is nil")
	}
	if err := contentValidator.Struct(c); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+":"+fe.Tag())
			}
			return fmt.Errorf("invalid script content (%s)", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// WordCount 统计所有分镜旁白的字符数
func (c *ScriptContent) WordCount() int {
	count := 0
	for _, scene := range c.Scenes {
		count += utf8.RuneCountInString(scene.Voiceover)
	}
	return count
}

// SceneCount 分镜数量
func (c *ScriptContent) SceneCount() int {
	return len(c.Scenes)
}

// FirstSceneVisual 第一个分镜的画面描述，没有分镜时为空
func (c *ScriptContent) FirstSceneVisual() string {
	if c == nil || len(c.Scenes) == 0 {
		return ""
	}
	return c.Scenes[0].VisualDescription
}
