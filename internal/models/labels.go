package models

// LabeledOption 代码与展示标签
type LabeledOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// VideoTypes 支持的视频类型
var VideoTypes = []LabeledOption{
	{Value: "product_review", Label: "产品测评"},
	{Value: "knowledge", Label: "知识科普"},
	{Value: "vlog", Label: "Vlog日记"},
	{Value: "comedy", Label: "搞笑剧情"},
	{Value: "food", Label: "美食制作"},
	{Value: "makeup", Label: "美妆教程"},
	{Value: "movie", Label: "影视解说"},
	{Value: "unboxing", Label: "开箱体验"},
	{Value: "skill", Label: "技能教学"},
}

// StylePreferences 支持的风格偏好
var StylePreferences = []LabeledOption{
	{Value: "humorous", Label: "幽默风趣"},
	{Value: "professional", Label: "专业严谨"},
	{Value: "cute", Label: "亲切可爱"},
	{Value: "passionate", Label: "激情澎湃"},
	{Value: "emotional", Label: "温情故事"},
	{Value: "suspenseful", Label: "悬念刺激"},
}

// DefaultVideoTypeLabel 未知视频类型的标签
const DefaultVideoTypeLabel = "其他"

// VideoTypeLabel 返回视频类型标签
func VideoTypeLabel(code string) string {
	for _, opt := range VideoTypes {
		if opt.Value == code {
			return opt.Label
		}
	}
	return DefaultVideoTypeLabel
}

// StyleLabel 返回风格标签，未知风格返回空字符串
func StyleLabel(code string) string {
	for _, opt := range StylePreferences {
		if opt.Value == code {
			return opt.Label
		}
	}
	return ""
}
