package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID 生成32位不含连字符的UUID
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
