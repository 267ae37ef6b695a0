// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecureKey generates a cryptographically secure random key of specified length
func GenerateSecureKey(length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("key length must be greater than 0")
	}

	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate secure key: %w", err)
	}
	return key, nil
}

// RandomToken 返回 2*n 个十六进制字符的随机串
func RandomToken(n int) (string, error) {
	key, err := GenerateSecureKey(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}
