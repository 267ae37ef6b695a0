// internal/auth/auth.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Corphon/ScriptCraftAI/internal/utils"
)

const issuer = "scriptcraft"

// 开发模式下使用的固定密钥，仅用于本地调试
const devSecret = "scriptcraft-dev-secret-do-not-use-in-production"

var (
	// ErrTokenExpired token 已过期
	ErrTokenExpired = errors.New("token has expired")
	// ErrTokenInvalid token 无法解析或签名错误
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenConfig holds the configuration for token generation
type TokenConfig struct {
	Secret     []byte
	Expiration time.Duration
}

// Claims JWT 载荷。SessionID 关联 Redis 中的登录会话
type Claims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager 签发与校验 HMAC-SHA256 签名的 JWT
type TokenManager struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenManager 创建 TokenManager
func NewTokenManager(config TokenConfig) (*TokenManager, error) {
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("secret key is required")
	}
	if config.Expiration <= 0 {
		config.Expiration = 7 * 24 * time.Hour
	}
	return &TokenManager{config: config, now: time.Now}, nil
}

// Issue 为用户签发 token，sessionID 可为空
func (m *TokenManager) Issue(userID, email, sessionID string) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:    userID,
		Email:     email,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.Expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify 校验签名和有效期，返回 ErrTokenExpired 或 ErrTokenInvalid
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ResolveSecret 确定签名密钥：显式配置优先，调试模式使用固定开发密钥，否则生成随机密钥
func ResolveSecret(configured string, debugMode bool) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}

	logger := utils.GetLogger()
	if debugMode {
		logger.Warn("JWT_SECRET 未设置，调试模式使用开发密钥", nil)
		return []byte(devSecret), nil
	}

	key, err := utils.GenerateSecureKey(32)
	if err != nil {
		return nil, err
	}
	logger.Warn("JWT_SECRET 未设置，已生成随机密钥，重启后已签发的 token 将失效", nil)
	return key, nil
}
