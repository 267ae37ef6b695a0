// internal/api/auth_middleware.go
package api

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ScriptCraftAI/internal/auth"
	"github.com/Corphon/ScriptCraftAI/internal/models"
	"github.com/Corphon/ScriptCraftAI/internal/utils"
)

// SessionBackend 登录会话存储
type SessionBackend interface {
	GetUser(ctx context.Context, token string) (*models.UserDTO, error)
	Refresh(ctx context.Context, token string) error
	Ping(ctx context.Context) error
	OnlineCount(ctx context.Context) (int, error)
}

// TokenVerifier 校验 JWT
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware 校验 Bearer 凭证。先按 Redis 会话 token 查找，找不到再按 JWT 校验，
// JWT 只有在其 sid 对应的会话仍然存在时才有效。通过后刷新会话有效期。
func AuthMiddleware(sessions SessionBackend, tokens TokenVerifier) gin.HandlerFunc {
	rh := NewResponseHelper()
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			rh.Unauthorized(c, msgUnauthorized)
			return
		}

		ctx := c.Request.Context()
		logger := utils.GetLogger()

		sessionID := token
		user, err := sessions.GetUser(ctx, token)
		if errors.Is(err, auth.ErrSessionNotFound) {
			var claims *auth.Claims
			claims, err = tokens.Verify(token)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					rh.Unauthorized(c, msgTokenExpired)
				} else {
					rh.Unauthorized(c, msgUnauthorized)
				}
				return
			}

			sessionID = claims.SessionID
			user, err = sessions.GetUser(ctx, sessionID)
			if errors.Is(err, auth.ErrSessionNotFound) {
				// 已退出登录或会话过期，JWT 随之失效
				rh.Unauthorized(c, msgTokenExpired)
				return
			}
			if err == nil && user.ID != claims.UserID {
				logger.Warn("JWT 与会话用户不一致", map[string]interface{}{
					"request_id": requestID(c),
					"claims_uid": claims.UserID,
				})
				rh.Unauthorized(c, msgUnauthorized)
				return
			}
		}
		if err != nil {
			logger.Error("读取登录会话失败", map[string]interface{}{
				"request_id": requestID(c),
				"error":      err.Error(),
			})
			rh.InternalError(c)
			return
		}

		if err := sessions.Refresh(ctx, sessionID); err != nil {
			logger.Warn("刷新会话有效期失败", map[string]interface{}{
				"user_id": user.ID,
				"error":   err.Error(),
			})
		}

		principal := &auth.Principal{User: user, Token: token, SessionID: sessionID}
		c.Request = c.Request.WithContext(auth.WithPrincipal(ctx, principal))
		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// currentPrincipal 读取 AuthMiddleware 放入的登录用户
func currentPrincipal(c *gin.Context) (*auth.Principal, bool) {
	return auth.PrincipalFromContext(c.Request.Context())
}
