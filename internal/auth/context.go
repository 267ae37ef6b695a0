package auth

import (
	"context"

	"github.com/Corphon/ScriptCraftAI/internal/models"
)

type contextKey struct{}

// Principal 当前请求的登录用户
type Principal struct {
	User  *models.UserDTO
	Token string // 请求携带的原始凭证
	// SessionID 对应的 Redis 会话 token，opaque token 登录时与 Token 相同
	SessionID string
}

// UserID 便捷访问
func (p *Principal) UserID() string {
	if p == nil || p.User == nil {
		return ""
	}
	return p.User.ID
}

// WithPrincipal 把登录用户放入 context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext 取出登录用户
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok && p != nil
}
