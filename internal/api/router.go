// internal/api/router.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ScriptCraftAI/internal/utils"
)

// RouterOptions 构建路由所需的依赖
type RouterOptions struct {
	Handler *Handler
	Tokens  TokenVerifier
	Metrics *utils.Metrics
	Debug   bool
	// RateLimitPerMinute 每个IP每分钟的请求上限，<= 0 不限流
	RateLimitPerMinute int
	// GenerateRateLimitPerMinute 每个用户每分钟的生成类请求上限
	GenerateRateLimitPerMinute int
	// TrustProxyHeaders 为 true 时客户端IP取自代理头，否则取连接地址
	TrustProxyHeaders bool
}

// NewRouter 配置HTTP路由
func NewRouter(opts RouterOptions) *gin.Engine {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	RegisterValidators()

	h := opts.Handler
	r := gin.New()
	if !opts.TrustProxyHeaders {
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(RequestID(), RequestLogger(opts.Metrics), Recovery())

	r.NoRoute(func(c *gin.Context) {
		h.Response.Fail(c, http.StatusNotFound, msgRouteNotFound)
	})

	// ===============================
	// 运维端点
	// ===============================
	r.GET("/healthz", h.Health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	api := r.Group("/api")
	if opts.RateLimitPerMinute > 0 {
		api.Use(RateLimitByIP(opts.RateLimitPerMinute, time.Minute, opts.TrustProxyHeaders))
	}

	requireAuth := AuthMiddleware(h.Sessions, opts.Tokens)
	generateLimit := func(c *gin.Context) { c.Next() }
	if opts.GenerateRateLimitPerMinute > 0 {
		generateLimit = RateLimitByUser(opts.GenerateRateLimitPerMinute, time.Minute, opts.TrustProxyHeaders)
	}

	// ===============================
	// 认证相关路由
	// ===============================
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.GET("/profile", requireAuth, h.GetProfile)
		authGroup.PUT("/profile", requireAuth, h.UpdateProfile)
		authGroup.POST("/logout", requireAuth, h.Logout)
	}

	// ===============================
	// 脚本相关路由
	// ===============================
	scripts := api.Group("/scripts", requireAuth)
	{
		scripts.POST("/generate", generateLimit, h.GenerateScript)

		versions := scripts.Group("/versions/:id")
		{
			versions.GET("", h.GetVersion)
			versions.PUT("", h.UpdateVersion)
			versions.POST("/select", h.SelectVersion)
			versions.PUT("/scenes/:index/lock", h.ToggleSceneLock)
			versions.POST("/regenerate", generateLimit, h.RegenerateVersion)
		}

		sessions := scripts.Group("/sessions")
		{
			sessions.GET("", h.ListSessions)
			sessions.GET("/:id", h.GetSessionVersions)
			sessions.DELETE("/:id", h.DeleteSession)
		}
	}

	return r
}
