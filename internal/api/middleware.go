// internal/api/middleware.go
package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"

	"github.com/Corphon/ScriptCraftAI/internal/auth"
	"github.com/Corphon/ScriptCraftAI/internal/utils"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	userIDKey       = "user_id"
)

// RequestID 为每个请求分配ID；客户端传入的 X-Request-ID 会被沿用
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = utils.NewID()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger 记录每个请求的方法、路由、状态码与耗时，同时上报 HTTP 指标
func RequestLogger(metrics *utils.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.ObserveHTTP(c.Request.Method, route, status, elapsed)

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"route":      route,
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
			"request_id": requestID(c),
			"client_ip":  c.ClientIP(),
		}
		if userID := c.GetString(userIDKey); userID != "" {
			fields["user_id"] = userID
		}

		logger := utils.GetLogger()
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP请求", fields)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP请求", fields)
		default:
			logger.Info("HTTP请求", fields)
		}
	}
}

// Recovery 捕获 panic，记录堆栈并返回统一的服务器错误
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				utils.GetLogger().Error("请求处理发生panic", map[string]interface{}{
					"request_id": requestID(c),
					"path":       c.Request.URL.Path,
					"panic":      fmt.Sprint(r),
					"stack":      string(debug.Stack()),
				})
				NewResponseHelper().InternalError(c)
			}
		}()
		c.Next()
	}
}

// wrapHTTPMiddleware 把 net/http 中间件接入 gin；中间件没有调用 next 时中止 gin 的处理链
func wrapHTTPMiddleware(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

func rateLimitExceeded(w http.ResponseWriter, _ *http.Request) {
	writeResult(w, http.StatusTooManyRequests, msgTooManyRequests)
}

// clientIPKey 限流使用的客户端IP。默认只看连接地址，
// 只有部署在可信反向代理之后才读取 X-Forwarded-For / X-Real-IP / True-Client-IP
func clientIPKey(trustProxyHeaders bool) httprate.KeyFunc {
	if trustProxyHeaders {
		return httprate.KeyByRealIP
	}
	return httprate.KeyByIP
}

// RateLimitByIP 按客户端IP限流
func RateLimitByIP(limit int, window time.Duration, trustProxyHeaders bool) gin.HandlerFunc {
	return wrapHTTPMiddleware(httprate.Limit(limit, window,
		httprate.WithKeyFuncs(clientIPKey(trustProxyHeaders)),
		httprate.WithLimitHandler(rateLimitExceeded),
	))
}

// RateLimitByUser 按登录用户限流，必须放在 AuthMiddleware 之后
func RateLimitByUser(limit int, window time.Duration, trustProxyHeaders bool) gin.HandlerFunc {
	ipKey := clientIPKey(trustProxyHeaders)
	return wrapHTTPMiddleware(httprate.Limit(limit, window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if p, ok := auth.PrincipalFromContext(r.Context()); ok {
				return "user:" + p.UserID(), nil
			}
			return ipKey(r)
		}),
		httprate.WithLimitHandler(rateLimitExceeded),
	))
}
