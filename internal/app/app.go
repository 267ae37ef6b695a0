// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Corphon/ScriptCraftAI/internal/api"
	"github.com/Corphon/ScriptCraftAI/internal/auth"
	"github.com/Corphon/ScriptCraftAI/internal/config"
	"github.com/Corphon/ScriptCraftAI/internal/llm"
	"github.com/Corphon/ScriptCraftAI/internal/services"
	"github.com/Corphon/ScriptCraftAI/internal/storage"
	"github.com/Corphon/ScriptCraftAI/internal/telemetry"
	"github.com/Corphon/ScriptCraftAI/internal/utils"
)

const shutdownTimeout = 30 * time.Second

// App 持有服务运行期间的全部资源
type App struct {
	cfg     *config.Config
	db      *gorm.DB
	redis   *redis.Client
	locks   *services.LockManager
	metrics *utils.Metrics
	handler http.Handler

	shutdownTracing func(context.Context) error
}

// New 按配置初始化日志、追踪、数据库、Redis 与 AI 提供者，并组装 HTTP 处理链
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := utils.InitLogger(utils.LoggerOptions{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: cfg.DebugMode,
	}); err != nil {
		return nil, fmt.Errorf("初始化日志系统失败: %w", err)
	}
	logger := utils.GetLogger()

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("初始化追踪失败: %w", err)
	}

	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		_ = storage.Close(db)
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("同步表结构失败: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		_ = storage.Close(db)
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMProviderConfig())
	if err != nil {
		_ = rdb.Close()
		_ = storage.Close(db)
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("初始化AI提供者失败: %w", err)
	}
	logger.Info("AI提供者已就绪", map[string]interface{}{
		"provider": provider.GetName(),
		"models":   provider.GetSupportedModels(),
	})

	a, err := assemble(cfg, db, rdb, provider)
	if err != nil {
		_ = rdb.Close()
		_ = storage.Close(db)
		_ = shutdownTracing(ctx)
		return nil, err
	}
	a.shutdownTracing = shutdownTracing
	return a, nil
}

// OpenDatabase 按连接池配置连接 PostgreSQL
func OpenDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	return storage.Connect(ctx, cfg.DatabaseDSN, storage.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		Debug:           cfg.DebugMode,
	})
}

// assemble 用已建立的连接构造各层服务，依赖全部通过构造函数传入
func assemble(cfg *config.Config, db *gorm.DB, rdb *redis.Client, provider llm.Provider) (*App, error) {
	secret, err := auth.ResolveSecret(cfg.JWTSecret, cfg.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("生成 JWT 密钥失败: %w", err)
	}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: secret, Expiration: cfg.JWTExpiration})
	if err != nil {
		return nil, err
	}
	sessions := auth.NewSessionStore(rdb, cfg.SessionTTL)
	metrics := utils.NewMetrics()

	aiClient := services.NewLLMClient(provider, services.LLMClientOptions{
		ProviderName: cfg.LLMProvider,
		MaxAttempts:  cfg.AIMaxAttempts,
		Metrics:      metrics,
	})
	locks := services.NewLockManager(30*time.Minute, 5*time.Minute)

	userService := services.NewUserService(storage.NewUserStore(db), sessions, tokens)
	scriptService := services.NewScriptService(storage.NewScriptStore(db), aiClient, locks, services.ScriptServiceOptions{
		GenerationTimeout: cfg.GenerationTimeout,
		MaxVersions:       cfg.MaxVersionsPerRequest,
		Metrics:           metrics,
	})

	handler := api.NewHandler(userService, scriptService, sessions, func(ctx context.Context) error {
		return storage.Ping(ctx, db)
	}, cfg.RequestTimeout)

	router := api.NewRouter(api.RouterOptions{
		Handler:                    handler,
		Tokens:                     tokens,
		Metrics:                    metrics,
		Debug:                      cfg.DebugMode,
		RateLimitPerMinute:         cfg.RateLimitPerMinute,
		GenerateRateLimitPerMinute: cfg.GenerateRateLimitPerMinute,
		TrustProxyHeaders:          cfg.TrustProxyHeaders,
	})

	return &App{
		cfg:             cfg,
		db:              db,
		redis:           rdb,
		locks:           locks,
		metrics:         metrics,
		handler:         withCORS(cfg.AllowedOrigins, telemetry.Middleware(router)),
		shutdownTracing: func(context.Context) error { return nil },
	}, nil
}

// withCORS 跨域处理放在最外层，预检请求不进入 gin
func withCORS(origins []string, next http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: allowCredentials,
		MaxAge:           int((10 * time.Minute).Seconds()),
	})(next)
}

// Handler 完整的 HTTP 处理链
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run 启动 HTTP 服务，ctx 取消后优雅关闭
func (a *App) Run(ctx context.Context) error {
	logger := utils.GetLogger()
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("服务器启动", map[string]interface{}{"addr": a.cfg.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务器...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}
	logger.Info("服务器已关闭", nil)
	return nil
}

// Close 释放资源，可重复调用
func (a *App) Close(ctx context.Context) {
	logger := utils.GetLogger()

	if a.locks != nil {
		a.locks.Stop()
		a.locks = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("关闭 Redis 连接失败", map[string]interface{}{"error": err.Error()})
		}
		a.redis = nil
	}
	if a.db != nil {
		if err := storage.Close(a.db); err != nil {
			logger.Warn("关闭数据库失败", map[string]interface{}{"error": err.Error()})
		}
		a.db = nil
	}
	if a.shutdownTracing != nil {
		_ = a.shutdownTracing(ctx)
		a.shutdownTracing = nil
	}
	_ = logger.Close()
}
