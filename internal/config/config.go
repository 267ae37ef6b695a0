// internal/config/config.go
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config 存储应用配置
type Config struct {
	// 基础配置
	Addr      string `env:"ADDR,default=:8080"`
	DebugMode bool   `env:"DEBUG_MODE,default=false"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFile   string `env:"LOG_FILE"`

	// 数据库
	DatabaseDSN       string        `env:"DB_DSN,required"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`

	// Redis 会话存储
	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	// 认证
	JWTSecret     string        `env:"JWT_SECRET"`
	JWTExpiration time.Duration `env:"JWT_EXPIRATION,default=168h"`
	SessionTTL    time.Duration `env:"SESSION_TTL,default=168h"`

	// LLM相关配置
	LLMProvider           string        `env:"LLM_PROVIDER,default=qwen"`
	LLMAPIKey             string        `env:"LLM_API_KEY"`
	LLMBaseURL            string        `env:"LLM_BASE_URL"`
	LLMModel              string        `env:"LLM_MODEL"`
	LLMHTTPTimeout        time.Duration `env:"LLM_HTTP_TIMEOUT,default=60s"`
	GenerationTimeout     time.Duration `env:"GENERATION_TIMEOUT,default=70s"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT,default=180s"`
	AIMaxAttempts         uint          `env:"AI_MAX_ATTEMPTS,default=1"`
	MaxVersionsPerRequest int           `env:"MAX_VERSIONS_PER_REQUEST,default=3"`

	// HTTP
	AllowedOrigins             []string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitPerMinute         int      `env:"RATE_LIMIT_PER_MINUTE,default=100"`
	GenerateRateLimitPerMinute int      `env:"GENERATE_RATE_LIMIT_PER_MINUTE,default=10"`
	// 仅在可信反向代理之后开启，否则客户端可伪造 X-Forwarded-For 绕过限流
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS,default=false"`

	// 可观测性
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load 从 .env 文件（可选）和环境变量加载配置
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom 使用给定的查找器加载配置，测试中可传入 envconfig.MapLookuper
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置之间的约束
func (c *Config) Validate() error {
	if c.MaxVersionsPerRequest < 1 {
		return fmt.Errorf("MAX_VERSIONS_PER_REQUEST 必须大于 0")
	}
	if c.AIMaxAttempts < 1 {
		c.AIMaxAttempts = 1
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL 必须为正数")
	}
	if c.GenerationTimeout <= 0 || c.RequestTimeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT 和 REQUEST_TIMEOUT 必须为正数")
	}
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	return nil
}

// LLMProviderConfig 转换为 llm.Provider 初始化所需的键值配置
func (c *Config) LLMProviderConfig() map[string]string {
	cfg := map[string]string{
		"api_key": c.LLMAPIKey,
		"timeout": c.LLMHTTPTimeout.String(),
	}
	if c.LLMBaseURL != "" {
		cfg["base_url"] = c.LLMBaseURL
	}
	if c.LLMModel != "" {
		cfg["default_model"] = c.LLMModel
	}
	return cfg
}
