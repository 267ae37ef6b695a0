package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/ScriptCraftAI/internal/config"
	"github.com/Corphon/ScriptCraftAI/internal/llm"
	"github.com/Corphon/ScriptCraftAI/internal/storage"
)

type echoProvider struct{}

func (echoProvider) Initialize(map[string]string) error { return nil }
func (echoProvider) GetName() string                    { return "echo" }
func (echoProvider) GetSupportedModels() []string       { return []string{"echo-1"} }
func (echoProvider) CompleteText(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Text: req.Prompt}, nil
}

func newTestApp(t *testing.T, origins []string) *App {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(ctx, sqlite.Open(filepath.Join(t.TempDir(), "app.db")), storage.Options{MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(ctx, db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg, err := config.LoadFrom(ctx, envconfig.MapLookuper(map[string]string{
		"DB_DSN":     "unused",
		"JWT_SECRET": "app-test-secret",
	}))
	require.NoError(t, err)
	cfg.AllowedOrigins = origins

	a, err := assemble(cfg, db, rdb, echoProvider{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func TestHandlerServesHealth(t *testing.T) {
	a := newTestApp(t, nil)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	a := newTestApp(t, []string{"https://studio.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/scripts/generate", nil)
	req.Header.Set("Origin", "https://studio.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://studio.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/scripts/generate", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	a := newTestApp(t, nil)
	a.cfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	a := newTestApp(t, nil)
	a.Close(context.Background())
	a.Close(context.Background())
	assert.Nil(t, a.db)
	assert.Nil(t, a.redis)
}
