package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/Hertuq0910/roulette-backend/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

func newTestCtx(method, target string) *beegocontext.Context {
	ctx := beegocontext.NewContext()
	ctx.Reset(httptest.NewRecorder(), httptest.NewRequest(method, target, nil))
	return ctx
}

// 过滤器在路由注册阶段无条件挂载，配置在 main 里稍后才加载；
// 配置尚未就绪时必须安全放行，就绪后必须在请求时生效
func TestCORSFilterBeforeConfigLoaded(t *testing.T) {
	config.Set(nil)

	ctx := newTestCtx("GET", "/api/roulettes")
	ctx.Request.Header.Set("Origin", "http://example.com")
	CORSFilter(ctx)

	if got := ctx.ResponseWriter.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("no config loaded, expected no CORS headers, got %q", got)
	}
}

func TestCORSFilterAppliesConfigAtRequestTime(t *testing.T) {
	cfg := &config.Config{}
	cfg.CORS.Enabled = true
	cfg.CORS.AllowedOrigins = []string{"http://example.com"}
	cfg.CORS.AllowedMethods = []string{"GET", "POST"}
	cfg.CORS.AllowedHeaders = []string{"Content-Type"}
	config.Set(cfg)
	defer config.Set(nil)

	ctx := newTestCtx("GET", "/api/roulettes")
	ctx.Request.Header.Set("Origin", "http://example.com")
	CORSFilter(ctx)

	if got := ctx.ResponseWriter.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("allowed origin not echoed, got %q", got)
	}

	// 不在白名单的 Origin 不应放行
	ctx2 := newTestCtx("GET", "/api/roulettes")
	ctx2.Request.Header.Set("Origin", "http://evil.example")
	CORSFilter(ctx2)
	if got := ctx2.ResponseWriter.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin must not get CORS headers, got %q", got)
	}
}

func TestRateLimitFilterBeforeConfigLoaded(t *testing.T) {
	config.Set(nil)

	ctx := newTestCtx("POST", "/api/roulettes/r1/bets")
	RateLimitFilter(ctx) // 配置未加载时直接放行，不 panic

	if status := ctx.ResponseWriter.Status; status == 429 {
		t.Fatalf("rate limit must not trigger without config")
	}
}
