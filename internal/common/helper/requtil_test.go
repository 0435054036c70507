package helper

import (
	"net/http/httptest"
	"strings"
	"testing"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

func newBetCtx(t *testing.T, target, contentType, body string) *beegocontext.Context {
	t.Helper()
	ctx := beegocontext.NewContext()
	req := httptest.NewRequest("POST", target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	ctx.Reset(httptest.NewRecorder(), req)
	return ctx
}

func TestParseBetFromJSON(t *testing.T) {
	body := `{"betType":"number","number":0,"amount":50,"user_id":"u9"}`
	out, ok, msg := ParseBetFromJSON(strings.NewReader(body))
	if !ok {
		t.Fatalf("parse failed: %s", msg)
	}
	if out.Number == nil || *out.Number != 0 {
		t.Fatalf("number 0 must survive parsing, got %v", out.Number)
	}
	if out.BetType != "number" || out.Amount != 50 || out.UserID != "u9" {
		t.Fatalf("unexpected parse result: %+v", out)
	}

	if _, ok, _ := ParseBetFromJSON(strings.NewReader("{not json")); ok {
		t.Fatalf("malformed json must be rejected")
	}
}

func TestParseBetShapeOnly(t *testing.T) {
	// ParseBet 只做形状检查：betType/number/color/amount 的取值不在这里判断，
	// 非法取值原样透传给服务层
	ctx := newBetCtx(t, "/api/roulettes/r1/bets", "application/json",
		`{"betType":"corner","number":99,"amount":999999,"user_id":"u1"}`)
	out, ok, msg := ParseBet(ctx)
	if !ok {
		t.Fatalf("shape-valid request rejected: %s", msg)
	}
	if out.BetType != "corner" || out.Number == nil || *out.Number != 99 || out.Amount != 999999 {
		t.Fatalf("fields must pass through untouched: %+v", out)
	}

	// 超长输入是形状问题，这里拦截
	long := strings.Repeat("a", 65)
	ctx = newBetCtx(t, "/api/roulettes/r1/bets", "application/json",
		`{"betType":"color","color":"red","amount":10,"user_id":"`+long+`"}`)
	if _, ok, msg := ParseBet(ctx); ok || msg != "invalid request" {
		t.Fatalf("oversized user id must be rejected, got ok=%v msg=%q", ok, msg)
	}

	// 畸形 JSON 也是形状问题
	ctx = newBetCtx(t, "/api/roulettes/r1/bets", "application/json", "{not json")
	if _, ok, _ := ParseBet(ctx); ok {
		t.Fatalf("malformed json must be rejected")
	}
}

func TestParseBetHeaderUserIDWins(t *testing.T) {
	ctx := newBetCtx(t, "/api/roulettes/r1/bets", "application/json",
		`{"betType":"color","color":"red","amount":10,"user_id":"body-user"}`)
	ctx.Request.Header.Set("user-id", "header-user")
	out, ok, msg := ParseBet(ctx)
	if !ok {
		t.Fatalf("parse failed: %s", msg)
	}
	if out.UserID != "header-user" {
		t.Fatalf("user-id header must win over body, got %q", out.UserID)
	}
}

func TestIsJSONContentType(t *testing.T) {
	if !IsJSONContentType("application/json; charset=utf-8") {
		t.Fatalf("json content type not recognized")
	}
	if IsJSONContentType("application/x-www-form-urlencoded") {
		t.Fatalf("form content type misrecognized as json")
	}
}
