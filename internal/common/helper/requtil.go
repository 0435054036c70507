package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// GetUserID 用户标识：优先 user-id 请求头，其次 body/query 的 user_id
func GetUserID(ctx *beegocontext.Context, bodyUserID string) string {
	if h := strings.TrimSpace(ctx.Input.Header("user-id")); h != "" {
		return h
	}
	if bodyUserID != "" {
		return strings.TrimSpace(bodyUserID)
	}
	return strings.TrimSpace(ctx.Input.Query("user_id"))
}

// parseByContentType 按 Content-Type 选择解析函数，减少重复 if/else 分支
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// BetParsed 为解析后的投注入参（与控制器/服务层解耦）
// Number 用指针区分"未传"与"传了 0"
type BetParsed struct {
	UserID         string `json:"user_id"`
	BetType        string `json:"betType"`
	Number         *int   `json:"number"`
	Color          string `json:"color"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ParseBetFromJSON 解析 JSON 到 BetParsed。失败返回 false 与错误消息。
func ParseBetFromJSON(r io.Reader) (BetParsed, bool, string) {
	var out BetParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return BetParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

// ParseBetFromForm 从表单读取字段，返回 BetParsed。失败返回 false 与可读错误信息。
func ParseBetFromForm(ctx *beegocontext.Context) (BetParsed, bool, string) {
	var out BetParsed
	out.UserID = strings.TrimSpace(ctx.Input.Query("user_id"))
	out.BetType = strings.TrimSpace(ctx.Input.Query("betType"))
	out.Color = strings.TrimSpace(ctx.Input.Query("color"))
	out.IdempotencyKey = strings.TrimSpace(ctx.Input.Query("idempotency_key"))

	if nStr := strings.TrimSpace(ctx.Input.Query("number")); nStr != "" {
		n, err := strconv.Atoi(nStr)
		if err != nil {
			return BetParsed{}, false, "invalid number. must be between 0 and 36"
		}
		out.Number = &n
	}

	aStr := strings.TrimSpace(ctx.Input.Query("amount"))
	if aStr == "" {
		return BetParsed{}, false, "invalid amount. max is 10000"
	}
	a, err := strconv.ParseInt(aStr, 10, 64)
	if err != nil {
		return BetParsed{}, false, "invalid amount. max is 10000"
	}
	out.Amount = a

	return out, true, ""
}

// ParseBet 按 Content-Type 自动解析投注请求
// 只做传输层的形状检查（JSON/表单能否解出、超长输入），投注语义
// （betType/number/color/amount 取值）由服务层在锁定轮盘之后校验
// 注意：user-id 请求头优先于 body 字段，返回前先合并
func ParseBet(ctx *beegocontext.Context) (BetParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseBetFromJSON, ParseBetFromForm)
	if !ok {
		return BetParsed{}, false, msg
	}
	out.UserID = GetUserID(ctx, out.UserID)
	// 额外长度保护，避免异常超长输入
	if len(out.UserID) > 64 || len(out.IdempotencyKey) > 64 {
		return BetParsed{}, false, "invalid request"
	}
	return out, true, ""
}
