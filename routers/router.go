package routers

import (
	"github.com/Hertuq0910/roulette-backend/internal/controller/api"
	"github.com/Hertuq0910/roulette-backend/internal/metrics"
	"github.com/Hertuq0910/roulette-backend/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
)

// init 注册HTTP路由与全局过滤器
// 注意：包 init 先于 main 里的 config.Load 执行，过滤器必须无条件注册，
// 是否启用由过滤器在每个请求时读取当前配置决定
func init() {
	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最先执行，捕获所有 panic）
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RecoveryFilter)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（未启用时过滤器直接放行）
	beego.InsertFilter("/*", beego.BeforeExec, middleware.CORSFilter)

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter)

	// 健康检查
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")

	// ========== 业务 API ==========

	// 轮盘生命周期：创建 / 开放 / 快照
	beego.Router("/api/roulettes", &api.RouletteController{}, "post:Create")
	beego.Router("/api/roulettes/:id/open", &api.RouletteController{}, "patch:Open")
	beego.Router("/api/roulettes/:id", &api.RouletteController{}, "get:Get")

	// 投注接口：限流（未启用时过滤器直接放行）
	beego.InsertFilter("/api/roulettes/*/bets", beego.BeforeExec, middleware.RateLimitFilter)
	beego.Router("/api/roulettes/:id/bets", &api.BetController{}, "post:Bet")

	// 关闭接口：开奖 + 结算
	beego.Router("/api/roulettes/:id/close", &api.CloseController{}, "post:Close")

	// 用户查询接口
	beego.Router("/api/user/bets", &api.UserController{}, "get:Bets")
}
