package api

import (
	"errors"
	"strings"

	helper "github.com/Hertuq0910/roulette-backend/internal/common/helper"
	"github.com/Hertuq0910/roulette-backend/internal/common/response"
	"github.com/Hertuq0910/roulette-backend/internal/service"

	beego "github.com/beego/beego/v2/server/web"

	mysqlerr "github.com/go-sql-driver/mysql"
)

var newBetService = service.NewBetService

type BetController struct{ beego.Controller }

/*
	幂等键：客户端生成并随请求传入，用于在网络重试/超时重发/服务端重试时保证“同一业务请求只生效一次”。
	使用约定：
	- 对于“同一次下注”的所有重试，请传相同的 idempotency_key；
	- 业务语义不同（如金额/类型/轮盘/用户不同）的请求必须使用不同的 key；
	- 建议生成方式：UUID（推荐）或对 user_id+roulette_id+betType+amount 做哈希；
	- 不传则不做幂等保护（与上游行为一致，重复提交视为两笔注）。
	服务端幂等保证（多层防护）：
	1) Redis 进行中锁（约45秒）：并发重复请求直接返回 202，并携带 Retry-After: 1；
	2) MySQL 唯一键：在事务内先插入 idempotency_keys(idempotency_key)，若已存在则视为重复请求，返回首次请求的结果；
	3) 结果缓存：首次成功结果会写入 Redis（短期缓存），后续重复可直接读缓存快速返回。
*/

// Bet 处理投注接口：POST /api/roulettes/:id/bets
func (c *BetController) Bet() {
	traceID := helper.GetTraceID(c.Ctx)

	rouletteID := c.Ctx.Input.Param(":id")
	if rouletteID == "" {
		response.BadRequest(&c.Controller, "missing roulette id", traceID)
		return
	}

	// 1) 解析入参：只做传输层形状检查
	// 投注字段的业务校验在服务层锁定轮盘之后进行，保证不存在/未开放的轮盘
	// 返回 404/409 而不是字段错误
	bp, ok, msg := helper.ParseBet(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	svc := newBetService()

	// 进行投注业务逻辑处理
	out, err := svc.PlaceBet(c.Ctx.Request.Context(), service.BetInput{
		RouletteID:     rouletteID,
		UserID:         bp.UserID,
		BetType:        bp.BetType,
		Number:         bp.Number,
		Color:          bp.Color,
		Amount:         bp.Amount,
		IdempotencyKey: bp.IdempotencyKey,
		TraceID:        traceID,
	})
	if err != nil {
		// MySQL 唯一键冲突
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		// 重复请求进行中
		if errors.Is(err, service.ErrDuplicateInFlight) {
			response.Accepted(&c.Controller, "重复请求进行中，请稍后重试", traceID)
			return
		}
		// 轮盘不存在
		if errors.Is(err, service.ErrRouletteNotFound) {
			response.NotFound(&c.Controller, "roulette not found", traceID)
			return
		}
		// 状态不允许投注
		if errors.Is(err, service.ErrInvalidStateBet) {
			response.Conflict(&c.Controller, response.CodeNotOpenForBets, traceID)
			return
		}
		// 投注字段校验失败
		errMsg := err.Error()
		if strings.HasPrefix(errMsg, "invalid ") || strings.HasPrefix(errMsg, "missing ") {
			response.BadRequest(&c.Controller, errMsg, traceID)
			return
		}
		// 系统错误
		response.InternalError(&c.Controller, traceID)
		return
	}

	// 成功响应
	response.Created(&c.Controller, out, traceID)
}
