package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	helper "github.com/Hertuq0910/roulette-backend/internal/common/helper"
	"github.com/Hertuq0910/roulette-backend/internal/common/response"
	"github.com/Hertuq0910/roulette-backend/internal/config"
	infmysql "github.com/Hertuq0910/roulette-backend/internal/infra/mysql"
	infrds "github.com/Hertuq0910/roulette-backend/internal/infra/redis"
	"github.com/Hertuq0910/roulette-backend/internal/model"
	"github.com/Hertuq0910/roulette-backend/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	goredis "github.com/redis/go-redis/v9"
)

var newRouletteService = service.NewRouletteService

// RouletteController 处理轮盘生命周期接口：
// POST  /api/roulettes           创建
// PATCH /api/roulettes/:id/open  开放下注
// GET   /api/roulettes/:id       状态快照（读缓存，DB 兜底）
type RouletteController struct{ beego.Controller }

// Create 创建新轮盘，成功返回 201 与轮盘ID
func (c *RouletteController) Create() {
	traceID := helper.GetTraceID(c.Ctx)

	svc := newRouletteService()
	id, err := svc.Create(c.Ctx.Request.Context(), traceID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Created(&c.Controller, map[string]interface{}{"id": id}, traceID)
}

// Open 将轮盘推进到 open 状态
// 已 open/closed 的轮盘返回 200 软失败（success=false，消息区分两种情况）
func (c *RouletteController) Open() {
	traceID := helper.GetTraceID(c.Ctx)
	rouletteID := c.Ctx.Input.Param(":id")
	if rouletteID == "" {
		response.BadRequest(&c.Controller, "missing roulette id", traceID)
		return
	}

	svc := newRouletteService()
	out, err := svc.Open(c.Ctx.Request.Context(), service.OpenInput{
		RouletteID: rouletteID,
		TraceID:    traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrRouletteNotFound) {
			response.NotFound(&c.Controller, "roulette not found", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"success": out.Success,
		"message": out.Message,
	}, traceID)
}

// 状态码到对外状态名的映射
func statusName(code int8) string {
	switch code {
	case model.StatusCreated:
		return "created"
	case model.StatusOpen:
		return "open"
	case model.StatusClosed:
		return "closed"
	}
	return "unknown"
}

// Get 查询轮盘状态快照
// 先读 Redis 缓存；缓存未命中则回源数据库并回填
// 功能开关 disable_snapshot_cache 可在线关闭缓存（排查缓存脏数据时强制读库）
func (c *RouletteController) Get() {
	traceID := helper.GetTraceID(c.Ctx)
	rouletteID := c.Ctx.Input.Param(":id")
	if rouletteID == "" {
		response.BadRequest(&c.Controller, "missing roulette id", traceID)
		return
	}

	ctx := context.Background()
	var info map[string]any
	cacheEnabled := !config.GetFeatureFlag("disable_snapshot_cache")

	// 读取缓存（Redis 不可用时直接回源）
	if r := infrds.Client(); r != nil && cacheEnabled {
		if bs, err := r.Get(ctx, infrds.RouletteInfoKey(rouletteID)).Bytes(); err == nil {
			_ = json.Unmarshal(bs, &info)
		} else if err != goredis.Nil {
			info = nil
		}
	}

	if info == nil {
		// DB fallback：从数据库读取，并回填 Redis
		rs, err := model.GetRouletteSnapshot(ctx, infmysql.SQLX(), rouletteID)
		if err != nil {
			if err == sql.ErrNoRows {
				response.NotFound(&c.Controller, "roulette not found", traceID)
				return
			}
			response.InternalError(&c.Controller, traceID)
			return
		}
		info = map[string]any{
			"roulette_id": rs.RouletteID,
			"status":      statusName(rs.Status),
			"opened_at":   rs.OpenedAt,
			"closed_at":   rs.ClosedAt,
			"created_at":  rs.CreatedAt,
		}
		// 已结算的轮盘附带开奖结果
		if rs.IsSettled == 1 {
			info["winning_number"] = rs.WinningNumber
			info["winning_color"] = rs.WinningColor
		}
		if r := infrds.Client(); r != nil && cacheEnabled {
			if b, e := json.Marshal(info); e == nil {
				_ = r.Set(ctx, infrds.RouletteInfoKey(rouletteID), b, 20*time.Second).Err()
			}
		}
	}

	response.Success(&c.Controller, info, traceID)
}
