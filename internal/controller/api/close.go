package api

import (
	"errors"

	helper "github.com/Hertuq0910/roulette-backend/internal/common/helper"
	"github.com/Hertuq0910/roulette-backend/internal/common/response"
	"github.com/Hertuq0910/roulette-backend/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newCloseService = service.NewCloseService

// CloseController 处理关闭轮盘接口：POST /api/roulettes/:id/close
// 关闭 = 开奖 + 全量结算，单事务完成；重复关闭返回 409
type CloseController struct{ beego.Controller }

func (c *CloseController) Close() {
	traceID := helper.GetTraceID(c.Ctx)

	rouletteID := c.Ctx.Input.Param(":id")
	if rouletteID == "" {
		response.BadRequest(&c.Controller, "missing roulette id", traceID)
		return
	}

	svc := newCloseService()
	out, err := svc.CloseRoulette(c.Ctx.Request.Context(), service.CloseInput{
		RouletteID: rouletteID,
		TraceID:    traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrRouletteNotFound) {
			response.NotFound(&c.Controller, "roulette not found", traceID)
			return
		}
		// 未开放或已关闭，不允许关闭
		if errors.Is(err, service.ErrInvalidStateClose) {
			response.Conflict(&c.Controller, response.CodeInvalidStateClose, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}
