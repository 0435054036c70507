package api

import (
	"strconv"
	"strings"

	helper "github.com/Hertuq0910/roulette-backend/internal/common/helper"
	"github.com/Hertuq0910/roulette-backend/internal/common/response"
	infmysql "github.com/Hertuq0910/roulette-backend/internal/infra/mysql"
	"github.com/Hertuq0910/roulette-backend/internal/model"

	beego "github.com/beego/beego/v2/server/web"
)

// UserController 用户侧查询接口
// GET /api/user/bets?roulette_id=&limit=     用户ID 取 user-id 请求头
type UserController struct{ beego.Controller }

// Bets 查询当前用户的投注记录（最新在前）
func (c *UserController) Bets() {
	traceID := helper.GetTraceID(c.Ctx)

	userID := helper.GetUserID(c.Ctx, "")
	if userID == "" {
		response.BadRequest(&c.Controller, "missing user id", traceID)
		return
	}

	rouletteID := strings.TrimSpace(c.Ctx.Input.Query("roulette_id"))
	limit := 10
	if ls := strings.TrimSpace(c.Ctx.Input.Query("limit")); ls != "" {
		n, err := strconv.Atoi(ls)
		if err != nil || n <= 0 {
			response.BadRequest(&c.Controller, "invalid limit", traceID)
			return
		}
		limit = n
	}

	records, err := model.ListUserBets(c.Ctx.Request.Context(), infmysql.SQLX(), userID, rouletteID, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"user_id": userID,
		"bets":    records,
		"count":   len(records),
	}, traceID)
}
