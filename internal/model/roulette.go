package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Roulette 对应 roulettes 表
// 说明：时间为毫秒时间戳；状态采用"数值码+状态机字符串"映射（见 internal/state）
// status: 1=created 2=open 3=closed
// winning_color: 空字符串=未开奖 red|black=已开奖
// is_settled: 0=未结算 1=已结算（防止重复结算）
type Roulette struct {
	ID            int64  `db:"id"`
	RouletteID    string `db:"roulette_id"`
	Status        int8   `db:"status"`
	WinningNumber int    `db:"winning_number"` // 仅在 is_settled=1 后有意义
	WinningColor  string `db:"winning_color"`
	IsSettled     int8   `db:"is_settled"`
	OpenedAt      int64  `db:"opened_at"` // 0=未设置
	ClosedAt      int64  `db:"closed_at"` // 0=未设置
	TraceID       string `db:"trace_id"`
	CreatedAt     int64  `db:"created_at"`
	UpdatedAt     int64  `db:"updated_at"`
}

// 状态码与状态机字符串的映射（数值入库，字符串进状态机）
const (
	StatusCreated int8 = 1
	StatusOpen    int8 = 2
	StatusClosed  int8 = 3
)

// Insert 落库一个新轮盘（status=created，无任何时间戳）
func (r *Roulette) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	sqlStr := `INSERT INTO roulettes (roulette_id, status, winning_number, winning_color, is_settled, opened_at, closed_at, trace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []interface{}{r.RouletteID, StatusCreated, 0, "", 0, 0, 0, r.TraceID, now, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetStatusForUpdate 在事务中按轮盘ID加锁并返回当前状态码
func GetStatusForUpdate(ctx context.Context, exec sqlx.ExtContext, rouletteID string) (int8, error) {
	sqlStr := "SELECT status FROM roulettes WHERE roulette_id = ? FOR UPDATE"
	var status int8
	if err := sqlx.GetContext(ctx, exec, &status, sqlStr, rouletteID); err != nil {
		return 0, err
	}
	return status, nil
}

// GetSettlementStatusForUpdate 在事务中按轮盘ID加锁并返回结算状态
// 返回值: (status, is_settled, error)
func GetSettlementStatusForUpdate(ctx context.Context, exec sqlx.ExtContext, rouletteID string) (int8, int8, error) {
	sqlStr := "SELECT status, is_settled FROM roulettes WHERE roulette_id = ? FOR UPDATE"

	type result struct {
		Status    int8 `db:"status"`
		IsSettled int8 `db:"is_settled"`
	}

	var r result
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, rouletteID); err != nil {
		return 0, 0, err
	}
	return r.Status, r.IsSettled, nil
}

// MarkOpened 将轮盘置为 open 并写入 opened_at（仅写一次）
func MarkOpened(ctx context.Context, exec sqlx.ExtContext, rouletteID string) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE roulettes SET status = ?, opened_at = ?, updated_at = ? WHERE roulette_id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, StatusOpen, now, now, rouletteID)
	return err
}

// MarkClosedSettled 将轮盘置为 closed，写入开奖结果与 closed_at，并标记已结算
// 必须与注单结算在同一事务中提交
func MarkClosedSettled(ctx context.Context, exec sqlx.ExtContext, rouletteID string, winningNumber int, winningColor string) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE roulettes SET status = ?, winning_number = ?, winning_color = ?, is_settled = 1, closed_at = ?, updated_at = ? WHERE roulette_id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, StatusClosed, winningNumber, winningColor, now, now, rouletteID)
	return err
}

// RouletteSnapshot 提供 GET 接口所需的最小字段集合
type RouletteSnapshot struct {
	RouletteID    string `db:"roulette_id"`
	Status        int8   `db:"status"`
	WinningNumber int    `db:"winning_number"`
	WinningColor  string `db:"winning_color"`
	IsSettled     int8   `db:"is_settled"`
	OpenedAt      int64  `db:"opened_at"`
	ClosedAt      int64  `db:"closed_at"`
	CreatedAt     int64  `db:"created_at"`
}

// GetRouletteSnapshot 按轮盘ID查询所需字段（无锁读取）
func GetRouletteSnapshot(ctx context.Context, exec sqlx.ExtContext, rouletteID string) (*RouletteSnapshot, error) {
	sqlStr := `SELECT roulette_id, status, winning_number, winning_color, is_settled, opened_at, closed_at, created_at
		FROM roulettes WHERE roulette_id = ?`
	var rs RouletteSnapshot
	if err := sqlx.GetContext(ctx, exec, &rs, sqlStr, rouletteID); err != nil {
		return nil, err
	}
	return &rs, nil
}
