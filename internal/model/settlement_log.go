package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// SettlementLog 结算日志表（防止重复结算）
// roulette_id 上有唯一索引：第二次结算尝试会触发唯一键冲突
type SettlementLog struct {
	ID            int64   `db:"id"`
	RouletteID    string  `db:"roulette_id"`
	WinningNumber int     `db:"winning_number"` // 开奖号码 0-36
	WinningColor  string  `db:"winning_color"`  // red|black
	TotalBets     int     `db:"total_bets"`     // 结算注单总数
	TotalPayout   float64 `db:"total_payout"`   // 总派彩金额
	Operator      string  `db:"operator"`
	TraceID       string  `db:"trace_id"`
	CreatedAt     int64   `db:"created_at"`
}

// CreateSettlementLog 创建结算日志（利用唯一索引防止重复结算）
// 如果返回唯一键冲突错误，说明该轮盘已经结算过
func CreateSettlementLog(ctx context.Context, exec sqlx.ExtContext, log *SettlementLog) error {
	log.CreatedAt = time.Now().UnixMilli()

	sqlStr := `INSERT INTO settlement_log (roulette_id, winning_number, winning_color, total_bets, total_payout, operator, trace_id, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := exec.ExecContext(ctx, sqlStr,
		log.RouletteID, log.WinningNumber, log.WinningColor, log.TotalBets, log.TotalPayout, log.Operator, log.TraceID, log.CreatedAt)
	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	log.ID = id
	return nil
}

// UpdateSettlementStats 结算完成后回填统计信息
func UpdateSettlementStats(ctx context.Context, exec sqlx.ExtContext, rouletteID string, totalBets int, totalPayout float64) error {
	sqlStr := "UPDATE settlement_log SET total_bets = ?, total_payout = ? WHERE roulette_id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, totalBets, totalPayout, rouletteID)
	return err
}

// GetSettlementLog 查询结算日志
func GetSettlementLog(ctx context.Context, db *sqlx.DB, rouletteID string) (*SettlementLog, error) {
	sqlStr := `SELECT id, roulette_id, winning_number, winning_color, total_bets, total_payout, operator, trace_id, created_at
	           FROM settlement_log WHERE roulette_id = ? LIMIT 1`

	var log SettlementLog
	if err := db.GetContext(ctx, &log, sqlStr, rouletteID); err != nil {
		return nil, err
	}
	return &log, nil
}
