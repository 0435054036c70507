package model

import (
	"context"
	"time"

	g "github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/jmoiron/sqlx"
)

// Bet 对应 bets 表
// 说明：bet_type/color 采用数值枚举入库，模型层用字符串
// bet_type: 1=number 2=color
// bet_color: 0=未设置 1=red 2=black（仅 bet_type=color 时有意义）
// bill_status: 1=待结算 2=已结算
// is_winner: 0=未知/输 1=赢（仅 bill_status=2 后有意义）
type Bet struct {
	BillNo         string  `db:"bill_no"`        // 注单号(主键)
	RouletteID     string  `db:"roulette_id"`    // 轮盘ID
	UserID         string  `db:"user_id"`        // 外部用户ID（不校验存在性）
	BetType        string  `db:"bet_type"`       // number|color（入库为数值枚举，模型用字符串）
	BetNumber      int     `db:"bet_number"`     // 下注数字 0-36（仅 bet_type=number 时有意义）
	BetColor       string  `db:"bet_color"`      // red|black（仅 bet_type=color 时有意义）
	Amount         int64   `db:"amount"`         // 下注金额 1-10000（整数）
	BillStatus     int8    `db:"bill_status"`    // 结算状态
	IsWinner       int8    `db:"is_winner"`      // 是否中奖
	Payout         float64 `db:"payout"`         // 派彩金额（color 注存在 1.8 倍小数）
	WinningNumber  int     `db:"winning_number"` // 冗余开奖号码（结算时写入）
	WinningColor   string  `db:"winning_color"`  // 冗余开奖颜色（结算时写入）
	IdempotencyKey string  `db:"idempotency_key"`
	TraceID        string  `db:"trace_id"`
	CreatedAt      int64   `db:"created_at"`
	UpdatedAt      int64   `db:"updated_at"`
}

// Insert 插入一条 Bet 记录（未结算，无任何开奖字段）
func (b *Bet) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	typeCode := toBetTypeCode(b.BetType)
	colorCode := toColorCode(b.BetColor)

	sqlStr := `INSERT INTO bets (bill_no, roulette_id, user_id, bet_type, bet_number, bet_color, amount,
		bill_status, is_winner, payout, winning_number, winning_color, idempotency_key, trace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := exec.ExecContext(ctx, sqlStr, b.BillNo, b.RouletteID, b.UserID, typeCode, b.BetNumber, colorCode, b.Amount,
		1, 0, 0, 0, "", b.IdempotencyKey, b.TraceID, now, now)
	return err
}

// ListByRouletteForUpdate 按轮盘ID查询需结算的注单（FOR UPDATE），需要在事务中调用
func ListByRouletteForUpdate(ctx context.Context, exec sqlx.ExtContext, rouletteID string) ([]Bet, error) {
	sqlStr := `SELECT bill_no, user_id, bet_type, bet_number, bet_color, amount
		FROM bets WHERE roulette_id = ? AND bill_status = 1 ORDER BY id ASC FOR UPDATE`

	// 使用中间投影结构接收数值型枚举，然后映射回字符串
	type row struct {
		BillNo    string `db:"bill_no"`
		UserID    string `db:"user_id"`
		TypeCode  int8   `db:"bet_type"`
		BetNumber int    `db:"bet_number"`
		ColorCode int8   `db:"bet_color"`
		Amount    int64  `db:"amount"`
	}
	var rs []row
	if err := sqlx.SelectContext(ctx, exec, &rs, sqlStr, rouletteID); err != nil {
		return nil, err
	}
	out := make([]Bet, 0, len(rs))
	for _, r := range rs {
		out = append(out, Bet{
			BillNo:     r.BillNo,
			RouletteID: rouletteID,
			UserID:     r.UserID,
			BetType:    fromBetTypeCode(r.TypeCode),
			BetNumber:  r.BetNumber,
			BetColor:   fromColorCode(r.ColorCode),
			Amount:     r.Amount,
		})
	}
	return out, nil
}

// GetBetByBillNo 按注单号读取注单（幂等回放时还原首次请求的内容）
func GetBetByBillNo(ctx context.Context, exec sqlx.ExtContext, billNo string) (*Bet, error) {
	sqlStr := `SELECT bill_no, roulette_id, user_id, bet_type, bet_number, bet_color, amount
		FROM bets WHERE bill_no = ?`

	type row struct {
		BillNo     string `db:"bill_no"`
		RouletteID string `db:"roulette_id"`
		UserID     string `db:"user_id"`
		TypeCode   int8   `db:"bet_type"`
		BetNumber  int    `db:"bet_number"`
		ColorCode  int8   `db:"bet_color"`
		Amount     int64  `db:"amount"`
	}
	var r row
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, billNo); err != nil {
		return nil, err
	}
	return &Bet{
		BillNo:     r.BillNo,
		RouletteID: r.RouletteID,
		UserID:     r.UserID,
		BetType:    fromBetTypeCode(r.TypeCode),
		BetNumber:  r.BetNumber,
		BetColor:   fromColorCode(r.ColorCode),
		Amount:     r.Amount,
	}, nil
}

// UpdateSettlement 写入单个注单的结算结果（is_winner/payout/冗余开奖字段只写这一次）
func UpdateSettlement(ctx context.Context, exec sqlx.ExtContext, billNo string, isWinner bool, payout float64, winningNumber int, winningColor string) error {
	now := time.Now().UnixMilli()
	won := int8(0)
	if isWinner {
		won = 1
	}
	sqlStr := `UPDATE bets SET is_winner = ?, payout = ?, winning_number = ?, winning_color = ?, bill_status = 2, updated_at = ?
		WHERE bill_no = ? AND bill_status = 1`
	_, err := exec.ExecContext(ctx, sqlStr, won, payout, winningNumber, winningColor, now, billNo)
	return err
}

// 简易的投注类型/颜色映射（与仓储层保持一致）
func toBetTypeCode(s string) int8 {
	switch s {
	case "number":
		return 1
	case "color":
		return 2
	default:
		return 0
	}
}

func fromBetTypeCode(c int8) string {
	switch c {
	case 1:
		return "number"
	case 2:
		return "color"
	default:
		return ""
	}
}

func toColorCode(s string) int8 {
	switch s {
	case "red":
		return 1
	case "black":
		return 2
	default:
		return 0
	}
}

func fromColorCode(c int8) string {
	switch c {
	case 1:
		return "red"
	case 2:
		return "black"
	default:
		return ""
	}
}

// BetRecord 投注记录（用于查询接口）
type BetRecord struct {
	BillNo        string  `db:"bill_no" json:"bill_no"`
	RouletteID    string  `db:"roulette_id" json:"roulette_id"`
	BetType       int8    `db:"bet_type" json:"bet_type"`             // 1=number 2=color
	BetNumber     int     `db:"bet_number" json:"bet_number"`         // 仅 bet_type=1 有意义
	BetColor      int8    `db:"bet_color" json:"bet_color"`           // 1=red 2=black
	Amount        int64   `db:"amount" json:"amount"`                 // 投注金额
	BillStatus    int8    `db:"bill_status" json:"bill_status"`       // 1=待结算 2=已结算
	IsWinner      int8    `db:"is_winner" json:"is_winner"`           // 0=否 1=是
	Payout        float64 `db:"payout" json:"payout"`                 // 派彩金额
	WinningNumber int     `db:"winning_number" json:"winning_number"` // 开奖号码
	CreatedAt     int64   `db:"created_at" json:"created_at"`
	UpdatedAt     int64   `db:"updated_at" json:"updated_at"`
}

var goquDialect = g.Dialect("mysql")

// ListUserBets 查询用户的投注记录（rouletteID 可选过滤，最新在前）
// 使用 goqu 构建查询，避免手拼可选 WHERE
func ListUserBets(ctx context.Context, db *sqlx.DB, userID, rouletteID string, limit int) ([]BetRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100 // 最多返回 100 条
	}

	ds := goquDialect.From("bets").
		Select("bill_no", "roulette_id", "bet_type", "bet_number", "bet_color", "amount",
			"bill_status", "is_winner", "payout", "winning_number", "created_at", "updated_at").
		Where(g.C("user_id").Eq(userID)).
		Order(g.C("created_at").Desc()).
		Limit(uint(limit))
	if rouletteID != "" {
		ds = ds.Where(g.C("roulette_id").Eq(rouletteID))
	}
	sqlStr, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var records []BetRecord
	if err := db.SelectContext(ctx, &records, sqlStr, args...); err != nil {
		return nil, err
	}
	return records, nil
}
