package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Hertuq0910/roulette-backend/common/helper"
	infrds "github.com/Hertuq0910/roulette-backend/internal/infra/redis"
	"github.com/Hertuq0910/roulette-backend/internal/metrics"
	"github.com/Hertuq0910/roulette-backend/internal/model"
	"github.com/Hertuq0910/roulette-backend/internal/state"

	decimal "github.com/shopspring/decimal"
)

// 派彩倍率：number 注 5 倍，color 注 1.8 倍
// color 倍率用字符串构造保证精确（1.8 无法用二进制浮点精确表示）
var (
	numberPayoutMul = decimal.NewFromInt(5)
	colorPayoutMul  = decimal.RequireFromString("1.8")
)

type CloseInput struct {
	RouletteID string
	TraceID    string
}

// ResolvedBet 结算后的注单视图
type ResolvedBet struct {
	UserID   string  `json:"user_id"`
	BetType  string  `json:"bet_type"`
	Number   *int    `json:"number,omitempty"`
	Color    string  `json:"color,omitempty"`
	Amount   int64   `json:"amount"`
	IsWinner bool    `json:"is_winner"`
	Payout   float64 `json:"payout"`
}

type CloseOutput struct {
	WinningNumber int           `json:"winning_number"`
	WinningColor  string        `json:"winning_color"`
	Bets          []ResolvedBet `json:"bets"`
}

type CloseService interface {
	CloseRoulette(ctx context.Context, in CloseInput) (*CloseOutput, error)
}

type closeService struct {
	store Store
	src   DrawSource
}

// NewCloseService 使用默认随机开奖源
func NewCloseService() CloseService {
	return &closeService{store: DefaultStore(), src: defaultDrawSource}
}

// NewCloseServiceWithStore 注入存储与开奖源（测试用内存实现 + 固定号码）
func NewCloseServiceWithStore(store Store, src DrawSource) CloseService {
	return &closeService{store: store, src: src}
}

var defaultDrawSource = NewRandDrawSource()

const resultCacheTTL = 2 * time.Minute

// CloseRoulette 关闭轮盘：开奖一次并结算该轮盘的全部注单
// 状态转换与全部注单结算在同一事务中提交，外部不会观察到"已关闭但部分结算"的轮盘。
// 幂等保护（沿用结算侧三重防护）：
// 1) 行锁下检查 status 与 is_settled
// 2) settlement_log 唯一索引
// 3) 结算完成后置 is_settled=1
func (s *closeService) CloseRoulette(ctx context.Context, in CloseInput) (*CloseOutput, error) {
	if in.RouletteID == "" {
		return nil, ErrBadRequest
	}

	start := time.Now()
	resultLabel := "fail"
	colorLabel := "unknown"
	defer func() { metrics.RecordClose(resultLabel, colorLabel, start) }()

	fmt.Printf("[Close] 收到关闭请求: roulette_id=%s, trace_id=%s\n", in.RouletteID, in.TraceID)

	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}

	var (
		winningNumber int
		winningColor  string
		resolved      []ResolvedBet
		totalBets     int
		totalPayout   decimal.Decimal
	)
	err := s.store.WithinTx(txCtx, func(tx TxStore) error {
		// ========== 幂等性保护 #1: 行锁下检查状态 ==========
		statusCode, isSettled, err := tx.SettlementStatusForUpdate(txCtx, in.RouletteID)
		if err != nil {
			if strings.Contains(err.Error(), "no rows") {
				return ErrRouletteNotFound
			}
			return err
		}

		currentState := codeToState(statusCode)
		fmt.Printf("[Close] 当前状态: state=%s(%d), is_settled=%d, roulette_id=%s, trace_id=%s\n",
			currentState, statusCode, isSettled, in.RouletteID, in.TraceID)

		// 重复关闭必须报状态错误，绝不能重新开奖或重复派彩
		if isSettled == 1 || currentState != state.StateOpen {
			return ErrInvalidStateClose
		}
		if _, err := state.NextState(currentState, state.EvtClose); err != nil {
			return ErrInvalidStateClose
		}

		// 开奖：每个轮盘只抽一次，之后全部注单对同一结果结算
		winningNumber = s.src.WinningNumber()
		if winningNumber < WheelMin || winningNumber > WheelMax {
			return fmt.Errorf("draw source produced out-of-range number: %d", winningNumber)
		}
		winningColor = ColorOf(winningNumber)
		colorLabel = winningColor

		// ========== 幂等性保护 #2: 结算日志唯一索引 ==========
		slog := &model.SettlementLog{
			RouletteID:    in.RouletteID,
			WinningNumber: winningNumber,
			WinningColor:  winningColor,
			Operator:      "system",
			TraceID:       in.TraceID,
		}
		if err := tx.CreateSettlementLog(txCtx, slog); err != nil {
			if isMySQLDuplicateKeyError(err) {
				fmt.Printf("[Close] 结算日志已存在，拒绝重复结算: roulette_id=%s, trace_id=%s\n",
					in.RouletteID, in.TraceID)
				return ErrInvalidStateClose
			}
			return err
		}

		// 锁定并结算当前时刻存在的全部注单（0 注也允许关闭）
		bets, err := tx.BetsForSettlement(txCtx, in.RouletteID)
		if err != nil {
			return err
		}
		totalBets = len(bets)
		fmt.Printf("[Close] 找到 %d 个待结算注单: roulette_id=%s, trace_id=%s\n",
			len(bets), in.RouletteID, in.TraceID)

		resolved = make([]ResolvedBet, 0, len(bets))
		totalPayout = decimal.Zero
		for i := range bets {
			b := bets[i]
			isWinner, payout := resolveBet(b, winningNumber, winningColor)
			totalPayout = totalPayout.Add(payout)

			payoutF := payout.InexactFloat64()
			if err := tx.UpdateBetSettlement(txCtx, b.BillNo, isWinner, payoutF, winningNumber, winningColor); err != nil {
				return err
			}

			view := ResolvedBet{
				UserID:   b.UserID,
				BetType:  b.BetType,
				Color:    b.BetColor,
				Amount:   b.Amount,
				IsWinner: isWinner,
				Payout:   payoutF,
			}
			if b.BetType == BetTypeNumber {
				n := b.BetNumber
				view.Number = &n
				view.Color = ""
			}
			resolved = append(resolved, view)

			if err := tx.AppendOutbox(txCtx, "bet_settled", b.BillNo, map[string]any{
				"event":          "bet_settled",
				"bill_no":        b.BillNo,
				"roulette_id":    in.RouletteID,
				"user_id":        b.UserID,
				"is_winner":      isWinner,
				"payout":         payoutF,
				"winning_number": winningNumber,
				"winning_color":  winningColor,
			}); err != nil {
				return err
			}
		}

		// ========== 幂等性保护 #3: 状态置 closed 并标记已结算 ==========
		if err := tx.MarkClosedSettled(txCtx, in.RouletteID, winningNumber, winningColor); err != nil {
			return err
		}
		if err := tx.UpdateSettlementStats(txCtx, in.RouletteID, len(bets), totalPayout.InexactFloat64()); err != nil {
			return err
		}

		return tx.AppendOutbox(txCtx, "roulette_closed", in.RouletteID, map[string]any{
			"event":          "roulette_closed",
			"roulette_id":    in.RouletteID,
			"winning_number": winningNumber,
			"winning_color":  winningColor,
			"total_bets":     len(bets),
			"total_payout":   totalPayout.InexactFloat64(),
			"trace_id":       in.TraceID,
		})
	})
	if err != nil {
		return nil, err
	}

	out := &CloseOutput{WinningNumber: winningNumber, WinningColor: winningColor, Bets: resolved}

	// 将开奖结果写入 Redis，便于后续查询/回放
	if r := infrds.Client(); r != nil {
		val := map[string]any{
			"roulette_id":    in.RouletteID,
			"winning_number": winningNumber,
			"winning_color":  winningColor,
			"total_bets":     totalBets,
			"total_payout":   totalPayout.InexactFloat64(),
			"status":         state.StateClosed,
		}
		if b, e := json.Marshal(val); e == nil {
			_ = r.Set(ctx, infrds.RouletteResultKey(in.RouletteID), b, resultCacheTTL).Err()
		}
		// 状态已变，旧的 info 缓存作废
		_ = r.Del(ctx, infrds.RouletteInfoKey(in.RouletteID)).Err()
	}

	resultLabel = "success"
	fmt.Printf("[Close] 关闭处理完成: roulette_id=%s, winning_number=%d, winning_color=%s, total_bets=%d, total_payout=%s, trace_id=%s\n",
		in.RouletteID, winningNumber, winningColor, totalBets, helper.TrimDecimal(totalPayout), in.TraceID)
	return out, nil
}

// resolveBet 计算单个注单的中奖与派彩
// 规则：
// 1. number 注：号码命中 -> 派彩 = 本金 × 5；否则 0
// 2. color 注：颜色命中 -> 派彩 = 本金 × 1.8；否则 0
// 派彩不含本金退还语义，输注派彩恒为 0
func resolveBet(b model.Bet, winningNumber int, winningColor string) (bool, decimal.Decimal) {
	amt := decimal.NewFromInt(b.Amount)

	switch b.BetType {
	case BetTypeNumber:
		if b.BetNumber == winningNumber {
			return true, amt.Mul(numberPayoutMul)
		}
	case BetTypeColor:
		if b.BetColor == winningColor {
			return true, amt.Mul(colorPayoutMul)
		}
	}
	return false, decimal.Zero
}

// isMySQLDuplicateKeyError 判断是否为 MySQL 唯一键冲突错误
func isMySQLDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	// MySQL 错误码 1062: Duplicate entry
	return strings.Contains(errMsg, "Error 1062") ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "duplicate key")
}
