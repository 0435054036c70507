package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hertuq0910/roulette-backend/internal/config"
	infrds "github.com/Hertuq0910/roulette-backend/internal/infra/redis"
	"github.com/Hertuq0910/roulette-backend/internal/metrics"
	"github.com/Hertuq0910/roulette-backend/internal/model"
	"github.com/Hertuq0910/roulette-backend/internal/state"

	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// 投注金额限制（整数筹码）
// 上限可被动态配置 max_bet_amount 覆盖，下限固定
const (
	MinBetAmount = 1
	MaxBetAmount = 10000
)

// BetInput 输入参数
// Number 仅在 BetType=number 时有意义；Color 仅在 BetType=color 时有意义
// IdempotencyKey 可选：传入后同一键的重复提交返回首次结果
type BetInput struct {
	RouletteID     string
	UserID         string
	BetType        string // number|color
	Number         *int   // 0-36
	Color          string // red|black
	Amount         int64  // 1-10000
	IdempotencyKey string
	TraceID        string
}

// BetOutput 注单的规范视图（也是幂等结果缓存的载荷）
type BetOutput struct {
	BillNo     string `json:"bill_no"`
	RouletteID string `json:"roulette_id"`
	UserID     string `json:"user_id"`
	BetType    string `json:"bet_type"`
	Number     *int   `json:"number,omitempty"`
	Color      string `json:"color,omitempty"`
	Amount     int64  `json:"amount"`
}

type BetService interface {
	PlaceBet(ctx context.Context, in BetInput) (*BetOutput, error)
}

type betService struct {
	store Store
}

func NewBetService() BetService { return &betService{store: DefaultStore()} }

// NewBetServiceWithStore 注入存储实现（测试用内存实现）
func NewBetServiceWithStore(store Store) BetService { return &betService{store: store} }

const (
	// Redis 进行中锁 TTL：吸收瞬时重复请求
	idemLockTTL = 45 * time.Second
	// 结果缓存 TTL：覆盖大多数"短时重试"窗口
	idemResultTTL = 1 * time.Minute
)

// 默认事务超时时间，防止长事务占用资源影响并发（若上游已有 deadline，则沿用上游）
const defaultTxTimeout = 3 * time.Second

var (
	ErrDuplicateInFlight = errors.New("duplicate request in flight")

	// 幂等键已被占用，事务外回放首次结果
	errIdemKeyTaken = errors.New("idempotency key taken")
)

// PlaceBet 处理下注主流程：
// 1) 幂等快路径（可选）
// 2) 事务内锁轮盘行：先校验轮盘存在且 status=open，再校验投注字段
// 3) 落注单 + Outbox
// 存在性/状态检查先于字段检查：对不存在或未开放的轮盘，响应是 404/409 而不是字段错误
func (s *betService) PlaceBet(ctx context.Context, in BetInput) (*BetOutput, error) {

	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordBet(result, strings.ToLower(in.BetType), start) }()

	if strings.TrimSpace(in.UserID) == "" {
		return nil, errors.New("missing user id")
	}

	fmt.Printf("[Bet] 收到投注请求: roulette_id=%s, user_id=%s, bet_type=%s, amount=%d, idem_key=%s, trace_id=%s\n",
		in.RouletteID, in.UserID, in.BetType, in.Amount, in.IdempotencyKey, in.TraceID)

	// Redis 快路径：若已有结果缓存，直接返回（仅当客户端传了幂等键）
	if r := infrds.Client(); r != nil && in.IdempotencyKey != "" {
		if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
			var out BetOutput
			if json.Unmarshal(bs, &out) == nil {
				fmt.Printf("[Bet] Redis 缓存命中: idem_key=%s, bill_no=%s, trace_id=%s\n",
					in.IdempotencyKey, out.BillNo, in.TraceID)
				return &out, nil
			}
		}

		// 进行中锁，吸收瞬时重复；锁值唯一，防止误删其他请求的锁
		lockValue := uuid.New().String()
		lockKey := infrds.IdemLockKey(in.IdempotencyKey)
		ok, _ := r.SetNX(ctx, lockKey, lockValue, idemLockTTL).Result()
		if !ok {
			if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
				var out BetOutput
				if json.Unmarshal(bs, &out) == nil {
					return &out, nil
				}
			}
			fmt.Printf("[Bet] 重复请求进行中: idem_key=%s, trace_id=%s\n", in.IdempotencyKey, in.TraceID)
			return nil, ErrDuplicateInFlight
		}
		// Lua 脚本原子释放锁（仅当锁值匹配时删除）
		defer func() {
			script := `
				if redis.call("get", KEYS[1]) == ARGV[1] then
					return redis.call("del", KEYS[1])
				else
					return 0
				end
			`
			if _, err := r.Eval(ctx, script, []string{lockKey}, lockValue).Result(); err != nil {
				fmt.Printf("[Bet] 释放幂等锁失败: idem_key=%s, error=%v, trace_id=%s\n",
					in.IdempotencyKey, err, in.TraceID)
			}
		}()
	}

	// 事务带默认超时，防止长事务影响并发
	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}

	billNo := generateBillNo()

	err := s.store.WithinTx(txCtx, func(tx TxStore) error {
		// 锁定轮盘行并校验状态：仅 open 状态允许下注。
		// 并发关闭场景依赖该行锁：close 先拿到锁则此处读到 closed 直接拒绝。
		statusCode, err := tx.RouletteStatusForUpdate(txCtx, in.RouletteID)
		if err != nil {
			if strings.Contains(err.Error(), "no rows") {
				return ErrRouletteNotFound
			}
			return fmt.Errorf("failed to get roulette: %w", err)
		}
		if !state.AcceptsBets(codeToState(statusCode)) {
			fmt.Printf("[Bet] 轮盘状态不允许投注: status=%s(%d), roulette_id=%s, trace_id=%s\n",
				codeToState(statusCode), statusCode, in.RouletteID, in.TraceID)
			return ErrInvalidStateBet
		}

		// ========== 投注字段校验（轮盘存在且开放之后）==========
		// 校验顺序与错误消息需区分具体是哪个字段非法
		switch in.BetType {
		case BetTypeNumber:
			if in.Number == nil || *in.Number < WheelMin || *in.Number > WheelMax {
				return errors.New("invalid number. must be between 0 and 36")
			}
			// color 字段对 number 注无意义，直接丢弃
			in.Color = ""
		case BetTypeColor:
			if in.Color != ColorRed && in.Color != ColorBlack {
				return errors.New("invalid color. must be red or black")
			}
			in.Number = nil
		default:
			return errors.New("invalid betType")
		}
		maxAmount := config.GetThreshold("max_bet_amount", MaxBetAmount)
		if in.Amount < MinBetAmount || in.Amount > maxAmount {
			return fmt.Errorf("invalid amount. max is %d", maxAmount)
		}

		// 幂等：先占幂等键，ref 记录 bill_no
		if in.IdempotencyKey != "" {
			if err := tx.InsertIdemKey(txCtx, &model.IdempotencyKey{IdempotencyKey: in.IdempotencyKey, Purpose: "bet", Ref: billNo}); err != nil {
				if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
					return errIdemKeyTaken
				}
				return fmt.Errorf("idempotency conflict or insert failed: %w", err)
			}
		}

		betNumber := 0
		if in.Number != nil {
			betNumber = *in.Number
		}
		bet := &model.Bet{
			BillNo:         billNo,
			RouletteID:     in.RouletteID,
			UserID:         in.UserID,
			BetType:        in.BetType,
			BetNumber:      betNumber,
			BetColor:       in.Color,
			Amount:         in.Amount,
			IdempotencyKey: in.IdempotencyKey,
			TraceID:        in.TraceID,
		}
		if err := tx.InsertBet(txCtx, bet); err != nil {
			fmt.Printf("[Bet] 落注单失败: error=%v, bill_no=%s, trace_id=%s\n", err, billNo, in.TraceID)
			return err
		}

		// Outbox 消息（异步投递）
		return tx.AppendOutbox(txCtx, "bet_placed", billNo, map[string]any{
			"event":       "bet_placed",
			"bill_no":     billNo,
			"roulette_id": in.RouletteID,
			"user_id":     in.UserID,
			"bet_type":    in.BetType,
			"amount":      in.Amount,
		})
	})
	if err != nil {
		if errors.Is(err, errIdemKeyTaken) {
			return s.replayBet(ctx, in)
		}
		return nil, err
	}

	result = "success"
	out := &BetOutput{
		BillNo:     billNo,
		RouletteID: in.RouletteID,
		UserID:     in.UserID,
		BetType:    in.BetType,
		Number:     in.Number,
		Color:      in.Color,
		Amount:     in.Amount,
	}

	// 写入 Redis 结果缓存（降级容错）
	if r := infrds.Client(); r != nil && in.IdempotencyKey != "" {
		if b, e := json.Marshal(out); e == nil {
			_ = r.Set(ctx, infrds.IdemResultKey(in.IdempotencyKey), b, idemResultTTL).Err()
		}
	}

	return out, nil
}

// replayBet 幂等键冲突时返回首次成功的结果：Redis 先查，DB 按 bill_no 回源
// 回放必须以首次落库的注单为准，不能回显本次请求参数（参数可能与首次不同）
func (s *betService) replayBet(ctx context.Context, in BetInput) (*BetOutput, error) {
	fmt.Printf("[Bet] 幂等键冲突，尝试返回上次结果: idem_key=%s, trace_id=%s\n", in.IdempotencyKey, in.TraceID)
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
			var out BetOutput
			if json.Unmarshal(bs, &out) == nil {
				return &out, nil
			}
		}
	}
	ref, err := s.store.SelectIdemRef(ctx, in.IdempotencyKey)
	if err != nil || ref == "" {
		return nil, fmt.Errorf("duplicate idempotency key, replay failed: %w", err)
	}
	stored, err := s.store.GetBetByBillNo(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("duplicate idempotency key, replay failed: %w", err)
	}
	out := &BetOutput{
		BillNo:     stored.BillNo,
		RouletteID: stored.RouletteID,
		UserID:     stored.UserID,
		BetType:    stored.BetType,
		Color:      stored.BetColor,
		Amount:     stored.Amount,
	}
	if stored.BetType == BetTypeNumber {
		n := stored.BetNumber
		out.Number = &n
	}
	return out, nil
}

// generateBillNo 生成可读的注单号
// 格式：RL{YYYYMMDDHHmmss}{随机5位十六进制}
// 可读（含下注时间）、近似有序（按时间）、随机尾部保证唯一
func generateBillNo() string {
	dateTime := time.Now().Format("20060102150405")
	randomBytes := make([]byte, 3)
	rand.Read(randomBytes)
	randomHex := strings.ToUpper(hex.EncodeToString(randomBytes)[:5])
	return fmt.Sprintf("RL%s%s", dateTime, randomHex)
}
