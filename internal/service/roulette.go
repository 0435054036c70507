package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	infrds "github.com/Hertuq0910/roulette-backend/internal/infra/redis"
	"github.com/Hertuq0910/roulette-backend/internal/metrics"
	"github.com/Hertuq0910/roulette-backend/internal/model"
	"github.com/Hertuq0910/roulette-backend/internal/state"

	"github.com/google/uuid"
)

var (
	ErrBadRequest        = errors.New("bad request")
	ErrRouletteNotFound  = errors.New("roulette not found")
	ErrInvalidStateBet   = errors.New("roulette is not open for bets")
	ErrInvalidStateClose = errors.New("roulette is not open or already closed")
)

// RouletteService 负责轮盘生命周期：创建与开放
// 关闭（开奖+结算）在 CloseService 中单独处理
type RouletteService interface {
	// Create 创建一个新轮盘（status=created，无时间戳），返回轮盘ID。无失败分支（除存储错误）。
	Create(ctx context.Context, traceID string) (string, error)
	// Open 将轮盘从 created 推进到 open。
	// 已经 open/closed 的轮盘返回 Success=false 的软失败（带区分消息），不是错误。
	Open(ctx context.Context, in OpenInput) (*OpenOutput, error)
}

type OpenInput struct {
	RouletteID string
	TraceID    string
}

// OpenOutput 软结果：Success=false 时 Message 区分 already open / already closed
type OpenOutput struct {
	Success bool
	Message string
}

type rouletteService struct {
	store Store
}

func NewRouletteService() RouletteService { return &rouletteService{store: DefaultStore()} }

// NewRouletteServiceWithStore 注入存储实现（测试用内存实现）
func NewRouletteServiceWithStore(store Store) RouletteService { return &rouletteService{store: store} }

const rouletteInfoTTL = 60 * time.Second // 轮盘信息缓存 60s

func (s *rouletteService) Create(ctx context.Context, traceID string) (string, error) {
	start := time.Now()
	resultLabel := "fail"
	defer func() { metrics.RecordLifecycle(resultLabel, "create", start) }()

	rouletteID := uuid.NewString()
	r := &model.Roulette{RouletteID: rouletteID, TraceID: traceID}
	if err := s.store.InsertRoulette(ctx, r); err != nil {
		fmt.Printf("[Roulette] 创建轮盘失败: error=%v, trace_id=%s\n", err, traceID)
		return "", err
	}

	resultLabel = "success"
	fmt.Printf("[Roulette] 轮盘已创建: roulette_id=%s, trace_id=%s\n", rouletteID, traceID)
	return rouletteID, nil
}

func (s *rouletteService) Open(ctx context.Context, in OpenInput) (*OpenOutput, error) {
	if in.RouletteID == "" {
		return nil, ErrBadRequest
	}

	start := time.Now()
	resultLabel := "fail"
	defer func() { metrics.RecordLifecycle(resultLabel, state.EvtOpen, start) }()

	fmt.Printf("[Roulette] 收到开放请求: roulette_id=%s, trace_id=%s\n", in.RouletteID, in.TraceID)

	var soft *OpenOutput
	err := s.store.WithinTx(ctx, func(tx TxStore) error {
		statusCode, err := tx.RouletteStatusForUpdate(ctx, in.RouletteID)
		if err != nil {
			if strings.Contains(err.Error(), "no rows") {
				return ErrRouletteNotFound
			}
			return err
		}

		// 已开放/已关闭是软失败：调用方需要和真正的错误区分开
		switch statusCode {
		case model.StatusOpen:
			resultLabel = "noop"
			soft = &OpenOutput{Success: false, Message: "Roulette already open"}
			return nil
		case model.StatusClosed:
			resultLabel = "noop"
			soft = &OpenOutput{Success: false, Message: "Roulette already closed"}
			return nil
		}

		if _, err := state.NextState(codeToState(statusCode), state.EvtOpen); err != nil {
			return ErrInvalidStateClose
		}

		if err := tx.MarkOpened(ctx, in.RouletteID); err != nil {
			return err
		}

		// 开放事件进 Outbox（事务内写入，确保与数据库状态一致）
		return tx.AppendOutbox(ctx, "roulette_opened", in.RouletteID, map[string]any{
			"event":       "roulette_opened",
			"roulette_id": in.RouletteID,
			"opened_at":   time.Now().UnixMilli(),
			"trace_id":    in.TraceID,
		})
	})
	if err != nil {
		return nil, err
	}
	if soft != nil {
		return soft, nil
	}

	// 缓存轮盘信息，便于查询接口快速返回
	if r := infrds.Client(); r != nil {
		val := map[string]any{
			"roulette_id": in.RouletteID,
			"status":      state.StateOpen,
			"opened_at":   time.Now().UnixMilli(),
		}
		if b, e := json.Marshal(val); e == nil {
			_ = r.Set(ctx, infrds.RouletteInfoKey(in.RouletteID), b, rouletteInfoTTL).Err()
		}
	}

	resultLabel = "success"
	fmt.Printf("[Roulette] 轮盘已开放: roulette_id=%s, trace_id=%s\n", in.RouletteID, in.TraceID)
	return &OpenOutput{Success: true, Message: "Roulette opened successfully"}, nil
}

// codeToState 将数值状态码转换为状态机字符串
func codeToState(c int8) string {
	switch c {
	case model.StatusCreated:
		return state.StateCreated
	case model.StatusOpen:
		return state.StateOpen
	case model.StatusClosed:
		return state.StateClosed
	default:
		return ""
	}
}
