package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Hertuq0910/roulette-backend/internal/config"
	"github.com/Hertuq0910/roulette-backend/internal/model"
)

func intPtr(n int) *int { return &n }

// 字段校验在轮盘锁定之后执行：需要一个 open 状态的轮盘才能触发
func TestPlaceBetValidation(t *testing.T) {
	store := newMemStore()
	store.seedRoulette("r1", model.StatusOpen)
	svc := NewBetServiceWithStore(store)
	ctx := context.Background()

	cases := []struct {
		name    string
		in      BetInput
		wantMsg string
	}{
		{"missing user", BetInput{RouletteID: "r1", BetType: BetTypeNumber, Number: intPtr(3), Amount: 10}, "missing user id"},
		{"bad type", BetInput{RouletteID: "r1", UserID: "u1", BetType: "corner", Amount: 10}, "invalid betType"},
		{"number nil", BetInput{RouletteID: "r1", UserID: "u1", BetType: BetTypeNumber, Amount: 10}, "invalid number. must be between 0 and 36"},
		{"number 37", BetInput{RouletteID: "r1", UserID: "u1", BetType: BetTypeNumber, Number: intPtr(37), Amount: 10}, "invalid number. must be between 0 and 36"},
		{"number -1", BetInput{RouletteID: "r1", UserID: "u1", BetType: BetTypeNumber, Number: intPtr(-1), Amount: 10}, "invalid number. must be between 0 and 36"},
		{"color green", BetInput{RouletteID: "r1", UserID: "u1", BetType: BetTypeColor, Color: "green", Amount: 10}, "invalid color. must be red or black"},
		{"amount 0", BetInput{RouletteID: "r1", UserID: "u1", BetType: BetTypeColor, Color: ColorRed, Amount: 0}, "invalid amount. max is 10000"},
		{"amount 10001", BetInput{RouletteID: "r1", UserID: "u1", BetType: BetTypeColor, Color: ColorRed, Amount: 10001}, "invalid amount. max is 10000"},
	}
	for _, c := range cases {
		_, err := svc.PlaceBet(ctx, c.in)
		if err == nil {
			t.Fatalf("%s: expected error, got nil", c.name)
		}
		if err.Error() != c.wantMsg {
			t.Fatalf("%s: error = %q, want %q", c.name, err.Error(), c.wantMsg)
		}
	}
	if n := store.betCount(); n != 0 {
		t.Fatalf("rejected bets must not be persisted, found %d", n)
	}
}

// 存在性/状态检查先于字段校验：不存在的轮盘必须报 not found，
// 未开放的轮盘必须报状态错误，即使字段同样非法
func TestPlaceBetExistenceBeforeFieldValidation(t *testing.T) {
	store := newMemStore()
	store.seedRoulette("created-1", model.StatusCreated)
	store.seedRoulette("closed-1", model.StatusClosed)
	svc := NewBetServiceWithStore(store)
	ctx := context.Background()

	// betType 非法 + 轮盘不存在 -> not found 优先
	_, err := svc.PlaceBet(ctx, BetInput{RouletteID: "nope", UserID: "u1", BetType: "corner", Amount: 10})
	if !errors.Is(err, ErrRouletteNotFound) {
		t.Fatalf("nonexistent roulette must report not found, got %v", err)
	}

	// betType 非法 + 轮盘未开放 -> 状态错误优先
	for _, id := range []string{"created-1", "closed-1"} {
		_, err := svc.PlaceBet(ctx, BetInput{RouletteID: id, UserID: "u1", BetType: "corner", Amount: 10})
		if !errors.Is(err, ErrInvalidStateBet) {
			t.Fatalf("roulette %s must report invalid state, got %v", id, err)
		}
	}
}

// created/closed 状态下的合法注单同样被拒绝且不落库
func TestPlaceBetRejectedWhenNotOpen(t *testing.T) {
	store := newMemStore()
	store.seedRoulette("created-1", model.StatusCreated)
	store.seedRoulette("closed-1", model.StatusClosed)
	svc := NewBetServiceWithStore(store)
	ctx := context.Background()

	for _, id := range []string{"created-1", "closed-1"} {
		_, err := svc.PlaceBet(ctx, BetInput{
			RouletteID: id, UserID: "u1", BetType: BetTypeNumber, Number: intPtr(7), Amount: 100,
		})
		if !errors.Is(err, ErrInvalidStateBet) {
			t.Fatalf("roulette %s: want invalid state, got %v", id, err)
		}
	}
	if n := store.betCount(); n != 0 {
		t.Fatalf("rejected bets must not be persisted, found %d", n)
	}
}

func TestPlaceBetSuccessAndOutbox(t *testing.T) {
	store := newMemStore()
	store.seedRoulette("r1", model.StatusOpen)
	svc := NewBetServiceWithStore(store)

	out, err := svc.PlaceBet(context.Background(), BetInput{
		RouletteID: "r1", UserID: "u1", BetType: BetTypeNumber, Number: intPtr(17), Amount: 100,
	})
	if err != nil {
		t.Fatalf("place bet failed: %v", err)
	}
	if !strings.HasPrefix(out.BillNo, "RL") {
		t.Fatalf("bill no %q missing RL prefix", out.BillNo)
	}
	if out.Number == nil || *out.Number != 17 || out.Amount != 100 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if n := store.betCount(); n != 1 {
		t.Fatalf("expected 1 persisted bet, got %d", n)
	}
	topics := store.outboxTopics()
	if len(topics) != 1 || topics[0] != "bet_placed" {
		t.Fatalf("expected bet_placed outbox entry, got %v", topics)
	}
}

// 同一幂等键重复提交必须返回首次落库的注单，即使本次参数不同
func TestPlaceBetIdempotentReplayReturnsStoredBet(t *testing.T) {
	store := newMemStore()
	store.seedRoulette("r1", model.StatusOpen)
	svc := NewBetServiceWithStore(store)
	ctx := context.Background()

	first, err := svc.PlaceBet(ctx, BetInput{
		RouletteID: "r1", UserID: "u1", BetType: BetTypeNumber, Number: intPtr(17), Amount: 100,
		IdempotencyKey: "k-replay",
	})
	if err != nil {
		t.Fatalf("first bet failed: %v", err)
	}

	// 同键不同参数：返回的是首次注单的内容，不是本次请求的回显
	second, err := svc.PlaceBet(ctx, BetInput{
		RouletteID: "r1", UserID: "u1", BetType: BetTypeColor, Color: ColorRed, Amount: 999,
		IdempotencyKey: "k-replay",
	})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if second.BillNo != first.BillNo {
		t.Fatalf("replay bill no = %s, want %s", second.BillNo, first.BillNo)
	}
	if second.BetType != BetTypeNumber || second.Number == nil || *second.Number != 17 {
		t.Fatalf("replay must return stored number bet, got %+v", second)
	}
	if second.Amount != 100 || second.Color != "" {
		t.Fatalf("replay echoed request params instead of stored bet: %+v", second)
	}
	if n := store.betCount(); n != 1 {
		t.Fatalf("duplicate key must not create a second bet, got %d", n)
	}
}

// max_bet_amount 阈值可在线下调，错误消息携带当前生效上限
func TestPlaceBetAmountThresholdFromConfig(t *testing.T) {
	config.SetCurrent(&config.Config{Thresholds: map[string]int64{"max_bet_amount": 500}})
	defer config.SetCurrent(nil)

	store := newMemStore()
	store.seedRoulette("r1", model.StatusOpen)
	svc := NewBetServiceWithStore(store)
	ctx := context.Background()

	_, err := svc.PlaceBet(ctx, BetInput{
		RouletteID: "r1", UserID: "u1", BetType: BetTypeColor, Color: ColorRed, Amount: 600,
	})
	if err == nil || err.Error() != "invalid amount. max is 500" {
		t.Fatalf("lowered threshold not applied, got %v", err)
	}

	if _, err := svc.PlaceBet(ctx, BetInput{
		RouletteID: "r1", UserID: "u1", BetType: BetTypeColor, Color: ColorRed, Amount: 500,
	}); err != nil {
		t.Fatalf("amount at threshold must pass, got %v", err)
	}
}

func TestGenerateBillNo(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		no := generateBillNo()
		if !strings.HasPrefix(no, "RL") {
			t.Fatalf("bill no %q missing RL prefix", no)
		}
		if len(no) != 2+14+5 {
			t.Fatalf("bill no %q has unexpected length %d", no, len(no))
		}
		if seen[no] {
			t.Fatalf("duplicate bill no generated: %s", no)
		}
		seen[no] = true
	}
}
