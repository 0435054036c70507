package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Hertuq0910/roulette-backend/internal/model"

	decimal "github.com/shopspring/decimal"
)

// countingDrawSource 记录开奖次数的固定开奖源
type countingDrawSource struct {
	n     int
	draws int
}

func (c *countingDrawSource) WinningNumber() int {
	c.draws++
	return c.n
}

func TestColorOfAllNumbers(t *testing.T) {
	// 产品规则：偶数 red，奇数 black，0 视为偶数 -> red
	for n := WheelMin; n <= WheelMax; n++ {
		want := ColorRed
		if n%2 == 1 {
			want = ColorBlack
		}
		if got := ColorOf(n); got != want {
			t.Fatalf("ColorOf(%d) = %s, want %s", n, got, want)
		}
	}
	if ColorOf(0) != ColorRed {
		t.Fatalf("0 must map to red")
	}
}

func TestResolveBetNumber(t *testing.T) {
	for n := WheelMin; n <= WheelMax; n++ {
		b := model.Bet{BetType: BetTypeNumber, BetNumber: n, Amount: 100}

		won, payout := resolveBet(b, n, ColorOf(n))
		if !won {
			t.Fatalf("number=%d draw=%d should win", n, n)
		}
		if !payout.Equal(decimal.NewFromInt(500)) {
			t.Fatalf("number win payout = %s, want 500", payout)
		}

		other := (n + 1) % wheelSlots
		won, payout = resolveBet(b, other, ColorOf(other))
		if won || !payout.IsZero() {
			t.Fatalf("number=%d draw=%d should lose with payout 0, got won=%v payout=%s", n, other, won, payout)
		}
	}
}

func TestResolveBetColor(t *testing.T) {
	b := model.Bet{BetType: BetTypeColor, BetColor: ColorRed, Amount: 200}

	// 0 为偶数 -> red，red 注中奖，派彩 = 200 × 1.8 = 360 精确
	won, payout := resolveBet(b, 0, ColorOf(0))
	if !won {
		t.Fatalf("red bet against draw 0 should win")
	}
	if !payout.Equal(decimal.NewFromInt(360)) {
		t.Fatalf("color win payout = %s, want 360", payout)
	}

	// 17 为奇数 -> black，red 注输
	won, payout = resolveBet(b, 17, ColorOf(17))
	if won || !payout.IsZero() {
		t.Fatalf("red bet against draw 17 should lose, got won=%v payout=%s", won, payout)
	}

	// 1.8 倍率保留小数：1 × 1.8 = 1.8，不得截断
	small := model.Bet{BetType: BetTypeColor, BetColor: ColorBlack, Amount: 1}
	won, payout = resolveBet(small, 17, ColorOf(17))
	if !won || !payout.Equal(decimal.RequireFromString("1.8")) {
		t.Fatalf("payout must keep full precision: won=%v payout=%s", won, payout)
	}
}

func TestResolveBetWorkedExamples(t *testing.T) {
	// number 注 {number:17, amount:100}，开出 17 -> 赢，派彩 500，颜色 black（17 为奇数）
	nb := model.Bet{BetType: BetTypeNumber, BetNumber: 17, Amount: 100}
	won, payout := resolveBet(nb, 17, ColorOf(17))
	if !won || !payout.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("17/100 draw 17: won=%v payout=%s", won, payout)
	}
	if ColorOf(17) != ColorBlack {
		t.Fatalf("17 must derive black")
	}

	// color 注 {color:red, amount:200}，开出 0 -> 赢（0 为偶数 -> red），派彩 360
	cb := model.Bet{BetType: BetTypeColor, BetColor: ColorRed, Amount: 200}
	won, payout = resolveBet(cb, 0, ColorOf(0))
	if !won || !payout.Equal(decimal.NewFromInt(360)) {
		t.Fatalf("red/200 draw 0: won=%v payout=%s", won, payout)
	}
}

func TestCloseMissingRoulette(t *testing.T) {
	svc := NewCloseServiceWithStore(newMemStore(), FixedDrawSource(0))
	_, err := svc.CloseRoulette(context.Background(), CloseInput{RouletteID: "nope"})
	if !errors.Is(err, ErrRouletteNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

// 未开放的轮盘不能关闭，且不触发开奖
func TestCloseBeforeOpen(t *testing.T) {
	store := newMemStore()
	store.seedRoulette("r1", model.StatusCreated)
	src := &countingDrawSource{n: 7}
	svc := NewCloseServiceWithStore(store, src)

	_, err := svc.CloseRoulette(context.Background(), CloseInput{RouletteID: "r1"})
	if !errors.Is(err, ErrInvalidStateClose) {
		t.Fatalf("want invalid state, got %v", err)
	}
	if src.draws != 0 {
		t.Fatalf("close rejection must not draw, drew %d times", src.draws)
	}
}

// 重复关闭报状态错误，整个生命周期只开奖一次
func TestCloseTwiceDrawsOnce(t *testing.T) {
	store := newMemStore()
	store.seedRoulette("r1", model.StatusOpen)
	src := &countingDrawSource{n: 7}
	svc := NewCloseServiceWithStore(store, src)
	ctx := context.Background()

	if _, err := svc.CloseRoulette(ctx, CloseInput{RouletteID: "r1"}); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	_, err := svc.CloseRoulette(ctx, CloseInput{RouletteID: "r1"})
	if !errors.Is(err, ErrInvalidStateClose) {
		t.Fatalf("second close must report invalid state, got %v", err)
	}
	if src.draws != 1 {
		t.Fatalf("expected exactly 1 draw, got %d", src.draws)
	}
}

// 0 注单也允许关闭：正常开奖并置 closed
func TestCloseWithZeroBets(t *testing.T) {
	store := newMemStore()
	store.seedRoulette("r1", model.StatusOpen)
	svc := NewCloseServiceWithStore(store, FixedDrawSource(4))

	out, err := svc.CloseRoulette(context.Background(), CloseInput{RouletteID: "r1"})
	if err != nil {
		t.Fatalf("zero-bet close failed: %v", err)
	}
	if out.WinningNumber != 4 || out.WinningColor != ColorRed {
		t.Fatalf("unexpected draw result: %+v", out)
	}
	if len(out.Bets) != 0 {
		t.Fatalf("expected no resolved bets, got %d", len(out.Bets))
	}
	r := store.roulettes["r1"]
	if r.Status != model.StatusClosed || r.IsSettled != 1 {
		t.Fatalf("roulette must be closed and settled: %+v", r)
	}
}

// 完整链路：下注 -> 关闭，按固定开奖结算
// number {17,100} 开出 17 -> 赢 500，17 为奇数 -> black
func TestCloseSettlesNumberBet(t *testing.T) {
	store := newMemStore()
	store.seedRoulette("r1", model.StatusOpen)
	betSvc := NewBetServiceWithStore(store)
	ctx := context.Background()

	if _, err := betSvc.PlaceBet(ctx, BetInput{
		RouletteID: "r1", UserID: "u1", BetType: BetTypeNumber, Number: intPtr(17), Amount: 100,
	}); err != nil {
		t.Fatalf("place bet failed: %v", err)
	}

	out, err := NewCloseServiceWithStore(store, FixedDrawSource(17)).
		CloseRoulette(ctx, CloseInput{RouletteID: "r1"})
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if out.WinningNumber != 17 || out.WinningColor != ColorBlack {
		t.Fatalf("unexpected draw: %+v", out)
	}
	if len(out.Bets) != 1 {
		t.Fatalf("expected 1 resolved bet, got %d", len(out.Bets))
	}
	rb := out.Bets[0]
	if !rb.IsWinner || rb.Payout != 500 {
		t.Fatalf("number bet settlement: %+v", rb)
	}
}

// color {red,200} 开出 0 -> 0 视为偶数即 red，赢 200 × 1.8 = 360
func TestCloseSettlesColorBetOnZero(t *testing.T) {
	store := newMemStore()
	store.seedRoulette("r1", model.StatusOpen)
	betSvc := NewBetServiceWithStore(store)
	ctx := context.Background()

	if _, err := betSvc.PlaceBet(ctx, BetInput{
		RouletteID: "r1", UserID: "u1", BetType: BetTypeColor, Color: ColorRed, Amount: 200,
	}); err != nil {
		t.Fatalf("place bet failed: %v", err)
	}

	out, err := NewCloseServiceWithStore(store, FixedDrawSource(0)).
		CloseRoulette(ctx, CloseInput{RouletteID: "r1"})
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if out.WinningNumber != 0 || out.WinningColor != ColorRed {
		t.Fatalf("unexpected draw: %+v", out)
	}
	rb := out.Bets[0]
	if !rb.IsWinner || rb.Payout != 360 {
		t.Fatalf("color bet settlement: %+v", rb)
	}

	// 关闭后补注必须被拒绝且不落库
	if _, err := betSvc.PlaceBet(ctx, BetInput{
		RouletteID: "r1", UserID: "u2", BetType: BetTypeColor, Color: ColorRed, Amount: 50,
	}); !errors.Is(err, ErrInvalidStateBet) {
		t.Fatalf("bet after close must report invalid state, got %v", err)
	}
	if n := store.betCount(); n != 1 {
		t.Fatalf("late bet must not be persisted, got %d bets", n)
	}
}

func TestFixedDrawSource(t *testing.T) {
	for _, n := range []int{0, 17, 36} {
		if got := FixedDrawSource(n).WinningNumber(); got != n {
			t.Fatalf("FixedDrawSource(%d) = %d", n, got)
		}
	}
}

func TestRandDrawSourceRange(t *testing.T) {
	src := NewRandDrawSource()
	seen := map[int]bool{}
	for i := 0; i < 5000; i++ {
		n := src.WinningNumber()
		if n < WheelMin || n > WheelMax {
			t.Fatalf("draw out of range: %d", n)
		}
		seen[n] = true
	}
	// 5000 次抽样下 37 个槽位全部出现的概率极高，缺槽说明分布异常
	if len(seen) != wheelSlots {
		t.Fatalf("expected all %d slots to appear, got %d", wheelSlots, len(seen))
	}
}
