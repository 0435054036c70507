package service

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// 轮盘共 37 个槽位：0-36
const (
	WheelMin   = 0
	WheelMax   = 36
	wheelSlots = WheelMax - WheelMin + 1
)

const (
	ColorRed   = "red"
	ColorBlack = "black"
)

const (
	BetTypeNumber = "number"
	BetTypeColor  = "color"
)

// DrawSource 产生 [0,36] 内等概率的开奖号码
// 抽象成接口以便测试注入固定号码，生产实现为进程内伪随机源
type DrawSource interface {
	WinningNumber() int
}

type randDrawSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandDrawSource 返回默认开奖源（按进程启动时间播种）
func NewRandDrawSource() DrawSource {
	return &randDrawSource{rng: rand.New(rand.NewSource(uint64(time.Now().UnixNano())))}
}

func (d *randDrawSource) WinningNumber() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return WheelMin + d.rng.Intn(wheelSlots)
}

// FixedDrawSource 固定开奖源（测试/回放用）
type FixedDrawSource int

func (f FixedDrawSource) WinningNumber() int { return int(f) }

// ColorOf 按号码导出开奖颜色：偶数为 red，奇数为 black；0 按偶数处理，即 red
// 注意：这是需求方给定的规则，与真实轮盘的红黑分布不一致，不要按真实轮盘"修正"
func ColorOf(n int) string {
	if n%2 == 0 {
		return ColorRed
	}
	return ColorBlack
}
