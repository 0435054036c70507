package state

import "fmt"

// State 轮盘状态
const (
	StateCreated = "created" // 已创建/未开放
	StateOpen    = "open"    // 开放下注中
	StateClosed  = "closed"  // 已关闭(已开奖结算)
)

// Event 轮盘事件
const (
	EvtOpen  = "open"
	EvtClose = "close"
)

// NextState 根据当前状态与事件计算下一个状态，非法转换报错
// 状态只能单向推进：created --open--> open --close--> closed
func NextState(cur, evt string) (string, error) {
	switch cur {
	case StateCreated:
		if evt == EvtOpen {
			return StateOpen, nil
		}
	case StateOpen:
		if evt == EvtClose {
			return StateClosed, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}

// AcceptsBets 当前状态是否允许下注：仅 open 状态允许
func AcceptsBets(cur string) bool { return cur == StateOpen }
