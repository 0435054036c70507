package redis

// Redis Key 定义与构造器
// 统一管理业务使用的 Redis Key，避免散落的魔法字符串，便于统一维护与变更。

const (
	// PrefixBetIdemResult：投注幂等“结果缓存”Key 的前缀。
	// 作用：缓存某个 idempotency key 对应的第一次成功结果（BetOutput JSON），用于后续重复请求直接返回。
	PrefixBetIdemResult = "bet:idem:result:"
	// PrefixBetIdemLock：投注幂等“进行中锁”Key 的前缀。
	// 作用：使用 SETNX + TTL 标记 idempotency key 正在处理，吸收瞬时重复请求，减轻数据库压力。
	PrefixBetIdemLock = "bet:idem:lock:"

	// PrefixRouletteInfo：轮盘状态快照缓存，用于 GET 快速查询
	PrefixRouletteInfo = "roulette:info:"
	// PrefixRouletteResult：结算结果缓存（中奖号码/颜色）
	PrefixRouletteResult = "roulette:result:"
)

// IdemResultKey：构造幂等“结果缓存”的完整 Key。
// 形如：bet:idem:result:{idempotency_key}
func IdemResultKey(k string) string { return PrefixBetIdemResult + k }

// IdemLockKey：构造幂等“进行中锁”的完整 Key。
// 形如：bet:idem:lock:{idempotency_key}
func IdemLockKey(k string) string { return PrefixBetIdemLock + k }

// RouletteInfoKey：构造轮盘状态缓存 Key。形如：roulette:info:{roulette_id}
func RouletteInfoKey(rouletteID string) string { return PrefixRouletteInfo + rouletteID }

// RouletteResultKey：构造结算结果缓存 Key。形如：roulette:result:{roulette_id}
func RouletteResultKey(rouletteID string) string { return PrefixRouletteResult + rouletteID }
