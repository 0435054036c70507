package service

import (
	"context"

	infmysql "github.com/Hertuq0910/roulette-backend/internal/infra/mysql"
	"github.com/Hertuq0910/roulette-backend/internal/model"

	"github.com/jmoiron/sqlx"
)

// Store 存储能力接口：服务层只依赖该接口，不直接触碰具体数据库连接
// 默认实现落 MySQL；测试可注入内存实现
type Store interface {
	// InsertRoulette 落轮盘记录（status=created）
	InsertRoulette(ctx context.Context, r *model.Roulette) error
	// SelectIdemRef 按幂等键查关联的业务单号，未命中返回空串
	SelectIdemRef(ctx context.Context, key string) (string, error)
	// GetBetByBillNo 按注单号读取注单
	GetBetByBillNo(ctx context.Context, billNo string) (*model.Bet, error)
	// WithinTx 在单个事务内执行 fn：fn 返回错误则回滚，否则提交
	WithinTx(ctx context.Context, fn func(tx TxStore) error) error
}

// TxStore 事务内可用的操作集合，仅在 WithinTx 回调中有效
type TxStore interface {
	RouletteStatusForUpdate(ctx context.Context, rouletteID string) (int8, error)
	SettlementStatusForUpdate(ctx context.Context, rouletteID string) (int8, int8, error)
	MarkOpened(ctx context.Context, rouletteID string) error
	MarkClosedSettled(ctx context.Context, rouletteID string, winningNumber int, winningColor string) error
	UpdateSettlementStats(ctx context.Context, rouletteID string, totalBets int, totalPayout float64) error
	InsertIdemKey(ctx context.Context, k *model.IdempotencyKey) error
	InsertBet(ctx context.Context, b *model.Bet) error
	BetsForSettlement(ctx context.Context, rouletteID string) ([]model.Bet, error)
	UpdateBetSettlement(ctx context.Context, billNo string, isWinner bool, payout float64, winningNumber int, winningColor string) error
	CreateSettlementLog(ctx context.Context, log *model.SettlementLog) error
	AppendOutbox(ctx context.Context, topic, bizKey string, payload any) error
}

// dbStore 默认实现：委托 model 层的 sqlx 访问函数
type dbStore struct{}

// DefaultStore 返回 MySQL 存储实现
func DefaultStore() Store { return dbStore{} }

func (dbStore) InsertRoulette(ctx context.Context, r *model.Roulette) error {
	return r.Insert(ctx, infmysql.SQLX())
}

func (dbStore) SelectIdemRef(ctx context.Context, key string) (string, error) {
	return model.SelectRefByIdemKey(ctx, infmysql.SQLX(), key)
}

func (dbStore) GetBetByBillNo(ctx context.Context, billNo string) (*model.Bet, error) {
	return model.GetBetByBillNo(ctx, infmysql.SQLX(), billNo)
}

func (dbStore) WithinTx(ctx context.Context, fn func(tx TxStore) error) error {
	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(dbTxStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type dbTxStore struct {
	tx *sqlx.Tx
}

func (s dbTxStore) RouletteStatusForUpdate(ctx context.Context, rouletteID string) (int8, error) {
	return model.GetStatusForUpdate(ctx, s.tx, rouletteID)
}

func (s dbTxStore) SettlementStatusForUpdate(ctx context.Context, rouletteID string) (int8, int8, error) {
	return model.GetSettlementStatusForUpdate(ctx, s.tx, rouletteID)
}

func (s dbTxStore) MarkOpened(ctx context.Context, rouletteID string) error {
	return model.MarkOpened(ctx, s.tx, rouletteID)
}

func (s dbTxStore) MarkClosedSettled(ctx context.Context, rouletteID string, winningNumber int, winningColor string) error {
	return model.MarkClosedSettled(ctx, s.tx, rouletteID, winningNumber, winningColor)
}

func (s dbTxStore) UpdateSettlementStats(ctx context.Context, rouletteID string, totalBets int, totalPayout float64) error {
	return model.UpdateSettlementStats(ctx, s.tx, rouletteID, totalBets, totalPayout)
}

func (s dbTxStore) InsertIdemKey(ctx context.Context, k *model.IdempotencyKey) error {
	return k.Insert(ctx, s.tx)
}

func (s dbTxStore) InsertBet(ctx context.Context, b *model.Bet) error {
	return b.Insert(ctx, s.tx)
}

func (s dbTxStore) BetsForSettlement(ctx context.Context, rouletteID string) ([]model.Bet, error) {
	return model.ListByRouletteForUpdate(ctx, s.tx, rouletteID)
}

func (s dbTxStore) UpdateBetSettlement(ctx context.Context, billNo string, isWinner bool, payout float64, winningNumber int, winningColor string) error {
	return model.UpdateSettlement(ctx, s.tx, billNo, isWinner, payout, winningNumber, winningColor)
}

func (s dbTxStore) CreateSettlementLog(ctx context.Context, log *model.SettlementLog) error {
	return model.CreateSettlementLog(ctx, s.tx, log)
}

func (s dbTxStore) AppendOutbox(ctx context.Context, topic, bizKey string, payload any) error {
	return model.CreateOutbox(ctx, s.tx, topic, bizKey, payload)
}
