package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/Hertuq0910/roulette-backend/internal/model"

	mysqlerr "github.com/go-sql-driver/mysql"
)

// memStore 内存版 Store：map 模拟各表，错误语义对齐 MySQL 实现
// （未命中返回 sql.ErrNoRows，唯一键冲突返回 1062）
type memStore struct {
	mu sync.Mutex

	roulettes map[string]*model.Roulette
	bets      map[string]*model.Bet // bill_no -> bet
	betOrder  []string              // 落库顺序，结算按此遍历
	idemRefs  map[string]string     // idempotency_key -> bill_no
	logs      map[string]*model.SettlementLog
	outbox    []memOutboxEntry

	totalBets   int
	totalPayout float64
}

type memOutboxEntry struct {
	Topic  string
	BizKey string
}

func newMemStore() *memStore {
	return &memStore{
		roulettes: map[string]*model.Roulette{},
		bets:      map[string]*model.Bet{},
		idemRefs:  map[string]string{},
		logs:      map[string]*model.SettlementLog{},
	}
}

func dupKeyErr() error {
	return &mysqlerr.MySQLError{Number: 1062, Message: "Duplicate entry"}
}

// seedRoulette 直接种入指定状态的轮盘（绕过生命周期，便于构造测试前置条件）
func (m *memStore) seedRoulette(id string, status int8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roulettes[id] = &model.Roulette{RouletteID: id, Status: status}
}

func (m *memStore) betCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bets)
}

func (m *memStore) outboxTopics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.outbox))
	for _, e := range m.outbox {
		out = append(out, e.Topic)
	}
	return out
}

func (m *memStore) InsertRoulette(_ context.Context, r *model.Roulette) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roulettes[r.RouletteID]; ok {
		return dupKeyErr()
	}
	cp := *r
	cp.Status = model.StatusCreated
	m.roulettes[r.RouletteID] = &cp
	return nil
}

func (m *memStore) SelectIdemRef(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.idemRefs[key]
	if !ok {
		return "", sql.ErrNoRows
	}
	return ref, nil
}

func (m *memStore) GetBetByBillNo(_ context.Context, billNo string) (*model.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[billNo]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

// snapshot / restore 模拟事务回滚：WithinTx 出错时恢复进入前的全量状态
func (m *memStore) snapshot() *memStore {
	s := newMemStore()
	for k, v := range m.roulettes {
		cp := *v
		s.roulettes[k] = &cp
	}
	for k, v := range m.bets {
		cp := *v
		s.bets[k] = &cp
	}
	s.betOrder = append([]string(nil), m.betOrder...)
	for k, v := range m.idemRefs {
		s.idemRefs[k] = v
	}
	for k, v := range m.logs {
		cp := *v
		s.logs[k] = &cp
	}
	s.outbox = append([]memOutboxEntry(nil), m.outbox...)
	s.totalBets = m.totalBets
	s.totalPayout = m.totalPayout
	return s
}

func (m *memStore) restore(s *memStore) {
	m.roulettes = s.roulettes
	m.bets = s.bets
	m.betOrder = s.betOrder
	m.idemRefs = s.idemRefs
	m.logs = s.logs
	m.outbox = s.outbox
	m.totalBets = s.totalBets
	m.totalPayout = s.totalPayout
}

func (m *memStore) WithinTx(_ context.Context, fn func(tx TxStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := m.snapshot()
	if err := fn(memTx{m}); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

type memTx struct {
	m *memStore
}

func (t memTx) RouletteStatusForUpdate(_ context.Context, rouletteID string) (int8, error) {
	r, ok := t.m.roulettes[rouletteID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return r.Status, nil
}

func (t memTx) SettlementStatusForUpdate(_ context.Context, rouletteID string) (int8, int8, error) {
	r, ok := t.m.roulettes[rouletteID]
	if !ok {
		return 0, 0, sql.ErrNoRows
	}
	return r.Status, r.IsSettled, nil
}

func (t memTx) MarkOpened(_ context.Context, rouletteID string) error {
	r, ok := t.m.roulettes[rouletteID]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = model.StatusOpen
	return nil
}

func (t memTx) MarkClosedSettled(_ context.Context, rouletteID string, winningNumber int, winningColor string) error {
	r, ok := t.m.roulettes[rouletteID]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = model.StatusClosed
	r.IsSettled = 1
	r.WinningNumber = winningNumber
	r.WinningColor = winningColor
	return nil
}

func (t memTx) UpdateSettlementStats(_ context.Context, _ string, totalBets int, totalPayout float64) error {
	t.m.totalBets = totalBets
	t.m.totalPayout = totalPayout
	return nil
}

func (t memTx) InsertIdemKey(_ context.Context, k *model.IdempotencyKey) error {
	if _, ok := t.m.idemRefs[k.IdempotencyKey]; ok {
		return dupKeyErr()
	}
	t.m.idemRefs[k.IdempotencyKey] = k.Ref
	return nil
}

func (t memTx) InsertBet(_ context.Context, b *model.Bet) error {
	if _, ok := t.m.bets[b.BillNo]; ok {
		return dupKeyErr()
	}
	cp := *b
	cp.BillStatus = 1
	t.m.bets[b.BillNo] = &cp
	t.m.betOrder = append(t.m.betOrder, b.BillNo)
	return nil
}

func (t memTx) BetsForSettlement(_ context.Context, rouletteID string) ([]model.Bet, error) {
	var out []model.Bet
	for _, no := range t.m.betOrder {
		b := t.m.bets[no]
		if b.RouletteID == rouletteID && b.BillStatus == 1 {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (t memTx) UpdateBetSettlement(_ context.Context, billNo string, isWinner bool, payout float64, winningNumber int, winningColor string) error {
	b, ok := t.m.bets[billNo]
	if !ok {
		return sql.ErrNoRows
	}
	b.BillStatus = 2
	b.IsWinner = 0
	if isWinner {
		b.IsWinner = 1
	}
	b.Payout = payout
	b.WinningNumber = winningNumber
	b.WinningColor = winningColor
	return nil
}

func (t memTx) CreateSettlementLog(_ context.Context, log *model.SettlementLog) error {
	if _, ok := t.m.logs[log.RouletteID]; ok {
		return dupKeyErr()
	}
	cp := *log
	t.m.logs[log.RouletteID] = &cp
	return nil
}

func (t memTx) AppendOutbox(_ context.Context, topic, bizKey string, _ any) error {
	t.m.outbox = append(t.m.outbox, memOutboxEntry{Topic: topic, BizKey: bizKey})
	return nil
}
