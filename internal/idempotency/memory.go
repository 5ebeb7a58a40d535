package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/imrishuroy/go-storefront-orderflow/internal/dispatch"
)

// sweepEvery is how many creates pass between expired-record sweeps.
const sweepEvery = 256

// MemoryStore is the in-process ledger used when no DynamoDB table is
// configured. Records expire after the TTL window.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]Record
	ttlWindow time.Duration
	creates   int
	nowFunc   func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(ttlWindow time.Duration) *MemoryStore {
	return &MemoryStore{
		records:   map[string]Record{},
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

func (m *MemoryStore) live(orderID string, now time.Time) (Record, bool) {
	rec, ok := m.records[orderID]
	if !ok {
		return Record{}, false
	}
	if rec.ExpiresAt > 0 && now.Unix() >= rec.ExpiresAt {
		delete(m.records, orderID)
		return Record{}, false
	}
	return rec, true
}

func (m *MemoryStore) sweep(now time.Time) {
	for id := range m.records {
		m.live(id, now)
	}
}

func (m *MemoryStore) CreateIfNotExists(_ context.Context, rec Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	m.creates++
	if m.creates%sweepEvery == 0 {
		m.sweep(now)
	}
	if existing, ok := m.live(rec.OrderID, now); ok && existing.Status != StatusFailed {
		return false, nil
	}

	rec.Status = StatusPending
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.ExpiresAt = now.Add(m.ttlWindow).Unix()
	m.records[rec.OrderID] = rec
	return true, nil
}

func (m *MemoryStore) Accept(_ context.Context, orderID, ack string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	rec, ok := m.live(orderID, now)
	if !ok {
		return fmt.Errorf("accept %s: %w", orderID, ErrNotFound)
	}
	rec.Ack = ack
	rec.UpdatedAt = now
	m.records[orderID] = rec
	return nil
}

func (m *MemoryStore) Get(_ context.Context, orderID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.live(orderID, m.nowFunc())
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) Claim(_ context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	rec, ok := m.live(orderID, now)
	if !ok || rec.Status != StatusPending {
		return false, nil
	}
	rec.Status = StatusDispatching
	rec.UpdatedAt = now
	m.records[orderID] = rec
	return true, nil
}

func (m *MemoryStore) Complete(_ context.Context, orderID string, out dispatch.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	rec, ok := m.live(orderID, now)
	if !ok {
		rec = Record{OrderID: orderID, CreatedAt: now, ExpiresAt: now.Add(m.ttlWindow).Unix()}
	}
	email, whatsapp := out.Email, out.WhatsApp
	rec.Status = StatusDone
	rec.Email = &email
	rec.WhatsApp = &whatsapp
	rec.UpdatedAt = now
	m.records[orderID] = rec
	return nil
}

func (m *MemoryStore) MarkFailed(_ context.Context, orderID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	rec, ok := m.live(orderID, now)
	if !ok {
		return nil
	}
	rec.Status = StatusFailed
	rec.Note = note
	rec.UpdatedAt = now
	m.records[orderID] = rec
	return nil
}
