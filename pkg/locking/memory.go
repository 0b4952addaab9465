package locking

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider implements Provider with one in-process mutex per key.
// Sufficient when a single scheduler process owns the ledger.
type MemoryProvider struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		slots: make(map[string]chan struct{}),
	}
}

func (p *MemoryProvider) slot(key string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		s <- struct{}{}
		p.slots[key] = s
	}
	return s
}

func (p *MemoryProvider) Acquire(ctx context.Context, key string, wait time.Duration) (Handle, error) {
	s := p.slot(key)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-s:
		return &memoryHandle{slot: s}, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type memoryHandle struct {
	slot     chan struct{}
	released bool
	mu       sync.Mutex
}

func (h *memoryHandle) Release(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}
	h.released = true
	h.slot <- struct{}{}
	return nil
}
