package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/cmpt474/mm-login-gateway/internal/ports"
)

var _ ports.IdentityLocker = (*KeyedLocker)(nil)

// KeyedLocker serialises work per identity within one process.
// Entries are dropped once no caller holds or waits on them.
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

// NewKeyedLocker returns an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[string]*slot)}
}

// Lock blocks until identity is held or ctx ends.
func (k *KeyedLocker) Lock(ctx context.Context, identity string) (func(), error) {
	if identity == "" {
		return nil, errors.New("identity lock: identity cannot be empty")
	}

	k.mu.Lock()
	s, ok := k.slots[identity]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[identity] = s
	}
	s.waiters++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(identity, s, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(identity, s, true) })
	}, nil
}

func (k *KeyedLocker) release(identity string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	k.mu.Lock()
	s.waiters--
	if s.waiters == 0 {
		delete(k.slots, identity)
	}
	k.mu.Unlock()
}

// size reports the number of live slots.
func (k *KeyedLocker) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
