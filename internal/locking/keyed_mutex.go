// Package locking provides per-lead locks used by the workflow engine.
package locking

import (
	"context"
	"sync"

	"leadflow/internal/workflow"
)

// KeyedMutex is an in-process LeadLocker. One buffered channel per lead acts
// as a context-aware mutex; entries are dropped once nobody holds or waits.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

var _ workflow.LeadLocker = (*KeyedMutex)(nil)

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, leadID int64) (workflow.UnlockFunc, error) {
	k.mu.Lock()
	e, ok := k.locks[leadID]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[leadID] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(leadID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-e.ch
			k.release(leadID, e)
		})
		return nil
	}, nil
}

func (k *KeyedMutex) release(leadID int64, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, leadID)
	}
}

// Len reports how many leads currently have holders or waiters.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
