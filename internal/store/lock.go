package store

import "sync"

// keyedLocks hands out one mutex per key so updates to distinct sessions
// never contend while updates to the same session serialize.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}

func (k *keyedLocks) drop(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.locks, key)
}
