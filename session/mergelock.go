package session

import (
	"sync"
)

// MergeLockRegistry hands out one non-blocking exclusive lock per session
// name. Entries are created on first use and never evicted, so the map grows
// with the number of distinct names seen by the process.
type MergeLockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMergeLockRegistry() *MergeLockRegistry {
	return &MergeLockRegistry{locks: make(map[string]*sync.Mutex)}
}

func (r *MergeLockRegistry) lockFor(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[name]
	if !ok {
		l = &sync.Mutex{}
		r.locks[name] = l
	}
	return l
}

// TryAcquire takes the merge lock for name without waiting. It returns
// false when another holder has it.
func (r *MergeLockRegistry) TryAcquire(name string) (*MergeGuard, bool) {
	l := r.lockFor(name)
	if !l.TryLock() {
		return nil, false
	}
	return &MergeGuard{name: name, lock: l}, true
}

// RunExclusive runs fn while holding name's merge lock. When the lock is
// busy fn is not run and ran is false. The lock is released on every path,
// including a panic in fn, which is re-raised afterwards.
func (r *MergeLockRegistry) RunExclusive(name string, fn func() error) (ran bool, err error) {
	guard, ok := r.TryAcquire(name)
	if !ok {
		return false, nil
	}
	defer guard.Release()
	return true, fn()
}

// Len reports how many names have an entry.
func (r *MergeLockRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

// MergeGuard is a held merge lock.
type MergeGuard struct {
	name string
	lock *sync.Mutex
	once sync.Once
}

func (g *MergeGuard) Name() string {
	return g.name
}

// Release unlocks the guard. Only the first call has an effect.
func (g *MergeGuard) Release() {
	g.once.Do(g.lock.Unlock)
}
