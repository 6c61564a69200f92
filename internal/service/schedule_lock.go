package service

import (
	"context"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"
)

// KeyedMutex serialises work per string key inside one process.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

// keyedEntry is a one-token semaphore so waiters can give up on ctx.
type keyedEntry struct {
	token chan struct{}
	refs  int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock acquires every key in sorted order and returns the matching unlock.
// It returns ctx.Err() if ctx ends first; keys taken so far are released.
func (k *KeyedMutex) Lock(ctx context.Context, keys ...string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	keys = sortedUnique(keys)
	entries := make([]*keyedEntry, len(keys))

	k.mu.Lock()
	for i, key := range keys {
		entry, ok := k.locks[key]
		if !ok {
			entry = &keyedEntry{token: make(chan struct{}, 1)}
			k.locks[key] = entry
		}
		entry.refs++
		entries[i] = entry
	}
	k.mu.Unlock()

	for i, entry := range entries {
		select {
		case entry.token <- struct{}{}:
		case <-ctx.Done():
			k.release(keys, entries, i)
			return func() {}, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(keys, entries, len(entries)) })
	}, nil
}

// release frees the first held entries and drops the references of all of them.
func (k *KeyedMutex) release(keys []string, entries []*keyedEntry, held int) {
	for i := held - 1; i >= 0; i-- {
		<-entries[i].token
	}
	k.mu.Lock()
	for i, key := range keys {
		entries[i].refs--
		if entries[i].refs == 0 {
			delete(k.locks, key)
		}
	}
	k.mu.Unlock()
}

// Len returns the number of keys currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func sortedUnique(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok || key == "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

type advisoryLocker interface {
	AcquireXact(ctx context.Context, tx sqlx.ExecerContext, keys ...string) error
}

// ScheduleLocker serialises writes that touch a teacher's or class section's
// week. It holds an in-process lock plus transaction-scoped advisory locks so
// separate API replicas are serialised too.
type ScheduleLocker struct {
	keyed    *KeyedMutex
	advisory advisoryLocker
}

// NewScheduleLocker builds a locker. A nil advisory locker limits
// serialisation to the current process.
func NewScheduleLocker(advisory advisoryLocker) *ScheduleLocker {
	return &ScheduleLocker{keyed: NewKeyedMutex(), advisory: advisory}
}

func teacherLockKey(id string) string { return "teacher:" + id }
func classLockKey(id string) string   { return "class:" + id }

// Acquire locks teacherID and classSectionID for the lifetime of tx; an empty
// id is skipped. The returned release must be called after the transaction ends.
func (l *ScheduleLocker) Acquire(ctx context.Context, tx *sqlx.Tx, teacherID, classSectionID string) (func(), error) {
	var keys []string
	if teacherID != "" {
		keys = append(keys, teacherLockKey(teacherID))
	}
	if classSectionID != "" {
		keys = append(keys, classLockKey(classSectionID))
	}
	keys = sortedUnique(keys)
	release, err := l.keyed.Lock(ctx, keys...)
	if err != nil {
		return release, err
	}
	if l.advisory != nil && tx != nil {
		if err := l.advisory.AcquireXact(ctx, tx, keys...); err != nil {
			release()
			return func() {}, err
		}
	}
	return release, nil
}
