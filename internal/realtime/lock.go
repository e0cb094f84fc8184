// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// lockSet hands out one FIFO lock per identity. Entries are dropped once no
// goroutine holds or waits on them.
type lockSet struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newLockSet() *lockSet {
	return &lockSet{locks: make(map[string]*identityLock)}
}

// acquire blocks until the identity's lock is held or ctx is done. Waiters are
// served in arrival order. The returned func releases the lock.
func (s *lockSet) acquire(ctx context.Context, identity string) (func(), error) {
	s.mu.Lock()
	l := s.locks[identity]
	if l == nil {
		l = &identityLock{sem: semaphore.NewWeighted(1)}
		s.locks[identity] = l
	}
	l.refs++
	s.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		s.unref(identity, l)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.sem.Release(1)
			s.unref(identity, l)
		})
	}, nil
}

func (s *lockSet) unref(identity string, l *identityLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 && s.locks[identity] == l {
		delete(s.locks, identity)
	}
}

// len reports how many identities currently have lock state.
func (s *lockSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
