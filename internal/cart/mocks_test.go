package cart

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fjod/slime-shop/internal/storage"
)

// manualScheduler fires callbacks only when Advance moves its clock past their deadline.
type manualScheduler struct {
	mu      sync.Mutex
	elapsed time.Duration
	timers  []*manualTimer
}

type manualTimer struct {
	mu       sync.Mutex
	deadline time.Duration
	f        func()
	done     bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.done
	t.done = true
	return wasActive
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{deadline: m.elapsed + d, f: f}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	m.elapsed += d
	now := m.elapsed
	var due []*manualTimer
	for _, t := range m.timers {
		if t.deadline <= now {
			due = append(due, t)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].deadline < due[j].deadline })
	for _, t := range due {
		t.mu.Lock()
		fire := !t.done
		t.done = true
		t.mu.Unlock()
		if fire {
			t.f()
		}
	}
}

// failingStorage holds nothing and rejects every write.
type failingStorage struct {
	sets int
}

func (f *failingStorage) Get(context.Context, string) (string, error) {
	return "", storage.ErrKeyNotFound
}

func (f *failingStorage) Set(context.Context, string, string) error {
	f.sets++
	return errors.New("storage unavailable")
}
