package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/slime-shop/internal/storage"
	"golang.org/x/sync/singleflight"
)

// SweepInterval is how often Run looks for idle carts.
const SweepInterval = time.Minute

// Registry hands out one Store per session. Each store is rehydrated from
// storage the first time its session is seen.
type Registry struct {
	storage storage.Storage
	idleTTL time.Duration
	log     *slog.Logger
	opts    []Option
	now     func() time.Time

	mu     sync.Mutex
	stores map[string]*Store
	sfg    singleflight.Group // collapses concurrent rehydration of one session
}

func NewRegistry(st storage.Storage, idleTTL time.Duration, log *slog.Logger, opts ...Option) *Registry {
	return &Registry{
		storage: st,
		idleTTL: idleTTL,
		log:     log,
		opts:    append([]Option{WithLogger(log)}, opts...),
		now:     time.Now,
		stores:  make(map[string]*Store),
	}
}

func StorageKey(sessionID string) string {
	return "cart:" + sessionID
}

// Get returns the session's store, loading it on first use. A store whose load
// failed is not kept, so the next Get retries the read.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Store, error) {
	r.mu.Lock()
	s, ok := r.stores[sessionID]
	r.mu.Unlock()
	if ok {
		s.touch()
		return s, nil
	}

	v, err, _ := r.sfg.Do(sessionID, func() (interface{}, error) {
		r.mu.Lock()
		if s, ok := r.stores[sessionID]; ok {
			r.mu.Unlock()
			return s, nil
		}
		r.mu.Unlock()

		s, err := Open(ctx, r.storage, StorageKey(sessionID), r.opts...)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.stores[sessionID] = s
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	s = v.(*Store)
	s.touch()
	return s, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Run sweeps idle stores until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debug("idle carts released", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Sweep closes and forgets stores unused for longer than the idle TTL.
// Pinned stores stay. Their lines are already in storage and come back on the next Get.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Store
	for id, s := range r.stores {
		if s.idleSince(cutoff) {
			idle = append(idle, s)
			delete(r.stores, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

func (r *Registry) Close() {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]*Store)
	r.mu.Unlock()

	for _, s := range stores {
		s.Close()
	}
}
