package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/slime-shop/internal/domain"
	"github.com/fjod/slime-shop/internal/logger"
	"github.com/fjod/slime-shop/internal/storage"
)

const (
	// AnimationDuration is how long the "item added" state stays on after an add.
	AnimationDuration = 1 * time.Second
	// PanelOpenDelay lets the add animation play before the side panel slides open.
	PanelOpenDelay = 300 * time.Millisecond
)

// ErrUnavailable means the stored cart could not be read. Nothing is written
// for the session until a later load succeeds.
var ErrUnavailable = errors.New("cart unavailable")

// Phase is the add-feedback state: Idle -> Animating -> PanelOpen.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAnimating
	PhasePanelOpen
)

func (p Phase) String() string {
	switch p {
	case PhaseAnimating:
		return "animating"
	case PhasePanelOpen:
		return "panel_open"
	default:
		return "idle"
	}
}

// Store is the cart of one session. Lines are written to storage after every
// mutation; panel and animation flags live in memory only.
// None of the operations return errors: storage failures are logged.
type Store struct {
	mu      sync.Mutex
	key     string
	storage storage.Storage
	log     *slog.Logger
	sched   Scheduler
	now     func() time.Time
	onEvent func(op string)

	lines     []domain.CartLine
	itemCount int
	panelOpen bool
	animating bool
	lastAdded *domain.Product
	phase     Phase

	animTimer  Timer
	panelTimer Timer
	closed     bool
	pins       int
	lastUsed   time.Time
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithScheduler(sched Scheduler) Option {
	return func(s *Store) { s.sched = sched }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithEventHook is called with the operation name after every mutation.
func WithEventHook(fn func(op string)) Option {
	return func(s *Store) { s.onEvent = fn }
}

// Open creates the store for key and rehydrates its lines from st once.
// A missing or undecodable entry yields an empty cart. A failed read returns
// ErrUnavailable so the stored lines are never overwritten by a blank store.
func Open(ctx context.Context, st storage.Storage, key string, opts ...Option) (*Store, error) {
	s := &Store{
		key:     key,
		storage: st,
		log:     slog.Default(),
		sched:   realScheduler{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastUsed = s.now()
	if err := s.rehydrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) rehydrate(ctx context.Context) error {
	log := logger.FromContext(ctx, s.log)

	data, err := s.storage.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil
		}
		log.Warn("cart load error", "key", s.key, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, s.key, err)
	}

	var lines []domain.CartLine
	if err := json.Unmarshal([]byte(data), &lines); err != nil {
		log.Warn("cart decode error", "key", s.key, "error", err)
		return nil
	}

	// Older entries may hold duplicates or non-positive quantities; fold them the same way adds do.
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity <= 0 {
			continue
		}
		if i := s.indexOf(l.ProductID); i >= 0 {
			s.lines[i].Quantity += l.Quantity
			continue
		}
		s.lines = append(s.lines, l)
	}
	s.itemCount = domain.ItemCount(s.lines)
	return nil
}

func (s *Store) Key() string {
	return s.key
}

// AddToCart merges quantity into an existing line or appends a new one, then
// plays the add animation and opens the panel after PanelOpenDelay.
// A non-positive quantity is treated as 1; a product without an id is ignored.
func (s *Store) AddToCart(ctx context.Context, p domain.Product, quantity int) {
	s.add(ctx, p, quantity, -1)
}

// AddToCartWithin is AddToCart that refuses the add when the line would end
// up above limit. It reports whether the add happened.
func (s *Store) AddToCartWithin(ctx context.Context, p domain.Product, quantity, limit int) bool {
	return s.add(ctx, p, quantity, limit)
}

func (s *Store) add(ctx context.Context, p domain.Product, quantity, limit int) bool {
	p = p.Normalize()
	if p.ID == "" {
		logger.FromContext(ctx, s.log).Warn("add to cart ignored: empty product id")
		return false
	}
	if quantity <= 0 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(p.ID)
	current := 0
	if i >= 0 {
		current = s.lines[i].Quantity
	}
	if limit >= 0 && current+quantity > limit {
		return false
	}

	if i >= 0 {
		s.lines[i].Quantity += quantity
	} else {
		s.lines = append(s.lines, domain.NewCartLine(p, quantity))
	}
	s.startAddFeedback(p)
	s.commit(ctx, "add")
	return true
}

func (s *Store) RemoveFromCart(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(ctx, productID)
}

// UpdateQuantity sets the quantity of an existing line; quantity <= 0 removes it.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		s.remove(ctx, productID)
		return
	}
	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.lines[i].Quantity = quantity
	s.commit(ctx, "update")
}

// ClearCart empties the lines. Panel and animation flags are left as they are.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.commit(ctx, "clear")
}

func (s *Store) ToggleCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panelOpen = !s.panelOpen
	s.stopTimer(&s.panelTimer)
	switch {
	case s.panelOpen:
		s.phase = PhasePanelOpen
	case s.animating:
		s.phase = PhaseAnimating
	default:
		s.phase = PhaseIdle
	}
	s.lastUsed = s.now()
}

func (s *Store) Snapshot() domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := domain.CartState{
		Lines:       s.copyLines(),
		ItemCount:   s.itemCount,
		IsPanelOpen: s.panelOpen,
		IsAnimating: s.animating,
	}
	if s.lastAdded != nil {
		p := *s.lastAdded
		state.LastAddedProduct = &p
	}
	return state
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLines()
}

func (s *Store) Quantity(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(productID); i >= 0 {
		return s.lines[i].Quantity
	}
	return 0
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemCount
}

func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Store) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Pin keeps the store out of idle sweeps until the matching Unpin.
func (s *Store) Pin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins++
	s.lastUsed = s.now()
}

func (s *Store) Unpin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pins > 0 {
		s.pins--
	}
	s.lastUsed = s.now()
}

// idleSince reports whether the store is unpinned and unused since cutoff.
func (s *Store) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pins == 0 && s.lastUsed.Before(cutoff)
}

func (s *Store) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = s.now()
}

// Close cancels pending animation and panel callbacks. Cart operations keep working.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimer(&s.animTimer)
	s.stopTimer(&s.panelTimer)
}

func (s *Store) remove(ctx context.Context, productID string) {
	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.commit(ctx, "remove")
}

func (s *Store) indexOf(productID string) int {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) copyLines() []domain.CartLine {
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// commit recomputes the item count and writes the lines through. Caller holds mu.
func (s *Store) commit(ctx context.Context, op string) {
	s.itemCount = domain.ItemCount(s.lines)
	s.lastUsed = s.now()
	s.persist(ctx)
	if s.onEvent != nil {
		s.onEvent(op)
	}
}

func (s *Store) persist(ctx context.Context) {
	lines := s.lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		logger.FromContext(ctx, s.log).Error("cart encode error", "key", s.key, "error", err)
		return
	}
	if err := s.storage.Set(ctx, s.key, string(data)); err != nil {
		logger.FromContext(ctx, s.log).Error("cart persist error", "key", s.key, "error", err)
	}
}

// startAddFeedback restarts the animation and the delayed panel open. Caller holds mu.
// A closed store has no callbacks left to end the animation, so it gets none.
func (s *Store) startAddFeedback(p domain.Product) {
	if s.closed {
		return
	}
	s.animating = true
	s.lastAdded = &p
	if s.phase != PhasePanelOpen {
		s.phase = PhaseAnimating
	}

	s.stopTimer(&s.animTimer)
	s.animTimer = s.sched.AfterFunc(AnimationDuration, s.endAnimation)

	if !s.panelOpen {
		s.stopTimer(&s.panelTimer)
		s.panelTimer = s.sched.AfterFunc(PanelOpenDelay, s.openPanel)
	}
}

func (s *Store) endAnimation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.animating = false
	s.lastAdded = nil
	s.animTimer = nil
	if s.phase == PhaseAnimating {
		s.phase = PhaseIdle
	}
}

func (s *Store) openPanel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.panelOpen = true
	s.panelTimer = nil
	s.phase = PhasePanelOpen
}

func (s *Store) stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
