package cart

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/slime-shop/internal/domain"
	"github.com/fjod/slime-shop/internal/logger"
	"github.com/fjod/slime-shop/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cloudSlime  = domain.Product{ID: "A", Name: "Cloud Slime", UnitPrice: 10, Category: "Cloud"}
	butterSlime = domain.Product{ID: "B", Name: "Butter Slime", UnitPrice: 7.5, Category: "Butter"}
)

func newTestStore(t *testing.T, st storage.Storage) (*Store, *manualScheduler) {
	sched := &manualScheduler{}
	s, err := Open(context.Background(), st, "cart:test", WithScheduler(sched), WithLogger(logger.Nop()))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, sched
}

func storedLines(t *testing.T, st storage.Storage, key string) []domain.CartLine {
	data, err := st.Get(context.Background(), key)
	require.NoError(t, err)
	var lines []domain.CartLine
	require.NoError(t, json.Unmarshal([]byte(data), &lines))
	return lines
}

func TestAddToCart_MergesQuantity(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryStorage())
	ctx := context.Background()

	s.AddToCart(ctx, cloudSlime, 2)
	s.AddToCart(ctx, cloudSlime, 3)

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "A", lines[0].ProductID)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, 5, s.ItemCount())
}

func TestAddToCart_KeepsInsertionOrder(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryStorage())
	ctx := context.Background()

	s.AddToCart(ctx, butterSlime, 1)
	s.AddToCart(ctx, cloudSlime, 1)
	s.AddToCart(ctx, butterSlime, 1)

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "B", lines[0].ProductID)
	assert.Equal(t, "A", lines[1].ProductID)
	assert.Equal(t, 3, s.ItemCount())
}

func TestAddToCart_DefaultsBadInput(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryStorage())
	ctx := context.Background()

	s.AddToCart(ctx, domain.Product{ID: "C", UnitPrice: 4}, 0)
	s.AddToCart(ctx, domain.Product{Name: "no id"}, 1)

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.Equal(t, "C", lines[0].Name)
	assert.Equal(t, domain.DefaultCategory, lines[0].Category)
}

func TestRemoveFromCart_Idempotent(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryStorage())
	ctx := context.Background()
	s.AddToCart(ctx, cloudSlime, 1)
	s.AddToCart(ctx, butterSlime, 2)

	s.RemoveFromCart(ctx, "A")
	once := s.Snapshot()
	s.RemoveFromCart(ctx, "A")
	twice := s.Snapshot()

	assert.Equal(t, once.Lines, twice.Lines)
	assert.Equal(t, 2, twice.ItemCount)
}

func TestUpdateQuantity(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryStorage())
	ctx := context.Background()
	s.AddToCart(ctx, cloudSlime, 2)

	s.UpdateQuantity(ctx, "A", 7)
	assert.Equal(t, 7, s.ItemCount())

	s.UpdateQuantity(ctx, "missing", 3)
	assert.Len(t, s.Lines(), 1)
	assert.Equal(t, 7, s.ItemCount())
}

func TestUpdateQuantity_ZeroRemoves(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryStorage())
	ctx := context.Background()
	s.AddToCart(ctx, cloudSlime, 2)
	s.AddToCart(ctx, cloudSlime, 3)

	s.UpdateQuantity(ctx, "A", 0)

	assert.Empty(t, s.Lines())
	assert.Equal(t, 0, s.ItemCount())

	s.AddToCart(ctx, cloudSlime, 1)
	s.UpdateQuantity(ctx, "A", -4)
	assert.True(t, s.IsEmpty())
}

func TestClearCart_LeavesPanelFlags(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryStorage())
	ctx := context.Background()
	s.AddToCart(ctx, cloudSlime, 1)
	s.ToggleCart()

	s.ClearCart(ctx)

	state := s.Snapshot()
	assert.Empty(t, state.Lines)
	assert.Zero(t, state.ItemCount)
	assert.True(t, state.IsPanelOpen)
	assert.True(t, state.IsAnimating)
}

func TestToggleCart(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryStorage())

	s.ToggleCart()
	assert.True(t, s.Snapshot().IsPanelOpen)
	assert.Equal(t, PhasePanelOpen, s.Phase())

	s.ToggleCart()
	assert.False(t, s.Snapshot().IsPanelOpen)
	assert.Equal(t, PhaseIdle, s.Phase())
}

func TestEveryMutationPersists(t *testing.T) {
	st := storage.NewMemoryStorage()
	s, _ := newTestStore(t, st)
	ctx := context.Background()

	s.AddToCart(ctx, cloudSlime, 2)
	assert.Equal(t, s.Lines(), storedLines(t, st, "cart:test"))

	s.AddToCart(ctx, butterSlime, 1)
	s.UpdateQuantity(ctx, "A", 4)
	assert.Equal(t, s.Lines(), storedLines(t, st, "cart:test"))

	s.RemoveFromCart(ctx, "B")
	assert.Equal(t, s.Lines(), storedLines(t, st, "cart:test"))

	s.ClearCart(ctx)
	assert.Empty(t, storedLines(t, st, "cart:test"))
}

func TestPersistenceRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	st := storage.NewRedisStorage(client, time.Hour)
	ctx := context.Background()

	before, _ := newTestStore(t, st)
	before.AddToCart(ctx, butterSlime, 2)
	before.AddToCart(ctx, cloudSlime, 1)
	before.ToggleCart()
	want := before.Lines()
	before.Close()

	// simulated restart
	after, _ := newTestStore(t, st)
	state := after.Snapshot()

	assert.Equal(t, want, state.Lines)
	assert.Equal(t, 3, state.ItemCount)
	assert.False(t, state.IsPanelOpen)
	assert.False(t, state.IsAnimating)
	assert.Nil(t, state.LastAddedProduct)
	assert.Equal(t, PhaseIdle, after.Phase())
}

func TestRehydrate_CorruptEntry(t *testing.T) {
	st := storage.NewMemoryStorage()
	require.NoError(t, st.Set(context.Background(), "cart:test", `[{"product_id":"A","quan`))

	s, _ := newTestStore(t, st)

	assert.True(t, s.IsEmpty())
}

func TestRehydrate_FoldsDuplicates(t *testing.T) {
	st := storage.NewMemoryStorage()
	raw := `[{"product_id":"A","quantity":2},{"product_id":"A","quantity":1},{"product_id":"B","quantity":0}]`
	require.NoError(t, st.Set(context.Background(), "cart:test", raw))

	s, _ := newTestStore(t, st)

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, 3, s.ItemCount())
}

func TestStorageFailureIsNotFatal(t *testing.T) {
	st := &failingStorage{}
	s, _ := newTestStore(t, st)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		s.AddToCart(ctx, cloudSlime, 1)
		s.UpdateQuantity(ctx, "A", 3)
		s.RemoveFromCart(ctx, "A")
		s.ClearCart(ctx)
	})
	assert.Equal(t, 4, st.sets)
	assert.True(t, s.IsEmpty())
}

func TestAddFeedback_AnimationThenPanel(t *testing.T) {
	s, sched := newTestStore(t, storage.NewMemoryStorage())

	s.AddToCart(context.Background(), cloudSlime, 1)

	state := s.Snapshot()
	assert.True(t, state.IsAnimating)
	assert.False(t, state.IsPanelOpen)
	require.NotNil(t, state.LastAddedProduct)
	assert.Equal(t, "A", state.LastAddedProduct.ID)
	assert.Equal(t, PhaseAnimating, s.Phase())

	sched.Advance(PanelOpenDelay)
	state = s.Snapshot()
	assert.True(t, state.IsPanelOpen)
	assert.True(t, state.IsAnimating)
	assert.Equal(t, PhasePanelOpen, s.Phase())

	sched.Advance(AnimationDuration - PanelOpenDelay)
	state = s.Snapshot()
	assert.False(t, state.IsAnimating)
	assert.Nil(t, state.LastAddedProduct)
	assert.True(t, state.IsPanelOpen)
	assert.Equal(t, PhasePanelOpen, s.Phase())
}

func TestAddFeedback_RestartsOnSecondAdd(t *testing.T) {
	s, sched := newTestStore(t, storage.NewMemoryStorage())
	ctx := context.Background()

	s.AddToCart(ctx, cloudSlime, 1)
	sched.Advance(AnimationDuration - time.Millisecond)
	s.AddToCart(ctx, butterSlime, 1)
	sched.Advance(2 * time.Millisecond)

	state := s.Snapshot()
	assert.True(t, state.IsAnimating)
	require.NotNil(t, state.LastAddedProduct)
	assert.Equal(t, "B", state.LastAddedProduct.ID)
}

func TestClose_CancelsPendingCallbacks(t *testing.T) {
	s, sched := newTestStore(t, storage.NewMemoryStorage())

	s.AddToCart(context.Background(), cloudSlime, 1)
	s.Close()
	sched.Advance(AnimationDuration)

	state := s.Snapshot()
	assert.False(t, state.IsPanelOpen)
	assert.Equal(t, 1, state.ItemCount)
}

func TestConcurrentAdds(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryStorage())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddToCart(ctx, cloudSlime, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.ItemCount())
	assert.Len(t, s.Lines(), 1)
}

func TestAddToCartWithin_RespectsLimit(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryStorage())
	ctx := context.Background()

	assert.True(t, s.AddToCartWithin(ctx, cloudSlime, 3, 5))
	assert.False(t, s.AddToCartWithin(ctx, cloudSlime, 3, 5))
	assert.True(t, s.AddToCartWithin(ctx, cloudSlime, 2, 5))
	assert.False(t, s.AddToCartWithin(ctx, butterSlime, 1, 0))

	assert.Equal(t, 5, s.Quantity("A"))
	assert.Zero(t, s.Quantity("B"))
}

func TestAddToCartWithin_ConcurrentAddsStayInStock(t *testing.T) {
	st := storage.NewMemoryStorage()
	s, _ := newTestStore(t, st)
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		added int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.AddToCartWithin(ctx, cloudSlime, 1, 10) {
				mu.Lock()
				added++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, added)
	assert.Equal(t, 10, s.Quantity("A"))
	assert.Equal(t, 10, storedLines(t, st, "cart:test")[0].Quantity)
}

func TestAddFeedback_ClosedStoreStaysIdle(t *testing.T) {
	s, sched := newTestStore(t, storage.NewMemoryStorage())
	s.Close()

	s.AddToCart(context.Background(), cloudSlime, 1)
	sched.Advance(AnimationDuration)

	state := s.Snapshot()
	assert.Equal(t, 1, state.ItemCount)
	assert.False(t, state.IsAnimating)
	assert.Nil(t, state.LastAddedProduct)
	assert.Equal(t, PhaseIdle, s.Phase())
}

func TestOpen_UnreadableStorage(t *testing.T) {
	st := &flakyStorage{MemoryStorage: storage.NewMemoryStorage(), failGets: 1}
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, "cart:test", `[{"product_id":"A","quantity":2}]`))

	s, err := Open(ctx, st, "cart:test", WithLogger(logger.Nop()))

	require.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, s)
	assert.Equal(t, 2, storedLines(t, st, "cart:test")[0].Quantity)
}
