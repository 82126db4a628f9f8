package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkarlsen/geocoin/internal/board"
)

// memStore is an in-memory Store for controller tests.
type memStore struct {
	caches map[string]Cache
	player *Player
	resets int
}

func newMemStore() *memStore {
	return &memStore{caches: make(map[string]Cache)}
}

func (m *memStore) SaveCache(cache Cache) error {
	cache.Coins = append([]Coin(nil), cache.Coins...)
	m.caches[cache.Cell.Key()] = cache
	return nil
}

func (m *memStore) LoadCache(cell board.Cell) (*Cache, error) {
	cache, ok := m.caches[cell.Key()]
	if !ok {
		return nil, nil
	}
	cache.Coins = append([]Coin(nil), cache.Coins...)
	return &cache, nil
}

func (m *memStore) SavePlayer(player Player) error {
	player.Inventory = append([]Coin(nil), player.Inventory...)
	m.player = &player
	return nil
}

func (m *memStore) LoadPlayer() (*Player, error) {
	if m.player == nil {
		return nil, nil
	}
	player := *m.player
	player.Inventory = append([]Coin(nil), player.Inventory...)
	return &player, nil
}

func (m *memStore) Reset() error {
	m.caches = make(map[string]Cache)
	m.player = nil
	m.resets++
	return nil
}

func seededCache(i, j int64, coins int) Cache {
	cell := board.Cell{I: i, J: j}
	cache := Cache{Cell: cell, Coins: make([]Coin, coins)}
	for serial := range cache.Coins {
		cache.Coins[serial] = Coin{Cell: cell, Serial: serial}
	}
	return cache
}

func testConfig() Config {
	return Config{
		Seed:             testSeed,
		TileWidth:        DefaultTileWidth,
		VisibilityRadius: 1,
		SpawnProbability: 0.1,
		CoinScale:        100,
		Start:            board.Point{Lat: 0.00005, Lng: 0.00005}, // cell (0,0)
	}
}

func mustController(t *testing.T, cfg Config, store Store) *Controller {
	t.Helper()
	c, err := NewController(cfg, store, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func cacheCoins(t *testing.T, c *Controller, i, j int64) []Coin {
	t.Helper()
	for _, view := range c.Snapshot().Caches {
		if view.Cell.I == i && view.Cell.J == j {
			return view.Coins
		}
	}
	t.Fatalf("cache (%d,%d) not visible", i, j)
	return nil
}

// failingStore wraps memStore and fails cache writes on demand.
type failingStore struct {
	*memStore
	failSaves bool
}

func (f *failingStore) SaveCache(cache Cache) error {
	if f.failSaves {
		return errors.New("disk full")
	}
	return f.memStore.SaveCache(cache)
}

func TestFailedPersistRollsBackCoinMove(t *testing.T) {
	store := &failingStore{memStore: newMemStore()}
	if err := store.SaveCache(seededCache(0, 0, 3)); err != nil {
		t.Fatal(err)
	}
	c := mustController(t, testConfig(), store)

	store.failSaves = true
	changed, err := c.Withdraw(0, 0)
	if err == nil || changed {
		t.Fatalf("Withdraw with failing store = (%v, %v), want (false, error)", changed, err)
	}

	// The failed withdraw left both sides untouched.
	snap := c.Snapshot()
	if got := len(snap.Player.Inventory); got != 0 {
		t.Errorf("inventory size after failed withdraw = %d, want 0", got)
	}
	if got := len(cacheCoins(t, c, 0, 0)); got != 3 {
		t.Errorf("cache size after failed withdraw = %d, want 3", got)
	}

	// The store recovers: the same withdraw now succeeds and the coin is
	// the one a clean withdraw would have taken.
	store.failSaves = false
	if changed, err := c.Withdraw(0, 0); err != nil || !changed {
		t.Fatalf("Withdraw after recovery = (%v, %v), want (true, nil)", changed, err)
	}
	snap = c.Snapshot()
	if got := len(snap.Player.Inventory); got != 1 {
		t.Fatalf("inventory size after recovery = %d, want 1", got)
	}
	if got := snap.Player.Inventory[0].Serial; got != 2 {
		t.Errorf("withdrawn serial = %d, want 2", got)
	}

	// Deposit rolls back the same way.
	store.failSaves = true
	changed, err = c.Deposit(0, 0)
	if err == nil || changed {
		t.Fatalf("Deposit with failing store = (%v, %v), want (false, error)", changed, err)
	}
	snap = c.Snapshot()
	if got := len(snap.Player.Inventory); got != 1 {
		t.Errorf("inventory size after failed deposit = %d, want 1", got)
	}
	if got := len(cacheCoins(t, c, 0, 0)); got != 2 {
		t.Errorf("cache size after failed deposit = %d, want 2", got)
	}
}

func TestWithdrawDepositScenario(t *testing.T) {
	store := newMemStore()
	if err := store.SaveCache(seededCache(0, 0, 3)); err != nil {
		t.Fatal(err)
	}
	c := mustController(t, testConfig(), store)

	// Withdraw once: inventory gains 1, cache drops to 2.
	changed, err := c.Withdraw(0, 0)
	if err != nil || !changed {
		t.Fatalf("Withdraw = (%v, %v), want (true, nil)", changed, err)
	}
	if got := len(c.Snapshot().Player.Inventory); got != 1 {
		t.Errorf("inventory size = %d, want 1", got)
	}
	if got := len(cacheCoins(t, c, 0, 0)); got != 2 {
		t.Errorf("cache size = %d, want 2", got)
	}

	// Deposit once: back to 3 and 0.
	changed, err = c.Deposit(0, 0)
	if err != nil || !changed {
		t.Fatalf("Deposit = (%v, %v), want (true, nil)", changed, err)
	}
	if got := len(c.Snapshot().Player.Inventory); got != 0 {
		t.Errorf("inventory size = %d, want 0", got)
	}
	if got := len(cacheCoins(t, c, 0, 0)); got != 3 {
		t.Errorf("cache size = %d, want 3", got)
	}
}

func TestWithdrawEmptyCacheIsNoop(t *testing.T) {
	store := newMemStore()
	if err := store.SaveCache(seededCache(0, 1, 0)); err != nil {
		t.Fatal(err)
	}
	c := mustController(t, testConfig(), store)

	changed, err := c.Withdraw(0, 1)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if changed {
		t.Error("withdraw from empty cache reported a change")
	}
	if got := len(c.Snapshot().Player.Inventory); got != 0 {
		t.Errorf("inventory size = %d, want 0", got)
	}
}

func TestDepositEmptyInventoryIsNoop(t *testing.T) {
	store := newMemStore()
	if err := store.SaveCache(seededCache(0, 0, 2)); err != nil {
		t.Fatal(err)
	}
	c := mustController(t, testConfig(), store)

	changed, err := c.Deposit(0, 0)
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if changed {
		t.Error("deposit from empty inventory reported a change")
	}
	if got := len(cacheCoins(t, c, 0, 0)); got != 2 {
		t.Errorf("cache size = %d, want 2", got)
	}
}

func TestWithdrawOutsideVisibility(t *testing.T) {
	c := mustController(t, testConfig(), newMemStore())

	if _, err := c.Withdraw(100, 100); !errors.Is(err, ErrCacheNotVisible) {
		t.Errorf("Withdraw far away = %v, want ErrCacheNotVisible", err)
	}
}

func TestMoveUnknownDirection(t *testing.T) {
	c := mustController(t, testConfig(), newMemStore())

	if err := c.Move("sideways"); !errors.Is(err, ErrUnknownDirection) {
		t.Errorf("Move(sideways) = %v, want ErrUnknownDirection", err)
	}
}

func TestPersistedCacheBeatsRegeneration(t *testing.T) {
	store := newMemStore()
	if err := store.SaveCache(seededCache(0, 0, 2)); err != nil {
		t.Fatal(err)
	}
	c := mustController(t, testConfig(), store)

	// The generator might roll any count for (0,0); the persisted 2-coin
	// record must win.
	if got := len(cacheCoins(t, c, 0, 0)); got != 2 {
		t.Errorf("cache size = %d, want persisted 2", got)
	}
}

func TestMutatedCacheSurvivesEvictionAndReturn(t *testing.T) {
	store := newMemStore()
	if err := store.SaveCache(seededCache(0, 0, 3)); err != nil {
		t.Fatal(err)
	}
	c := mustController(t, testConfig(), store)

	if _, err := c.Withdraw(0, 0); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	// Radius 1: three steps north pushes row 0 out of visibility, three
	// steps south returns.
	for i := 0; i < 3; i++ {
		if err := c.Move(North); err != nil {
			t.Fatalf("Move north: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := c.Move(South); err != nil {
			t.Fatalf("Move south: %v", err)
		}
	}

	if got := len(cacheCoins(t, c, 0, 0)); got != 2 {
		t.Errorf("cache size after round trip = %d, want 2", got)
	}
}

func TestInventoryDepositOrder(t *testing.T) {
	tests := []struct {
		name       string
		fifo       bool
		wantSerial int
	}{
		// Withdrawals take from the cache end: serial 2 first, then 1,
		// so the inventory holds [2, 1].
		{"lifo hands back most recent", false, 1},
		{"fifo hands back oldest", true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			if err := store.SaveCache(seededCache(0, 0, 3)); err != nil {
				t.Fatal(err)
			}
			cfg := testConfig()
			cfg.InventoryFIFO = tt.fifo
			c := mustController(t, cfg, store)

			for i := 0; i < 2; i++ {
				if _, err := c.Withdraw(0, 0); err != nil {
					t.Fatalf("Withdraw: %v", err)
				}
			}
			if _, err := c.Deposit(0, 0); err != nil {
				t.Fatalf("Deposit: %v", err)
			}

			coins := cacheCoins(t, c, 0, 0)
			deposited := coins[len(coins)-1]
			if deposited.Serial != tt.wantSerial {
				t.Errorf("deposited serial = %d, want %d", deposited.Serial, tt.wantSerial)
			}
		})
	}
}

func TestResetClearsWorld(t *testing.T) {
	store := newMemStore()
	if err := store.SaveCache(seededCache(0, 0, 3)); err != nil {
		t.Fatal(err)
	}
	c := mustController(t, testConfig(), store)

	if _, err := c.Withdraw(0, 0); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if err := c.Move(North); err != nil {
		t.Fatalf("Move: %v", err)
	}

	if err := c.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Player.Inventory) != 0 {
		t.Errorf("inventory size after reset = %d, want 0", len(snap.Player.Inventory))
	}
	if snap.Player.Location != testConfig().Start {
		t.Errorf("player at %+v after reset, want start %+v", snap.Player.Location, testConfig().Start)
	}
	if store.resets != 1 {
		t.Errorf("store reset %d times, want 1", store.resets)
	}

	// Post-reset caches come from the generator again, so a second reset
	// reproduces the exact same world.
	first := c.Snapshot()
	if err := c.Reset(); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	second := c.Snapshot()
	if len(first.Caches) != len(second.Caches) {
		t.Fatalf("reset worlds differ: %d vs %d caches", len(first.Caches), len(second.Caches))
	}
	for i := range first.Caches {
		if first.Caches[i].Cell != second.Caches[i].Cell ||
			len(first.Caches[i].Coins) != len(second.Caches[i].Coins) {
			t.Errorf("reset world cache %d differs: %+v vs %+v",
				i, first.Caches[i].Cell, second.Caches[i].Cell)
		}
	}
}

func TestEventsAndSubscription(t *testing.T) {
	store := newMemStore()
	if err := store.SaveCache(seededCache(0, 0, 3)); err != nil {
		t.Fatal(err)
	}
	c := mustController(t, testConfig(), store)

	var seen []Event
	cancel := c.Subscribe(func(e Event) { seen = append(seen, e) })
	defer cancel()

	if _, err := c.Withdraw(0, 0); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	if len(seen) != 2 {
		t.Fatalf("subscriber saw %d events, want 2", len(seen))
	}
	if seen[0].Type != EventCacheUpdated || seen[1].Type != EventInventoryChanged {
		t.Errorf("event types = %s, %s", seen[0].Type, seen[1].Type)
	}
	if seen[0].Cell == nil || seen[0].Cell.I != 0 || seen[0].Cell.J != 0 {
		t.Errorf("cache event cell = %+v, want (0,0)", seen[0].Cell)
	}

	evts := c.EventsSince(0)
	if len(evts) != 2 {
		t.Fatalf("EventsSince(0) returned %d events, want 2", len(evts))
	}
	if rest := c.EventsSince(evts[len(evts)-1].Seq); len(rest) != 0 {
		t.Errorf("EventsSince(latest) returned %d events, want 0", len(rest))
	}

	cancel()
	if err := c.Move(East); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if len(seen) != 2 {
		t.Errorf("cancelled subscriber saw %d events, want 2", len(seen))
	}
}

func TestWaitEvents(t *testing.T) {
	c := mustController(t, testConfig(), newMemStore())

	done := make(chan []Event, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		evts, err := c.WaitEvents(ctx, 0)
		if err != nil {
			done <- nil
			return
		}
		done <- evts
	}()

	// Give the waiter a moment to block, then trigger an event.
	time.Sleep(20 * time.Millisecond)
	if err := c.Move(North); err != nil {
		t.Fatalf("Move: %v", err)
	}

	select {
	case evts := <-done:
		if len(evts) == 0 {
			t.Fatal("WaitEvents returned no events")
		}
		if evts[0].Type != EventMoved {
			t.Errorf("first event type = %s, want moved", evts[0].Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitEvents did not return")
	}

	// Already-buffered events return without blocking.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	evts, err := c.WaitEvents(ctx, 0)
	if err != nil || len(evts) == 0 {
		t.Fatalf("WaitEvents on buffered events = (%v, %v)", evts, err)
	}
}
