package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/mkarlsen/geocoin/internal/board"
)

// Direction is a one-tile player step.
type Direction string

const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"
)

var (
	// ErrCacheNotVisible is returned for withdraw/deposit against a cell
	// outside the current visibility radius or without a cache.
	ErrCacheNotVisible = errors.New("no cache at cell within visibility radius")

	// ErrUnknownDirection is returned for a Move with an unrecognized direction.
	ErrUnknownDirection = errors.New("unknown direction")
)

// Default grid tuning, matching the original world scale: one cell is
// 0.0001 degrees on a side and the neighborhood is 8 cells per axis.
const (
	DefaultTileWidth        = 0.0001
	DefaultVisibilityRadius = 8
)

// Config fixes the world constants at controller construction. None of them
// are runtime-mutable; changing Seed, TileWidth or the probabilities against
// an existing store produces a different world.
type Config struct {
	Seed             string
	TileWidth        float64
	VisibilityRadius int
	SpawnProbability float64
	CoinScale        int

	// InventoryFIFO flips deposit order: false (default) hands over the
	// most recently collected coin, true the oldest.
	InventoryFIFO bool

	// Start is the player location for a fresh or reset world.
	Start board.Point
}

// Controller owns all mutable game state: the cell registry, the visible
// caches, and the player. All operations are serialized on one mutex, which
// preserves the single event-thread model while letting the HTTP layer call
// in concurrently. Subscribers and pollers observe mutations through the
// event sequence.
type Controller struct {
	mu     sync.Mutex
	cfg    Config
	board  *board.Board
	gen    *Generator
	store  Store
	logger *log.Logger

	player  Player
	active  map[board.CellID]*Cache
	visible []board.CellID

	seq    uint64
	events []Event
	notify chan struct{}

	// pendingEvents accumulates events recorded during the current
	// operation so subscriber callbacks run after the mutex is released.
	pendingEvents []Event

	subs    map[int]func(Event)
	nextSub int
}

// CacheView is a visible cache plus its tile rectangle for rendering.
type CacheView struct {
	Cache
	Bounds board.Bounds `json:"bounds"`
}

// Snapshot is a consistent copy of the observable game state.
type Snapshot struct {
	Seq    uint64      `json:"seq"`
	Player Player      `json:"player"`
	Caches []CacheView `json:"caches"`
}

// NewController builds the game state: it loads the persisted player (or
// starts fresh at cfg.Start) and materializes the caches around them.
func NewController(cfg Config, store Store, logger *log.Logger) (*Controller, error) {
	if store == nil {
		return nil, errors.New("game: store is required")
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[game] ", log.LstdFlags)
	}
	if cfg.TileWidth <= 0 {
		cfg.TileWidth = DefaultTileWidth
	}
	if cfg.VisibilityRadius <= 0 {
		cfg.VisibilityRadius = DefaultVisibilityRadius
	}

	c := &Controller{
		cfg:    cfg,
		board:  board.New(cfg.TileWidth, cfg.VisibilityRadius),
		gen:    NewGenerator(cfg.Seed, cfg.SpawnProbability, cfg.CoinScale),
		store:  store,
		logger: logger,
		active: make(map[board.CellID]*Cache),
		notify: make(chan struct{}),
		subs:   make(map[int]func(Event)),
	}

	player, err := store.LoadPlayer()
	if err != nil {
		return nil, fmt.Errorf("game: load player: %w", err)
	}
	if player != nil {
		c.player = *player
	} else {
		c.player = Player{Location: cfg.Start}
	}

	c.mu.Lock()
	_, err = c.refreshVisibleLocked()
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("game: initial visibility: %w", err)
	}

	return c, nil
}

// Move steps the player one tile in the given direction.
func (c *Controller) Move(dir Direction) error {
	c.mu.Lock()
	p := c.player.Location
	switch dir {
	case North:
		p.Lat += c.board.TileWidth()
	case South:
		p.Lat -= c.board.TileWidth()
	case East:
		p.Lng += c.board.TileWidth()
	case West:
		p.Lng -= c.board.TileWidth()
	default:
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownDirection, dir)
	}

	evts, err := c.relocateLocked(p)
	subs := c.subscriberListLocked()
	c.mu.Unlock()
	dispatch(subs, evts)
	return err
}

// MoveTo places the player at an absolute coordinate. Geolocation updates
// arrive through this path as plain moves.
func (c *Controller) MoveTo(p board.Point) error {
	c.mu.Lock()
	evts, err := c.relocateLocked(p)
	subs := c.subscriberListLocked()
	c.mu.Unlock()
	dispatch(subs, evts)
	return err
}

// Withdraw moves one coin from the cache at (i, j) to the inventory. An
// empty cache is a no-op, not an error; changed reports whether anything
// moved. A failed store write leaves both cache and inventory untouched.
func (c *Controller) Withdraw(i, j int64) (changed bool, err error) {
	c.mu.Lock()
	defer func() {
		subs := c.subscriberListLocked()
		evts := c.pendingEvents
		c.pendingEvents = nil
		c.mu.Unlock()
		dispatch(subs, evts)
	}()

	cache, ok := c.cacheAtLocked(i, j)
	if !ok {
		return false, ErrCacheNotVisible
	}
	if len(cache.Coins) == 0 {
		return false, nil
	}

	coin := cache.Coins[len(cache.Coins)-1]
	cache.Coins = cache.Coins[:len(cache.Coins)-1]
	c.player.Inventory = append(c.player.Inventory, coin)

	if err := c.persistCacheAndPlayerLocked(cache); err != nil {
		// Undo the move so memory keeps matching disk.
		c.player.Inventory = c.player.Inventory[:len(c.player.Inventory)-1]
		cache.Coins = append(cache.Coins, coin)
		return false, err
	}

	cell := cache.Cell
	c.recordLocked(EventCacheUpdated, &cell, len(cache.Coins))
	c.recordLocked(EventInventoryChanged, nil, len(c.player.Inventory))
	return true, nil
}

// Deposit moves one coin from the inventory into the cache at (i, j). An
// empty inventory is a no-op. A failed store write leaves both cache and
// inventory untouched.
func (c *Controller) Deposit(i, j int64) (changed bool, err error) {
	c.mu.Lock()
	defer func() {
		subs := c.subscriberListLocked()
		evts := c.pendingEvents
		c.pendingEvents = nil
		c.mu.Unlock()
		dispatch(subs, evts)
	}()

	cache, ok := c.cacheAtLocked(i, j)
	if !ok {
		return false, ErrCacheNotVisible
	}
	if len(c.player.Inventory) == 0 {
		return false, nil
	}

	var coin Coin
	if c.cfg.InventoryFIFO {
		coin = c.player.Inventory[0]
		c.player.Inventory = c.player.Inventory[1:]
	} else {
		coin = c.player.Inventory[len(c.player.Inventory)-1]
		c.player.Inventory = c.player.Inventory[:len(c.player.Inventory)-1]
	}
	cache.Coins = append(cache.Coins, coin)

	if err := c.persistCacheAndPlayerLocked(cache); err != nil {
		// Undo the move so memory keeps matching disk.
		cache.Coins = cache.Coins[:len(cache.Coins)-1]
		if c.cfg.InventoryFIFO {
			c.player.Inventory = append([]Coin{coin}, c.player.Inventory...)
		} else {
			c.player.Inventory = append(c.player.Inventory, coin)
		}
		return false, err
	}

	cell := cache.Cell
	c.recordLocked(EventCacheUpdated, &cell, len(cache.Coins))
	c.recordLocked(EventInventoryChanged, nil, len(c.player.Inventory))
	return true, nil
}

// Reset wipes all persisted state and restarts the world: fresh player at
// the start location, caches re-rolled from the generator.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer func() {
		subs := c.subscriberListLocked()
		evts := c.pendingEvents
		c.pendingEvents = nil
		c.mu.Unlock()
		dispatch(subs, evts)
	}()

	if err := c.store.Reset(); err != nil {
		return fmt.Errorf("game: reset store: %w", err)
	}

	c.player = Player{Location: c.cfg.Start}
	c.active = make(map[board.CellID]*Cache)
	c.visible = nil

	if _, err := c.refreshVisibleLocked(); err != nil {
		return err
	}
	if err := c.store.SavePlayer(c.player); err != nil {
		return fmt.Errorf("game: save player: %w", err)
	}

	c.recordLocked(EventReset, nil, 0)
	return nil
}

// Snapshot returns a consistent copy of the player and visible caches, in
// row-major neighborhood order.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Seq: c.seq,
		Player: Player{
			Location:  c.player.Location,
			Inventory: append([]Coin(nil), c.player.Inventory...),
		},
		Caches: make([]CacheView, 0, len(c.active)),
	}
	for _, id := range c.visible {
		cache, ok := c.active[id]
		if !ok {
			continue
		}
		snap.Caches = append(snap.Caches, CacheView{
			Cache: Cache{
				Cell:  cache.Cell,
				Coins: append([]Coin(nil), cache.Coins...),
			},
			Bounds: c.board.CellBounds(id),
		})
	}
	return snap
}

// CellsNear returns the neighborhood geometry around a point, for renderers
// that draw the grid independently of cache state.
func (c *Controller) CellsNear(p board.Point) []CacheView {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.board.CellsNearPoint(p)
	views := make([]CacheView, 0, len(ids))
	for _, id := range ids {
		views = append(views, CacheView{
			Cache:  Cache{Cell: c.board.CellAt(id)},
			Bounds: c.board.CellBounds(id),
		})
	}
	return views
}

// EventsSince returns buffered events with sequence numbers greater than
// since. Events older than the replay window are gone; callers that detect a
// gap should re-sync with Snapshot.
func (c *Controller) EventsSince(since uint64) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eventsSinceLocked(since)
}

// WaitEvents blocks until at least one event newer than since exists or the
// context ends.
func (c *Controller) WaitEvents(ctx context.Context, since uint64) ([]Event, error) {
	for {
		c.mu.Lock()
		evts := c.eventsSinceLocked(since)
		ch := c.notify
		c.mu.Unlock()

		if len(evts) > 0 {
			return evts, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Subscribe registers an in-process observer called synchronously after each
// mutation. The returned function cancels the subscription.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close writes the active caches and player back to the store.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, cache := range c.active {
		if err := c.store.SaveCache(*cache); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("game: save cache %s: %w", cache.Cell.Key(), err)
		}
	}
	if err := c.store.SavePlayer(c.player); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("game: save player: %w", err)
	}
	return firstErr
}

// ---- internals (all require c.mu held) ----

func (c *Controller) relocateLocked(p board.Point) ([]Event, error) {
	c.player.Location = p

	if _, err := c.refreshVisibleLocked(); err != nil {
		return nil, err
	}
	if err := c.store.SavePlayer(c.player); err != nil {
		return nil, fmt.Errorf("game: save player: %w", err)
	}

	c.recordLocked(EventMoved, nil, len(c.player.Inventory))
	evts := c.pendingEvents
	c.pendingEvents = nil
	return evts, nil
}

// refreshVisibleLocked recomputes the visible neighborhood. Caches entering
// visibility are loaded from the store or, on a miss, rolled by the
// generator. Caches leaving visibility are persisted before eviction so a
// later re-entry restores mutated state instead of re-rolling.
func (c *Controller) refreshVisibleLocked() ([]board.CellID, error) {
	ids := c.board.CellsNearPoint(c.player.Location)

	next := make(map[board.CellID]*Cache, len(ids))
	for _, id := range ids {
		if cache, ok := c.active[id]; ok {
			next[id] = cache
			continue
		}

		cell := c.board.CellAt(id)
		loaded, err := c.store.LoadCache(cell)
		if err != nil {
			return nil, fmt.Errorf("game: load cache %s: %w", cell.Key(), err)
		}
		if loaded != nil {
			next[id] = loaded
			continue
		}
		if c.gen.ShouldSpawn(cell) {
			cache := c.gen.Generate(cell)
			next[id] = &cache
		}
	}

	for id, cache := range c.active {
		if _, stays := next[id]; stays {
			continue
		}
		if err := c.store.SaveCache(*cache); err != nil {
			return nil, fmt.Errorf("game: persist cache %s: %w", cache.Cell.Key(), err)
		}
	}

	c.active = next
	c.visible = ids
	return ids, nil
}

func (c *Controller) cacheAtLocked(i, j int64) (*Cache, bool) {
	id := c.board.Canonicalize(i, j)
	cache, ok := c.active[id]
	return cache, ok
}

func (c *Controller) persistCacheAndPlayerLocked(cache *Cache) error {
	if err := c.store.SaveCache(*cache); err != nil {
		return fmt.Errorf("game: save cache %s: %w", cache.Cell.Key(), err)
	}
	if err := c.store.SavePlayer(c.player); err != nil {
		return fmt.Errorf("game: save player: %w", err)
	}
	return nil
}

func (c *Controller) recordLocked(typ EventType, cell *board.Cell, coins int) {
	c.seq++
	e := Event{Seq: c.seq, Type: typ, Cell: cell, Coins: coins}
	c.events = append(c.events, e)
	if len(c.events) > eventRingCap {
		c.events = c.events[len(c.events)-eventRingCap:]
	}
	c.pendingEvents = append(c.pendingEvents, e)

	close(c.notify)
	c.notify = make(chan struct{})
}

func (c *Controller) eventsSinceLocked(since uint64) []Event {
	if len(c.events) == 0 || c.events[len(c.events)-1].Seq <= since {
		return nil
	}
	start := 0
	for start < len(c.events) && c.events[start].Seq <= since {
		start++
	}
	out := make([]Event, len(c.events)-start)
	copy(out, c.events[start:])
	return out
}

func (c *Controller) subscriberListLocked() []func(Event) {
	if len(c.subs) == 0 {
		return nil
	}
	out := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}

func dispatch(subs []func(Event), evts []Event) {
	for _, e := range evts {
		for _, fn := range subs {
			fn(e)
		}
	}
}
