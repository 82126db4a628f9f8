package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/mkarlsen/geocoin/internal/board"
	"github.com/mkarlsen/geocoin/internal/game"
)

// playerKey is the fixed record key for player state. Cell keys are always
// "i,j", so it can never collide with a cache record.
const playerKey = "player"

// World is a persisted world identity. The seed is stored alongside the
// records derived from it so cache contents stay stable even if the
// configured seed changes between runs.
type World struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Seed      string    `json:"seed"`
	CreatedAt time.Time `json:"created_at"`
}

// SQLiteDB implements game.Store over a SQLite database. Operations apply to
// the world bound by LoadOrCreateWorld.
type SQLiteDB struct {
	db     *sql.DB
	logger *log.Logger
	world  World
}

var _ game.Store = (*SQLiteDB)(nil)

// NewSQLiteDB opens (or creates) the database at path.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// WAL mode for better concurrency between the API and bot runners.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	return &SQLiteDB{
		db:     db,
		logger: log.New(os.Stdout, "[store] ", log.LstdFlags),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate creates the schema. Safe to run on every startup.
func (s *SQLiteDB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS worlds (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL UNIQUE,
			seed TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			world_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (world_id, key),
			FOREIGN KEY (world_id) REFERENCES worlds(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_world ON records(world_id)`,
		`CREATE TABLE IF NOT EXISTS bot_runs (
			id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			script_name TEXT NOT NULL DEFAULT '',
			steps INTEGER NOT NULL DEFAULT 0,
			moves INTEGER NOT NULL DEFAULT 0,
			coins_collected INTEGER NOT NULL DEFAULT 0,
			coins_deposited INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (world_id) REFERENCES worlds(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bot_runs_world ON bot_runs(world_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("store: migration failed: %w", err)
		}
	}
	return nil
}

// LoadOrCreateWorld binds the store to the world with the given label,
// creating it with the given seed on first run. If the world already exists
// its stored seed wins over the argument: persisted caches were derived from
// it and must keep matching regeneration.
func (s *SQLiteDB) LoadOrCreateWorld(label, seed string) (World, error) {
	var w World
	err := s.db.QueryRow(
		`SELECT id, label, seed, created_at FROM worlds WHERE label = ?`, label,
	).Scan(&w.ID, &w.Label, &w.Seed, &w.CreatedAt)

	switch {
	case err == nil:
		if w.Seed != seed {
			s.logger.Printf("world %q keeps stored seed (configured seed differs and is ignored)", label)
		}
	case errors.Is(err, sql.ErrNoRows):
		w = World{ID: uuid.New().String(), Label: label, Seed: seed, CreatedAt: time.Now().UTC()}
		if _, err := s.db.Exec(
			`INSERT INTO worlds (id, label, seed, created_at) VALUES (?, ?, ?, ?)`,
			w.ID, w.Label, w.Seed, w.CreatedAt,
		); err != nil {
			return World{}, fmt.Errorf("store: create world %q: %w", label, err)
		}
	default:
		return World{}, fmt.Errorf("store: load world %q: %w", label, err)
	}

	s.world = w
	return w, nil
}

// World returns the bound world.
func (s *SQLiteDB) World() World {
	return s.world
}

// SaveCache upserts the cache record under its cell key.
func (s *SQLiteDB) SaveCache(cache game.Cache) error {
	if err := s.requireWorld(); err != nil {
		return err
	}
	value, err := EncodeCache(cache)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return s.putRecord(cache.Cell.Key(), value)
}

// LoadCache reads the cache record for a cell. A missing record and an
// undecodable record both return (nil, nil): the caller falls back to the
// generator, never to a fatal error.
func (s *SQLiteDB) LoadCache(cell board.Cell) (*game.Cache, error) {
	value, ok, err := s.getRecord(cell.Key())
	if err != nil || !ok {
		return nil, err
	}

	cache, err := DecodeCache(value)
	if err != nil {
		s.logger.Printf("discarding malformed cache record %s: %v", cell.Key(), err)
		return nil, nil
	}
	return &cache, nil
}

// SavePlayer upserts the player record.
func (s *SQLiteDB) SavePlayer(player game.Player) error {
	if err := s.requireWorld(); err != nil {
		return err
	}
	value, err := EncodePlayer(player)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return s.putRecord(playerKey, value)
}

// LoadPlayer reads the player record, with the same absent-on-malformed
// contract as LoadCache.
func (s *SQLiteDB) LoadPlayer() (*game.Player, error) {
	value, ok, err := s.getRecord(playerKey)
	if err != nil || !ok {
		return nil, err
	}

	player, err := DecodePlayer(value)
	if err != nil {
		s.logger.Printf("discarding malformed player record: %v", err)
		return nil, nil
	}
	return &player, nil
}

// Reset deletes every record of the bound world. The world row itself stays
// so the seed survives a reset.
func (s *SQLiteDB) Reset() error {
	if err := s.requireWorld(); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM records WHERE world_id = ?`, s.world.ID); err != nil {
		return fmt.Errorf("store: reset world %q: %w", s.world.Label, err)
	}
	return nil
}

func (s *SQLiteDB) requireWorld() error {
	if s.world.ID == "" {
		return errors.New("store: no world bound; call LoadOrCreateWorld first")
	}
	return nil
}

func (s *SQLiteDB) putRecord(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO records (world_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (world_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.world.ID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: put record %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteDB) getRecord(key string) (string, bool, error) {
	if err := s.requireWorld(); err != nil {
		return "", false, err
	}

	var value string
	err := s.db.QueryRow(
		`SELECT value FROM records WHERE world_id = ? AND key = ?`, s.world.ID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get record %q: %w", key, err)
	}
	return value, true, nil
}
