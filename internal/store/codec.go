// Package store persists world state to SQLite as string-keyed records:
// one record per cache keyed "i,j", plus a fixed key for the player.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/mkarlsen/geocoin/internal/game"
)

// EncodeCache serializes a cache, position and full coin sequence included.
// EncodeCache and DecodeCache are a lossless pair.
func EncodeCache(cache game.Cache) (string, error) {
	b, err := json.Marshal(cache)
	if err != nil {
		return "", fmt.Errorf("encode cache %s: %w", cache.Cell.Key(), err)
	}
	return string(b), nil
}

// DecodeCache parses a serialized cache. Callers treat a decode error as
// "record absent" and fall back to generation; the error itself is only for
// logging.
func DecodeCache(value string) (game.Cache, error) {
	var cache game.Cache
	if err := json.Unmarshal([]byte(value), &cache); err != nil {
		return game.Cache{}, fmt.Errorf("decode cache: %w", err)
	}
	return cache, nil
}

// EncodePlayer serializes the player location and inventory.
func EncodePlayer(player game.Player) (string, error) {
	b, err := json.Marshal(player)
	if err != nil {
		return "", fmt.Errorf("encode player: %w", err)
	}
	return string(b), nil
}

// DecodePlayer parses a serialized player. Same absent-on-error contract as
// DecodeCache.
func DecodePlayer(value string) (game.Player, error) {
	var player game.Player
	if err := json.Unmarshal([]byte(value), &player); err != nil {
		return game.Player{}, fmt.Errorf("decode player: %w", err)
	}
	return player, nil
}
