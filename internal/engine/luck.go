package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"math"
)

// ByteGenerator streams deterministic bytes for a (seed, key) pair using
// HMAC-SHA256. The same pair always produces the same byte stream, across
// processes and platforms; there is no time- or counter-based input anywhere.
type ByteGenerator struct {
	seed         string
	key          string
	currentRound uint64
	currentPos   int
	buffer       [32]byte
}

// NewByteGenerator creates a byte generator positioned at the given cursor
// within the stream for (seed, key).
func NewByteGenerator(seed, key string, cursor uint64) *ByteGenerator {
	bg := &ByteGenerator{
		seed:         seed,
		key:          key,
		currentRound: cursor / 32,
		currentPos:   int(cursor % 32),
	}
	bg.generateRound()
	return bg
}

// Next returns the next byte from the stream.
func (bg *ByteGenerator) Next() byte {
	if bg.currentPos >= 32 {
		bg.currentRound++
		bg.currentPos = 0
		bg.generateRound()
	}

	b := bg.buffer[bg.currentPos]
	bg.currentPos++
	return b
}

// NextFloat consumes exactly 4 bytes and returns a float in [0, 1).
func (bg *ByteGenerator) NextFloat() float64 {
	b0 := bg.Next()
	b1 := bg.Next()
	b2 := bg.Next()
	b3 := bg.Next()

	return bytesToFloat([4]byte{b0, b1, b2, b3})
}

func (bg *ByteGenerator) generateRound() {
	h := hmac.New(sha256.New, []byte(bg.seed))
	message := fmt.Sprintf("%s:%d", bg.key, bg.currentRound)
	h.Write([]byte(message))
	copy(bg.buffer[:], h.Sum(nil))
}

// bytesToFloat maps 4 bytes to [0, 1) as a base-256 fraction.
func bytesToFloat(bytes [4]byte) float64 {
	result := 0.0
	for i, b := range bytes {
		divider := math.Pow(256, float64(i+1))
		result += float64(b) / divider
	}
	return result
}

// Floats generates count floats for (seed, key) starting at cursor.
func Floats(seed, key string, cursor uint64, count int) []float64 {
	bg := NewByteGenerator(seed, key, cursor)
	floats := make([]float64, count)

	for i := 0; i < count; i++ {
		floats[i] = bg.NextFloat()
	}

	return floats
}

// Luck returns the first float of the stream for (seed, key). It is the
// single source of randomness for cell spawning and cache contents: cache
// existence and coin counts derived from it must match previously persisted
// state, so the value for a given pair can never change between releases.
func Luck(seed, key string) float64 {
	return NewByteGenerator(seed, key, 0).NextFloat()
}
