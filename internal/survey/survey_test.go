package survey

import (
	"context"
	"testing"

	"github.com/mkarlsen/geocoin/internal/game"
)

func newTestScanner() *Scanner {
	return NewScanner(game.NewGenerator("survey_test_seed", 0.1, 100))
}

func TestScanCountsMatchHits(t *testing.T) {
	scanner := newTestScanner()

	result, err := scanner.Scan(context.Background(), Request{
		MinI: 0, MinJ: 0, MaxI: 29, MaxJ: 29,
		Limit: 10000,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if result.TotalCells != 900 {
		t.Errorf("total cells = %d, want 900", result.TotalCells)
	}
	if result.CacheCells != len(result.Hits) {
		t.Errorf("cache cells = %d but %d hits", result.CacheCells, len(result.Hits))
	}
	if result.CacheCells == 0 {
		t.Fatal("expected at least one cache in 900 cells")
	}

	coins := 0
	for _, hit := range result.Hits {
		coins += hit.Coins
	}
	if coins != result.TotalCoins {
		t.Errorf("total coins = %d but hits sum to %d", result.TotalCoins, coins)
	}
	if result.Truncated {
		t.Error("uncancelled scan reported truncation")
	}
}

func TestScanDeterminism(t *testing.T) {
	req := Request{MinI: -10, MinJ: -10, MaxI: 10, MaxJ: 10}

	first, err := newTestScanner().Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	second, err := newTestScanner().Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if first.CacheCells != second.CacheCells || first.TotalCoins != second.TotalCoins {
		t.Errorf("repeated scan diverged: %+v vs %+v", first, second)
	}
	for i := range first.Hits {
		if first.Hits[i] != second.Hits[i] {
			t.Errorf("hit %d diverged: %+v vs %+v", i, first.Hits[i], second.Hits[i])
		}
	}
}

func TestScanHitsSortedRichestFirst(t *testing.T) {
	result, err := newTestScanner().Scan(context.Background(), Request{
		MinI: 0, MinJ: 0, MaxI: 49, MaxJ: 49,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	for i := 1; i < len(result.Hits); i++ {
		if result.Hits[i].Coins > result.Hits[i-1].Coins {
			t.Fatalf("hits out of order at %d: %d coins after %d",
				i, result.Hits[i].Coins, result.Hits[i-1].Coins)
		}
	}
}

func TestScanHitLimit(t *testing.T) {
	result, err := newTestScanner().Scan(context.Background(), Request{
		MinI: 0, MinJ: 0, MaxI: 99, MaxJ: 99,
		Limit: 5,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(result.Hits) > 5 {
		t.Errorf("got %d hits, limit was 5", len(result.Hits))
	}
	// Counters still cover the whole region.
	if result.TotalCells != 10000 {
		t.Errorf("total cells = %d, want 10000", result.TotalCells)
	}
	if result.CacheCells <= 5 {
		t.Errorf("cache cells = %d, expected more than the hit limit", result.CacheCells)
	}
}

func TestScanRejectsBadRegions(t *testing.T) {
	scanner := newTestScanner()

	tests := []struct {
		name string
		req  Request
	}{
		{"inverted rows", Request{MinI: 5, MaxI: 0, MinJ: 0, MaxJ: 5}},
		{"inverted cols", Request{MinI: 0, MaxI: 5, MinJ: 5, MaxJ: 0}},
		{"oversized", Request{MinI: 0, MaxI: 999, MinJ: 0, MaxJ: 999}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := scanner.Scan(context.Background(), tt.req); err == nil {
				t.Error("Scan accepted a bad region")
			}
		})
	}
}

func TestScanCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestScanner().Scan(ctx, Request{
		MinI: 0, MinJ: 0, MaxI: 99, MaxJ: 99,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !result.Truncated {
		t.Error("cancelled scan not marked truncated")
	}
	if result.TotalCells == 10000 {
		t.Error("cancelled scan still covered the full region")
	}
}
