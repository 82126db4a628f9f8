package scripting

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkarlsen/geocoin/internal/game"
)

// RunStats summarizes a bot run.
type RunStats struct {
	Steps          int `json:"steps"`
	Moves          int `json:"moves"`
	CoinsCollected int `json:"coins_collected"`
	CoinsDeposited int `json:"coins_deposited"`
}

// Runner drives a bot script: it executes the source once to register
// tick(), then calls tick() per step until the script stops itself, the step
// limit is reached, or the context ends.
type Runner struct {
	vm       *VM
	ctrl     *game.Controller
	maxSteps int
}

// NewRunner creates a runner for the controller with the given step limit.
func NewRunner(ctrl *game.Controller, maxSteps int) *Runner {
	if maxSteps <= 0 {
		maxSteps = 1000
	}
	return &Runner{
		vm:       NewVM(ctrl),
		ctrl:     ctrl,
		maxSteps: maxSteps,
	}
}

// Run executes the bot. The returned stats are derived from the controller's
// event feed, so they count what actually happened, not what the script
// attempted. A timed-out script goroutine may still be mid-call when Run
// returns, so stats live behind a mutex and the return value is a snapshot.
func (r *Runner) Run(ctx context.Context, source string) (RunStats, error) {
	var (
		statsMu sync.Mutex
		stats   RunStats
	)
	snapshot := func() RunStats {
		statsMu.Lock()
		defer statsMu.Unlock()
		return stats
	}

	lastInv := len(r.ctrl.Snapshot().Player.Inventory)
	cancel := r.ctrl.Subscribe(func(e game.Event) {
		statsMu.Lock()
		defer statsMu.Unlock()
		switch e.Type {
		case game.EventMoved:
			stats.Moves++
		case game.EventInventoryChanged:
			// Withdrawals grow the inventory, deposits shrink it.
			if e.Coins > lastInv {
				stats.CoinsCollected++
			} else if e.Coins < lastInv {
				stats.CoinsDeposited++
			}
			lastInv = e.Coins
		}
	})
	defer cancel()

	if err := r.vm.Execute(source); err != nil {
		return snapshot(), err
	}
	if !r.vm.HasTickFunc() {
		return snapshot(), fmt.Errorf("scripting: bot source must define tick()")
	}

	for steps := 0; steps < r.maxSteps; steps++ {
		if err := ctx.Err(); err != nil {
			return snapshot(), err
		}
		if r.vm.IsStopRequested() {
			break
		}

		if err := r.vm.CallTick(); err != nil {
			return snapshot(), err
		}
		statsMu.Lock()
		stats.Steps++
		statsMu.Unlock()
	}

	return snapshot(), nil
}

// Logs returns the script's log buffer.
func (r *Runner) Logs() []LogEntry {
	return r.vm.GetLogs()
}
