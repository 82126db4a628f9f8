// Package scripting runs sandboxed JavaScript explorer bots against the game
// controller. Bots drive the same operations the map UI would: move,
// withdraw, deposit, read state.
package scripting

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/mkarlsen/geocoin/internal/board"
	"github.com/mkarlsen/geocoin/internal/game"
)

// LogEntry represents a single log message from the script.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// VM wraps a goja runtime with sandbox restrictions and game bindings.
type VM struct {
	runtime *goja.Runtime
	ctrl    *game.Controller
	mu      sync.Mutex

	logs    []LogEntry
	logsMu  sync.Mutex
	maxLogs int

	// stopRequested is set when the script calls stop().
	stopRequested bool
}

const (
	scriptInitTimeout = 2 * time.Second
	scriptCallTimeout = 1 * time.Second
)

// NewVM creates a sandboxed goja runtime bound to the controller.
func NewVM(ctrl *game.Controller) *VM {
	vm := &VM{
		runtime: goja.New(),
		ctrl:    ctrl,
		maxLogs: 500,
	}
	vm.injectGlobalFunctions()
	vm.injectGameFunctions()
	return vm
}

// injectGlobalFunctions registers log, stop, and console.log.
func (vm *VM) injectGlobalFunctions() {
	vm.runtime.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		vm.logsMu.Lock()
		if len(vm.logs) >= vm.maxLogs {
			vm.logs = vm.logs[1:]
		}
		vm.logs = append(vm.logs, LogEntry{Time: time.Now(), Message: msg})
		vm.logsMu.Unlock()

		return goja.Undefined()
	})

	console := vm.runtime.NewObject()
	console.Set("log", vm.runtime.Get("log"))
	vm.runtime.Set("console", console)

	vm.runtime.Set("stop", func(call goja.FunctionCall) goja.Value {
		vm.mu.Lock()
		vm.stopRequested = true
		vm.mu.Unlock()
		return goja.Undefined()
	})

	// Block dangerous globals.
	vm.runtime.Set("require", goja.Undefined())
	vm.runtime.Set("fetch", goja.Undefined())
	vm.runtime.Set("XMLHttpRequest", goja.Undefined())
	vm.runtime.Set("eval", goja.Undefined())
	vm.runtime.Set("Function", goja.Undefined())
}

// injectGameFunctions registers the controller bindings: move, moveto,
// withdraw, deposit, and state.
func (vm *VM) injectGameFunctions() {
	// move("north"|"south"|"east"|"west") -> bool
	vm.runtime.Set("move", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return vm.runtime.ToValue(false)
		}
		err := vm.ctrl.Move(game.Direction(call.Arguments[0].String()))
		return vm.runtime.ToValue(err == nil)
	})

	// moveto(lat, lng) -> bool
	vm.runtime.Set("moveto", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return vm.runtime.ToValue(false)
		}
		err := vm.ctrl.MoveTo(board.Point{
			Lat: call.Arguments[0].ToFloat(),
			Lng: call.Arguments[1].ToFloat(),
		})
		return vm.runtime.ToValue(err == nil)
	})

	// withdraw(i, j) -> bool; false for empty or non-visible caches
	vm.runtime.Set("withdraw", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return vm.runtime.ToValue(false)
		}
		changed, err := vm.ctrl.Withdraw(call.Arguments[0].ToInteger(), call.Arguments[1].ToInteger())
		return vm.runtime.ToValue(err == nil && changed)
	})

	// deposit(i, j) -> bool
	vm.runtime.Set("deposit", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return vm.runtime.ToValue(false)
		}
		changed, err := vm.ctrl.Deposit(call.Arguments[0].ToInteger(), call.Arguments[1].ToInteger())
		return vm.runtime.ToValue(err == nil && changed)
	})

	// state() -> { lat, lng, inventory, caches: [{i, j, coins}] }
	vm.runtime.Set("state", func(call goja.FunctionCall) goja.Value {
		snap := vm.ctrl.Snapshot()

		caches := make([]map[string]interface{}, 0, len(snap.Caches))
		for _, view := range snap.Caches {
			caches = append(caches, map[string]interface{}{
				"i":     view.Cell.I,
				"j":     view.Cell.J,
				"coins": len(view.Coins),
			})
		}

		return vm.runtime.ToValue(map[string]interface{}{
			"lat":       snap.Player.Location.Lat,
			"lng":       snap.Player.Location.Lng,
			"inventory": len(snap.Player.Inventory),
			"caches":    caches,
		})
	})
}

// Execute runs user script source code. This should be called once at the
// start of a run to register tick().
func (vm *VM) Execute(source string) error {
	return vm.runWithTimeout(scriptInitTimeout, func() error {
		_, err := vm.runtime.RunString(source)
		if err != nil {
			return fmt.Errorf("script execution error: %w", err)
		}
		return nil
	})
}

// CallTick calls the user-defined tick() function.
func (vm *VM) CallTick() error {
	return vm.runWithTimeout(scriptCallTimeout, func() error {
		fn := vm.runtime.Get("tick")
		if fn == nil || goja.IsUndefined(fn) || goja.IsNull(fn) {
			return fmt.Errorf("tick() function is not defined")
		}

		callable, ok := goja.AssertFunction(fn)
		if !ok {
			return fmt.Errorf("tick is not a function")
		}

		if _, err := callable(goja.Undefined()); err != nil {
			return fmt.Errorf("tick() error: %w", err)
		}
		return nil
	})
}

// HasTickFunc returns true if the user script defined a tick() function.
func (vm *VM) HasTickFunc() bool {
	fn := vm.runtime.Get("tick")
	if fn == nil || goja.IsUndefined(fn) || goja.IsNull(fn) {
		return false
	}
	_, ok := goja.AssertFunction(fn)
	return ok
}

// IsStopRequested returns true if stop() was called from the script.
func (vm *VM) IsStopRequested() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.stopRequested
}

// GetLogs returns a copy of the current log buffer.
func (vm *VM) GetLogs() []LogEntry {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()
	out := make([]LogEntry, len(vm.logs))
	copy(out, vm.logs)
	return out
}

func (vm *VM) runWithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		// Interrupt a runaway script execution.
		vm.runtime.Interrupt("script execution timeout")
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("script timed out: %w", err)
			}
			return fmt.Errorf("script timed out")
		case <-time.After(200 * time.Millisecond):
			return fmt.Errorf("script timed out")
		}
	}
}
