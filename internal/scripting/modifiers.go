package scripting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrUnknownScript is returned when no chunk was compiled under a name.
var ErrUnknownScript = errors.New("unknown modifier script")

// Target is the creature a ball is thrown at.
type Target struct {
	Level     int
	Types     []string
	Weight    int
	BaseSpeed int
	Legendary bool
}

// Throw is everything a modifier script can observe.
type Throw struct {
	Target Target
	// Context is the encounter kind: "hunt", "fishing" or "safari".
	Context string
	// Turn counts completed battle turns; 0 or 1 on the first throw.
	Turn int
}

// Modifiers holds one sandboxed VM and the compiled ball scripts.
//
// A single LState is not goroutine-safe, so every evaluation holds mu.
type Modifiers struct {
	mu     sync.Mutex
	L      *lua.LState
	fns    map[string]*lua.LFunction
	limit  int
	logger *zap.Logger
}

// NewModifiers creates an empty evaluator.
//
// Precondition: logger must be non-nil; limit <= 0 selects DefaultInstructionLimit.
// Postcondition: Returns a Modifiers that must be Closed by the caller.
func NewModifiers(limit int, logger *zap.Logger) *Modifiers {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	return &Modifiers{
		L:      NewSandboxedState(),
		fns:    make(map[string]*lua.LFunction),
		limit:  limit,
		logger: logger,
	}
}

// Compile parses script and registers it under name, replacing any previous chunk.
//
// Postcondition: Returns a syntax error without registering anything on failure.
func (m *Modifiers) Compile(name, script string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn, err := m.L.LoadString(script)
	if err != nil {
		return fmt.Errorf("scripting: compiling %q: %w", name, err)
	}
	m.fns[name] = fn
	return nil
}

// Has reports whether a chunk is registered under name.
func (m *Modifiers) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.fns[name]
	return ok
}

// Evaluate runs the chunk registered under name against t.
//
// Precondition: name was passed to Compile.
// Postcondition: Returns a finite, non-negative modifier or an error.
func (m *Modifiers) Evaluate(ctx context.Context, name string, t Throw) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn, ok := m.fns[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownScript, name)
	}
	m.bind(t)

	release := limitInstructions(ctx, m.L, m.limit)
	err := m.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true})
	release()
	if err != nil {
		m.logger.Warn("modifier script failed", zap.String("script", name), zap.Error(err))
		return 0, fmt.Errorf("scripting: running %q: %w", name, err)
	}

	ret := m.L.Get(-1)
	m.L.Pop(1)
	num, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("scripting: %q returned %s, want number", name, ret.Type())
	}
	v := float64(num)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("scripting: %q returned invalid modifier %v", name, v)
	}
	m.logger.Debug("modifier evaluated", zap.String("script", name), zap.Float64("value", v))
	return v, nil
}

// bind publishes t as the target, context, turn and has_type globals.
func (m *Modifiers) bind(t Throw) {
	L := m.L
	target := L.NewTable()
	L.SetField(target, "level", lua.LNumber(t.Target.Level))
	L.SetField(target, "weight", lua.LNumber(t.Target.Weight))
	L.SetField(target, "base_speed", lua.LNumber(t.Target.BaseSpeed))
	L.SetField(target, "legendary", lua.LBool(t.Target.Legendary))
	types := L.NewTable()
	for _, ty := range t.Target.Types {
		types.Append(lua.LString(strings.ToLower(ty)))
	}
	L.SetField(target, "types", types)

	L.SetGlobal("target", target)
	L.SetGlobal("context", lua.LString(t.Context))
	L.SetGlobal("turn", lua.LNumber(t.Turn))
	L.SetGlobal("has_type", L.NewFunction(func(L *lua.LState) int {
		want := strings.ToLower(L.CheckString(1))
		for _, ty := range t.Target.Types {
			if strings.EqualFold(ty, want) {
				L.Push(lua.LTrue)
				return 1
			}
		}
		L.Push(lua.LFalse)
		return 1
	}))
}

// Close releases the VM.
func (m *Modifiers) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.L.Close()
}
