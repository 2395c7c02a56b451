// SPDX-License-Identifier: MIT
package sensor

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Script computes readings with a Lua function:
//
//	function read(t)       -- t: seconds since the device opened
//	  return position, intensity
//	end
//
// The Lua state is not safe for concurrent use; a Poller only ever calls
// Read from its own goroutine.
type Script struct {
	state *lua.LState
	read  lua.LValue
	start time.Time
}

// NewScript loads the Lua file at path and checks that it defines read.
func NewScript(path string) (*Script, error) {
	L := lua.NewState()
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load script '%s': %w", path, err)
	}
	return newScript(L)
}

// NewScriptString is NewScript for inline source.
func NewScriptString(src string) (*Script, error) {
	L := lua.NewState()
	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load script: %w", err)
	}
	return newScript(L)
}

func newScript(L *lua.LState) (*Script, error) {
	fn := L.GetGlobal("read")
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("script does not define a read(t) function")
	}
	return &Script{state: L, read: fn, start: time.Now()}, nil
}

func (s *Script) Read(ctx context.Context) (Reading, error) {
	return s.readAt(ctx, time.Since(s.start).Seconds())
}

func (s *Script) readAt(ctx context.Context, t float64) (Reading, error) {
	L := s.state
	L.SetContext(ctx)
	err := L.CallByParam(lua.P{Fn: s.read, NRet: 2, Protect: true}, lua.LNumber(t))
	if err != nil {
		return Reading{}, fmt.Errorf("script read failed: %w", err)
	}
	pos, intensity := L.Get(-2), L.Get(-1)
	L.Pop(2)

	p, ok := pos.(lua.LNumber)
	if !ok {
		return Reading{}, fmt.Errorf("script read returned %s for position, want number", pos.Type())
	}
	i, ok := intensity.(lua.LNumber)
	if !ok {
		return Reading{}, fmt.Errorf("script read returned %s for intensity, want number", intensity.Type())
	}
	return Reading{Position: float64(p), Intensity: float64(i)}.Clamp(), nil
}

func (s *Script) Close() error {
	s.state.Close()
	return nil
}
