// Copyright 2024 LatentFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package execengine

import (
	"fmt"
	"sync"

	"xipfs/internal/common"
)

// SyscallIndex identifies a slot in the syscall-dispatch table handed
// to an executable. The indices are fixed by the binary-layout
// contract: a cooperating binary invokes a slot by number, the same
// way the original dispatches through a function-pointer array.
type SyscallIndex uint32

const (
	SyscallPrintf SyscallIndex = iota
	SyscallExit
	SyscallRead
	SyscallWrite
)

// SyscallFunc is a host-provided service bound to a dispatch index.
type SyscallFunc func(ctx *Context, args ...any) (any, error)

// EntryFunc is the Go stand-in for a binary's machine-code entry
// point: the host build has no thumb interpreter, so an executable's
// behavior is expressed as a registered Go function instead.
type EntryFunc func(ctx *Context) int

// Registry is the index-addressed table of host services and
// registered entry points a mount's executables are launched against.
// It preserves the layout's "interface polymorphism" contract (a flat
// function-pointer array addressed by integer index) without an ARM
// interpreter.
type Registry struct {
	mu      sync.RWMutex
	syscall map[SyscallIndex]SyscallFunc
	entries map[uint32]EntryFunc
}

// NewRegistry creates a registry with the standard host syscalls
// (Printf to stdout, Exit as a no-op marker) pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		syscall: make(map[SyscallIndex]SyscallFunc),
		entries: make(map[uint32]EntryFunc),
	}
	r.Register(SyscallPrintf, func(ctx *Context, args ...any) (any, error) {
		for _, a := range args {
			fmt.Fprint(ctx.Stdout, a)
		}
		return nil, nil
	})
	r.Register(SyscallExit, func(ctx *Context, args ...any) (any, error) {
		return nil, nil
	})
	return r
}

// Register binds a syscall index to a host function.
func (r *Registry) Register(idx SyscallIndex, fn SyscallFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syscall[idx] = fn
}

// Invoke calls the host function bound to idx.
func (r *Registry) Invoke(ctx *Context, idx SyscallIndex, args ...any) (any, error) {
	r.mu.RLock()
	fn, ok := r.syscall[idx]
	r.mu.RUnlock()
	if !ok {
		return nil, common.ErrNotExec
	}
	return fn(ctx, args...)
}

// RegisterEntry binds an entry-point offset to the Go function
// modeling that binary's code. A real MCU target does not need this:
// it branches to the offset directly. The host build needs some way
// to say "this is what running this binary means", and the entry
// offset parsed from the header is the natural key.
func (r *Registry) RegisterEntry(offset uint32, fn EntryFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[offset] = fn
}

// Entry looks up the registered entry function for offset.
func (r *Registry) Entry(offset uint32) (EntryFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.entries[offset]
	return fn, ok
}
