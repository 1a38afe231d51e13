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
	"io"

	log "github.com/sirupsen/logrus"

	"xipfs/internal/common"
)

// Context is the RAM execution context prepared for a launched
// binary: its base address, the free-RAM and free-NVM windows it may
// use, a stack slab, argc/argv, and the dispatch table it invokes
// host services through.
type Context struct {
	Base         int
	RAMStart     int
	RAMEnd       int
	NVMStart     int
	NVMEnd       int
	Stack        []byte
	Argv         []string
	Registry     *Registry
	Stdout       io.Writer
	Stdin        io.Reader
}

// StackSize is the default stack slab size reserved for a launched
// binary, matching a typical small-MCU task stack.
const StackSize = 2048

// Launch parses the metadata header out of data (an executable
// file's full byte content, CRT0 stub included), builds a context,
// and hands control to the registered entry function. It returns the
// program's exit code, mirroring execv's return contract.
func Launch(data []byte, base, nvmStart, nvmEnd int, argv []string, reg *Registry, stdout io.Writer) (int, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return -1, err
	}
	entry, ok := reg.Entry(hdr.EntryOffset)
	if !ok {
		log.WithField("entryOffset", hdr.EntryOffset).Debug("execengine: no entry registered")
		return -1, common.ErrNotExec
	}
	ctx := &Context{
		Base:     base,
		RAMStart: 0,
		RAMEnd:   int(hdr.RAMSize),
		NVMStart: nvmStart,
		NVMEnd:   nvmEnd,
		Stack:    make([]byte, StackSize),
		Argv:     argv,
		Registry: reg,
		Stdout:   stdout,
	}
	return entry(ctx), nil
}
