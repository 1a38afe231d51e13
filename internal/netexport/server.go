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

// Package netexport serves a mounted xipfs volume read-only over
// NFSv3, for inspecting the simulated flash image from a normal OS
// file manager during development — the host-side analogue of
// plugging a debugger into the MCU's shell. It talks to the Driver
// through the same billy.Filesystem surface internal/billyfs exposes
// to every other caller; it has no knowledge of pages, records, or
// consolidation.
package netexport

import (
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"

	"xipfs/internal/billyfs"
	"xipfs/internal/vfs"
)

// Server wraps a go-nfs server exporting a single mounted volume.
type Server struct {
	listener net.Listener
	server   *nfs.Server
	cancel   context.CancelFunc
}

// New creates an NFS server exposing d read-only under shareName.
func New(d *vfs.Driver, shareName string) *Server {
	if log.IsLevelEnabled(log.TraceLevel) {
		nfs.Log.SetLevel(nfs.TraceLevel)
	} else if log.IsLevelEnabled(log.DebugLevel) {
		nfs.Log.SetLevel(nfs.DebugLevel)
	}

	fs := &readOnlyFS{Adapter: billyfs.New(d)}
	handler := nfshelper.NewNullAuthHandler(fs)
	cacheHelper := nfshelper.NewCachingHandler(handler, 65536)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		server: &nfs.Server{Handler: cacheHelper, Context: ctx},
		cancel: cancel,
	}
}

// Serve starts accepting connections on addr. It blocks until the
// listener is closed by Shutdown.
func (s *Server) Serve(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("netexport: listen: %w", err)
	}
	s.listener = listener
	return s.server.Serve(listener)
}

// Shutdown stops accepting connections and cancels in-flight requests.
func (s *Server) Shutdown() {
	if s.listener != nil {
		s.listener.Close()
	}
	time.Sleep(100 * time.Millisecond)
	if s.cancel != nil {
		s.cancel()
	}
}
