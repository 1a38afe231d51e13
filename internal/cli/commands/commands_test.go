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

package commands

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"xipfs/internal/execengine"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and
// returns everything written to it. Subcommands print straight to
// os.Stdout (mirroring the original shell commands' direct UART
// writes), so tests must swap the fd rather than use cobra's OutOrStdout.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestFormatTouchLsCatRoundtrip(t *testing.T) {
	img := filepath.Join(t.TempDir(), "flash.img")

	require.NoError(t, run(t, "--image", img, "format"))
	require.NoError(t, run(t, "--image", img, "mkdir", "/d"))

	srcFile := filepath.Join(t.TempDir(), "src.txt")
	require.NoError(t, os.WriteFile(srcFile, []byte("hello"), 0644))
	require.NoError(t, run(t, "--image", img, "touch", "/d/f", "5", srcFile))

	out := captureStdout(t, func() {
		require.NoError(t, run(t, "--image", img, "ls", "/d"))
	})
	require.Contains(t, out, "f")

	out = captureStdout(t, func() {
		require.NoError(t, run(t, "--image", img, "cat", "/d/f"))
	})
	require.Equal(t, "hello", out)
}

func TestRmThenLsEmpty(t *testing.T) {
	img := filepath.Join(t.TempDir(), "flash.img")
	require.NoError(t, run(t, "--image", img, "format"))
	require.NoError(t, run(t, "--image", img, "touch", "/a", "0"))
	require.NoError(t, run(t, "--image", img, "rm", "/a"))

	out := captureStdout(t, func() {
		require.NoError(t, run(t, "--image", img, "ls", "/"))
	})
	require.Empty(t, out)
}

func TestDfReportsPageCounts(t *testing.T) {
	img := filepath.Join(t.TempDir(), "flash.img")
	require.NoError(t, run(t, "--image", img, "format"))

	out := captureStdout(t, func() {
		require.NoError(t, run(t, "--image", img, "df"))
	})
	require.Contains(t, out, "pagesize")
}

func TestMvRenamesFile(t *testing.T) {
	img := filepath.Join(t.TempDir(), "flash.img")
	require.NoError(t, run(t, "--image", img, "format"))
	require.NoError(t, run(t, "--image", img, "touch", "/old", "0"))
	require.NoError(t, run(t, "--image", img, "mv", "/old", "/new"))

	out := captureStdout(t, func() {
		require.NoError(t, run(t, "--image", img, "ls", "/"))
	})
	require.Contains(t, out, "new")
}

func TestRunAgainstUnregisteredEntryFails(t *testing.T) {
	img := filepath.Join(t.TempDir(), "flash.img")
	require.NoError(t, run(t, "--image", img, "format"))
	srcFile := filepath.Join(t.TempDir(), "prog.bin")
	hdr := &execengine.Header{EntryOffset: 0}
	require.NoError(t, os.WriteFile(srcFile, hdr.Encode(), 0644))
	require.NoError(t, run(t, "--image", img, "mkbin", "/prog", "156", srcFile))

	err := run(t, "--image", img, "run", "/prog")
	require.Error(t, err)
}
