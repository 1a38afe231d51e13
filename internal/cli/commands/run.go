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
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// runExecv opens a mount, launches path through execv, and reports
// its exit code. A host build has no ARM interpreter, so execv only
// succeeds for binaries whose entry offset has a function registered
// against this process's Driver.Registry() ahead of time; against an
// unregistered binary it reports EACCES, the errno the Driver maps a
// missing entry point to.
func runExecv(path string, argv []string) error {
	d, err := openMount()
	if err != nil {
		return err
	}
	defer d.Close()

	code, err := d.Execv(path, argv, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("exit %d\n", code)
	return nil
}

func newForegroundCmd(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <path> [argv...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecv(args[0], args)
		},
	}
}

var runCmd = newForegroundCmd("run", "Launch an executable file and wait (run)")
var execCmd = newForegroundCmd("exec", "Launch an executable file and wait (exec, safe_exec)")
var fgCmd = newForegroundCmd("fg", "Launch an executable file in the foreground (fgbin)")

// bgCmd re-execs xipfsctl as "fg" in a detached child process and
// returns immediately, since a single-shot CLI process has nothing to
// background into: the RIOT shell's fgbin/bgbin difference is whether
// the scheduler waits on the launched thread, and the closest host
// analogue is whether this process waits on a child of its own.
var bgCmd = &cobra.Command{
	Use:   "bg <path> [argv...]",
	Short: "Launch an executable file in the background (bgbin)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		self, err := os.Executable()
		if err != nil {
			return err
		}

		childArgs := append([]string{"fg"}, args...)
		if configPath != "" {
			childArgs = append([]string{"--config", configPath}, childArgs...)
		} else if imagePath != "" {
			childArgs = append([]string{"--image", imagePath}, childArgs...)
		}

		child := exec.Command(self, childArgs...)
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		if err := child.Start(); err != nil {
			return err
		}
		fmt.Printf("started pid %d\n", child.Process.Pid)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(fgCmd)
	rootCmd.AddCommand(bgCmd)
}
