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
	"os"

	"github.com/spf13/cobra"
)

func newNewFileCmd(use, short string, exec bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <path> <size> [source-file]",
		Short: short,
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := parseSize(args[1])
			if err != nil {
				return err
			}

			d, err := openMount()
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.NewFile(args[0], size, exec); err != nil {
				return err
			}
			if len(args) < 3 {
				return nil
			}

			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			h, err := d.Open(args[0], 0)
			if err != nil {
				return err
			}
			defer d.CloseFile(h)
			_, err = d.Write(h, data)
			return err
		},
	}
}

var mkbinCmd = newNewFileCmd("mkbin", "Reserve and optionally populate an executable file (mkbin)", true)
var touchCmd = newNewFileCmd("touch", "Reserve and optionally populate a data file", false)

func init() {
	rootCmd.AddCommand(mkbinCmd)
	rootCmd.AddCommand(touchCmd)
}
