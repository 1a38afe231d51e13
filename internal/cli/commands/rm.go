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

import "github.com/spf13/cobra"

func newUnlinkCmd(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <path>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openMount()
			if err != nil {
				return err
			}
			defer d.Close()
			return d.Unlink(args[0])
		},
	}
}

var rmCmd = newUnlinkCmd("rm", "Remove a data file (rm)")
var rmbinCmd = newUnlinkCmd("rmbin", "Remove an executable file (rmbin)")

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create an empty directory sentinel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openMount()
		if err != nil {
			return err
		}
		defer d.Close()
		return d.Mkdir(args[0])
	},
}

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <path>",
	Short: "Remove an empty directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openMount()
		if err != nil {
			return err
		}
		defer d.Close()
		return d.Rmdir(args[0])
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(rmbinCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmdirCmd)
}
