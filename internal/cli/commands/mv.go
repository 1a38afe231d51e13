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

var mvCmd = &cobra.Command{
	Use:   "mv <from> <to>",
	Short: "Rename a file or directory (rename)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openMount()
		if err != nil {
			return err
		}
		defer d.Close()
		return d.Rename(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(mvCmd)
}
