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

	"github.com/spf13/cobra"
)

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Validate a mount config and open the image once",
	Long: `On the original firmware the mount point is a struct the linker
placed at boot time; on a host there is nothing to "mount" ahead of
a command, so this subcommand exists to validate a config and image
pair up front (page geometry, path_max/size_slots compatibility,
image openability) without performing any operation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openMount()
		if err != nil {
			return err
		}
		defer d.Close()
		st, err := d.Statvfs()
		if err != nil {
			return err
		}
		fmt.Printf("mount ok: %d pages of %d bytes, %d free\n", st.Blocks, st.PageSize, st.BlocksFree)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mountCmd)
}
