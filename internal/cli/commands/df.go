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

var dfCmd = &cobra.Command{
	Use:   "df",
	Short: "Show free and used page counts (df)",
	Args:  cobra.NoArgs,
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
		used := st.Blocks - st.BlocksFree
		fmt.Printf("%-10s %-10s %-10s %-6s\n", "pagesize", "pages", "used", "free")
		fmt.Printf("%-10d %-10d %-10d %-6d\n", st.PageSize, st.Blocks, used, st.BlocksFree)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dfCmd)
}
