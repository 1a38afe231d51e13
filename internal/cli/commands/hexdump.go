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

var hexdumpCmd = &cobra.Command{
	Use:   "hexdump <path>",
	Short: "Hex-dump a file's contents (hexdump)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openMount()
		if err != nil {
			return err
		}
		defer d.Close()

		h, err := d.Open(args[0], 0)
		if err != nil {
			return err
		}
		defer d.CloseFile(h)

		buf := make([]byte, 16)
		offset := 0
		for {
			n, err := d.Read(h, buf)
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
			printHexLine(offset, buf[:n])
			offset += n
		}
	},
}

func printHexLine(offset int, chunk []byte) {
	fmt.Printf("%08x  ", offset)
	for i := 0; i < 16; i++ {
		if i < len(chunk) {
			fmt.Printf("%02x ", chunk[i])
		} else {
			fmt.Print("   ")
		}
		if i == 7 {
			fmt.Print(" ")
		}
	}
	fmt.Print(" |")
	for _, b := range chunk {
		if b >= 0x20 && b < 0x7f {
			fmt.Printf("%c", b)
		} else {
			fmt.Print(".")
		}
	}
	fmt.Println("|")
}

func init() {
	rootCmd.AddCommand(hexdumpCmd)
}
