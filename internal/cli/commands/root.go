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

// Package commands implements the xipfsctl subcommands. Every
// subcommand opens a mount for the duration of the call and closes it
// before returning; there is no daemon and no state kept between
// invocations, matching the original shell commands, each of which
// ran against the one mount point the firmware already had open.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"xipfs/internal/mountcfg"
	"xipfs/internal/vfs"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	configPath string
	imagePath  string
)

var rootCmd = &cobra.Command{
	Use:   "xipfsctl",
	Short: "Administer an xipfs volume from a host",
	Long: `xipfsctl mounts a simulated NOR-flash image file and runs a single
operation against it, the host-side stand-in for the RIOT shell
commands an xipfs firmware build exposes on-device.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "mount config YAML (image, page_size, page_count, ...)")
	rootCmd.PersistentFlags().StringVar(&imagePath, "image", "", "image file path (mounted with the default geometry when no --config is given)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// SetVersion sets the version info for --version.
func SetVersion(v, c string) {
	version = v
	commit = c
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves a mount config from --config, or a default
// geometry over --image if no config file was given.
func loadConfig() (*mountcfg.Config, error) {
	if configPath != "" {
		return mountcfg.Load(configPath)
	}
	if imagePath == "" {
		return nil, fmt.Errorf("xipfsctl: either --config or --image is required")
	}
	return mountcfg.Default(imagePath), nil
}

// openMount loads the mount config and mounts the volume it describes.
func openMount() (*vfs.Driver, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return vfs.Mount(cfg.Image, cfg.Geometry())
}
