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

// Package mountcfg loads the YAML document describing a mount: the
// backing image file and its flash geometry. On real hardware this
// information comes from the linker-provided mount point struct; on a
// host build it has to come from somewhere else, and a config file is
// the natural stand-in.
package mountcfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"xipfs/internal/flash"
	"xipfs/internal/fsdir"
)

// Config is the on-disk shape of a mount definition.
type Config struct {
	Image          string `yaml:"image"`
	PageSize       int    `yaml:"page_size"`
	PageCount      int    `yaml:"page_count"`
	PathMax        int    `yaml:"path_max"`
	SizeSlots      int    `yaml:"size_slots"`
	WriteBlockSize int    `yaml:"write_block_size"`
}

// defaultWriteBlockSize is used when a config omits write_block_size.
const defaultWriteBlockSize = 4

// ApplyDefaults fills PathMax, SizeSlots, and WriteBlockSize with the
// compiled-in record layout constants when a config leaves them at
// zero, since those fields describe a fixed on-NVM record layout
// rather than something a mount can actually vary at runtime.
func (c *Config) ApplyDefaults() {
	if c.PathMax == 0 {
		c.PathMax = fsdir.PathMax
	}
	if c.SizeSlots == 0 {
		c.SizeSlots = fsdir.SizeSlots
	}
	if c.WriteBlockSize == 0 {
		c.WriteBlockSize = defaultWriteBlockSize
	}
}

// Validate checks that a config describes a mount the compiled record
// layout can actually open.
func (c *Config) Validate() error {
	if c.Image == "" {
		return fmt.Errorf("mountcfg: image path is required")
	}
	if c.PageSize <= 0 || c.PageSize&(c.PageSize-1) != 0 {
		return fmt.Errorf("mountcfg: page_size must be a positive power of two, got %d", c.PageSize)
	}
	if c.PageCount <= 0 {
		return fmt.Errorf("mountcfg: page_count must be positive, got %d", c.PageCount)
	}
	if c.WriteBlockSize <= 0 || c.PageSize%c.WriteBlockSize != 0 {
		return fmt.Errorf("mountcfg: write_block_size must evenly divide page_size, got %d", c.WriteBlockSize)
	}
	if c.PathMax != fsdir.PathMax {
		return fmt.Errorf("mountcfg: path_max %d does not match the compiled record layout (%d)", c.PathMax, fsdir.PathMax)
	}
	if c.SizeSlots != fsdir.SizeSlots {
		return fmt.Errorf("mountcfg: size_slots %d does not match the compiled record layout (%d)", c.SizeSlots, fsdir.SizeSlots)
	}
	return nil
}

// Geometry converts a validated config into the flash.Geometry the
// Driver mounts against.
func (c *Config) Geometry() flash.Geometry {
	return flash.Geometry{
		PageSize:       c.PageSize,
		PageCount:      c.PageCount,
		WriteBlockSize: c.WriteBlockSize,
	}
}

// Load reads and validates a mount config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mountcfg: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("mountcfg: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with the original firmware's canonical
// geometry (4096-byte pages, 64 of them, 64-byte paths, 86 size
// history slots), image left for the caller to fill in.
func Default(image string) *Config {
	cfg := &Config{
		Image:     image,
		PageSize:  4096,
		PageCount: 64,
	}
	cfg.ApplyDefaults()
	return cfg
}
