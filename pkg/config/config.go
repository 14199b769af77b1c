// Copyright © 2024 Rak Laptudirm <rak@laptudirm.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads ponder's yaml configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"laptudirm.com/x/ponder/pkg/common"
	"laptudirm.com/x/ponder/pkg/uci"
)

type Config struct {
	Engine Engine `yaml:"engine"`

	// BlunderThreshold is the centipawn drop that flags a move as a
	// blunder in reports.
	BlunderThreshold int `yaml:"blunder-threshold"`
}

type Engine struct {
	Name string `yaml:"name,omitempty"`
	Cmd  string `yaml:"cmd"`
	Dir  string `yaml:"dir,omitempty"`
	Arg  string `yaml:"arg,omitempty"`

	Options map[string]string `yaml:"options,omitempty"`

	// MoveTime is the per-position analysis budget, in
	// time.ParseDuration format ("200ms").
	MoveTime string `yaml:"move-time"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: Engine{
			Cmd:      "stockfish",
			MoveTime: "200ms",
		},
		BlunderThreshold: 200,
	}
}

// Load reads a configuration file. An empty path means the user's file
// under the ponder directory, created from the embedded default on
// first use. Missing fields fall back to Default.
func Load(path string) (Config, error) {
	if path == "" {
		common.TryMkdir(common.Directory)
		common.TryCreate(common.ConfigFile, common.BaseConfigFile)
		path = common.ConfigFile
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(file, &config); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if config.Engine.Cmd == "" {
		config.Engine.Cmd = Default().Engine.Cmd
	}
	if config.BlunderThreshold <= 0 {
		config.BlunderThreshold = Default().BlunderThreshold
	}

	return config, nil
}

// MoveTimeDuration parses the configured per-position budget, falling
// back to 200ms when absent or malformed.
func (e Engine) MoveTimeDuration() time.Duration {
	d, err := time.ParseDuration(e.MoveTime)
	if err != nil || d <= 0 {
		return 200 * time.Millisecond
	}

	return d
}

// UCI converts the engine section into a client configuration.
func (c Config) UCI() uci.Config {
	return uci.Config{
		Name:     c.Engine.Name,
		Cmd:      c.Engine.Cmd,
		Dir:      c.Engine.Dir,
		Arg:      c.Engine.Arg,
		Options:  c.Engine.Options,
		MoveTime: c.Engine.MoveTimeDuration(),
	}
}
