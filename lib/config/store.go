// Copyright 2025 Huawei Cloud Computing Technologies Co., Ltd.
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

package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/influxdata/influxdb/toml"
)

const (
	DefaultStoreDir             = "data"
	DefaultStoreBindAddress     = "127.0.0.1:8400"
	DefaultStoreHTTPBindAddress = "127.0.0.1:8401"

	DefaultScheduleInterval = toml.Duration(10 * time.Second)
	DefaultSchemaCacheSize  = 100000
)

// Store is the "[store]" config section: a ts-store node's local bind
// addresses, data directory, and compaction-scheduling cadence (spec.md
// §4.8).
type Store struct {
	Dir             string        `toml:"dir"`
	BindAddress     string        `toml:"bind-address"`
	HTTPBindAddress string        `toml:"http-bind-address"`

	ScheduleInterval toml.Duration `toml:"schedule-interval"`
	SchemaCacheSize  int           `toml:"schema-cache-size"`
}

func NewStore() *Store {
	return &Store{
		Dir:              DefaultStoreDir,
		BindAddress:      DefaultStoreBindAddress,
		HTTPBindAddress:  DefaultStoreHTTPBindAddress,
		ScheduleInterval: DefaultScheduleInterval,
		SchemaCacheSize:  DefaultSchemaCacheSize,
	}
}

func (c *Store) Validate() error {
	svItems := []stringValidatorItem{
		{"store dir", c.Dir},
		{"store bind-address", c.BindAddress},
		{"store http-bind-address", c.HTTPBindAddress},
	}
	if err := (stringValidator{}).Validate(svItems); err != nil {
		return err
	}
	if c.ScheduleInterval <= 0 {
		return fmt.Errorf("store schedule-interval must be greater than 0, got: %s", time.Duration(c.ScheduleInterval))
	}
	if c.SchemaCacheSize <= 0 {
		return fmt.Errorf("store schema-cache-size must be greater than 0, got: %d", c.SchemaCacheSize)
	}
	return nil
}

func (c *Store) Dirname() string {
	return filepath.Join(openGeminiDir(), c.Dir)
}
