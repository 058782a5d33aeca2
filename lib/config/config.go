/*
Copyright 2022 Huawei Cloud Computing Technologies Co., Ltd.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

 http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"errors"
	"net"
	"os"
	"path"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type Validator interface {
	Validate() error
}

type Config interface {
	Validate() error
	GetLogging() *Logger
	GetCommon() *Common
}

// App identifies which binary a config section belongs to, used to pick a
// default log file name and a gossip/metrics label.
type App string

const (
	AppMeta  App = "meta"
	AppStore App = "store"
)

// Parse decodes the toml file at p into conf. A blank path is a no-op so
// callers can run with built-in defaults.
func Parse(conf Config, p string) error {
	if p == "" {
		return nil
	}
	return fromTomlFile(conf, p)
}

func fromTomlFile(c Config, p string) error {
	content, err := os.ReadFile(path.Clean(p))
	if err != nil {
		return err
	}

	dec := unicode.BOMOverride(transform.Nop)
	content, _, err = transform.Bytes(dec, content)
	if err != nil {
		return err
	}
	_, err = toml.Decode(string(content), c)
	return err
}

// Common holds the fields every node role shares regardless of whether it
// runs the meta control plane, the store compaction engine, or both.
type Common struct {
	ClusterName string `toml:"cluster-name"`
	MetaJoin    []string `toml:"meta-join"`
	ReportEnable bool  `toml:"report-enable"`
}

func NewCommon() *Common {
	return &Common{
		MetaJoin:     DefaultMetaJoin,
		ReportEnable: true,
	}
}

func (c *Common) GetLogging() *Logger { return nil }

func (c Common) Validate() error {
	if c.ClusterName == "" {
		return errors.New("common cluster-name must be specified")
	}
	return nil
}

func CombineDomain(domain, addr string) string {
	if domain == "" {
		return addr
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return domain + ":" + port
}
