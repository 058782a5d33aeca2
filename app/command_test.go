// Copyright Huawei Cloud Computing Technologies Co., Ltd.
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

package app_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronogrid/chronogrid/app"
	"github.com/chronogrid/chronogrid/lib/config"
	"github.com/chronogrid/chronogrid/lib/logger"
)

type fakeServer struct {
	opened bool
	closed bool
}

func (s *fakeServer) Open() error       { s.opened = true; return nil }
func (s *fakeServer) Close() error      { s.closed = true; return nil }
func (s *fakeServer) Err() <-chan error { return nil }

type fakeConfig struct {
	common  config.Common
	invalid bool
}

func (c *fakeConfig) Validate() error {
	if c.invalid {
		return errors.New("invalid fake config")
	}
	return nil
}
func (c *fakeConfig) GetLogging() *config.Logger { return nil }
func (c *fakeConfig) GetCommon() *config.Common  { return &c.common }

func TestCommandRunOpensServerAndWritesPidfile(t *testing.T) {
	tmp := t.TempDir()
	pidPath := filepath.Join(tmp, "test.pid")

	srv := &fakeServer{}
	cmd := app.NewCommand()
	cmd.Info = app.ServerInfo{App: config.AppMeta}
	cmd.Config = &fakeConfig{common: config.Common{ClusterName: "c"}}
	cmd.NewServerFunc = func(config.Config, app.ServerInfo, *logger.Logger) (app.Server, error) {
		return srv, nil
	}

	require.NoError(t, cmd.Run("-pidfile", pidPath))
	assert.True(t, srv.opened)
	assert.FileExists(t, pidPath)

	require.NoError(t, cmd.Close())
	assert.True(t, srv.closed)
}

func TestCommandRunFailsOnBadConfigPath(t *testing.T) {
	cmd := app.NewCommand()
	cmd.Info = app.ServerInfo{App: config.AppMeta}
	cmd.Config = &fakeConfig{}
	cmd.NewServerFunc = func(config.Config, app.ServerInfo, *logger.Logger) (app.Server, error) {
		return &fakeServer{}, nil
	}

	err := cmd.Run("-config", "does-not-exist.conf")
	require.Error(t, err)
}

func TestCommandRunFailsOnInvalidConfig(t *testing.T) {
	cmd := app.NewCommand()
	cmd.Info = app.ServerInfo{App: config.AppMeta}
	cmd.Config = &fakeConfig{invalid: true}
	cmd.NewServerFunc = func(config.Config, app.ServerInfo, *logger.Logger) (app.Server, error) {
		return &fakeServer{}, nil
	}

	err := cmd.Run()
	require.Error(t, err)
}

func TestRunVersionPrintsWithoutOpeningServer(t *testing.T) {
	srv := &fakeServer{}
	cmd := app.NewCommand()
	cmd.Version = "v1.2.3"
	cmd.Info = app.ServerInfo{App: config.AppMeta}
	cmd.Config = &fakeConfig{common: config.Common{ClusterName: "c"}}
	cmd.NewServerFunc = func(config.Config, app.ServerInfo, *logger.Logger) (app.Server, error) {
		return srv, nil
	}

	app.Run([]string{"version"}, cmd)
	assert.False(t, srv.opened)
}
