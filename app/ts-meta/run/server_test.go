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

package run

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronogrid/chronogrid/app"
	"github.com/chronogrid/chronogrid/lib/config"
	"github.com/chronogrid/chronogrid/lib/errno"
	"github.com/chronogrid/chronogrid/lib/logger"
)

func testInfo() app.ServerInfo {
	return app.ServerInfo{App: config.AppMeta, Version: "test"}
}

func TestNewServerRejectsWrongConfigType(t *testing.T) {
	_, err := NewServer(&fakeConfig{}, testInfo(), logger.NewLogger(errno.ModuleUnknown))
	require.Error(t, err)
}

type fakeConfig struct{}

func (fakeConfig) Validate() error            { return nil }
func (fakeConfig) GetLogging() *config.Logger { return nil }
func (fakeConfig) GetCommon() *config.Common  { return nil }

func TestNewServerBuildsFromClusterNode(t *testing.T) {
	tmp := t.TempDir()
	conf := config.NewClusterNode(config.AppMeta)
	conf.Common.ClusterName = "c"
	conf.Meta.Dir = filepath.Join(tmp, "meta")
	conf.Meta.BindAddress = "127.0.0.1:19088"
	conf.Meta.RPCBindAddress = "127.0.0.1:19092"
	conf.Meta.HTTPBindAddress = "127.0.0.1:19091"

	s, err := NewServer(conf, testInfo(), logger.NewLogger(errno.ModuleUnknown))
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestSingleNodeServerOpenBuildsClusterAndReports(t *testing.T) {
	tmp := t.TempDir()
	conf := config.NewClusterNode(config.AppMeta)
	conf.Common.ClusterName = "c"
	conf.Common.ReportEnable = true
	conf.Meta.Dir = filepath.Join(tmp, "meta")
	conf.Meta.BindAddress = "127.0.0.1:19188"
	conf.Meta.RPCBindAddress = "127.0.0.1:19192"
	conf.Meta.HTTPBindAddress = "127.0.0.1:19191"
	// A lone seed names itself as the sole join peer so bootFirst and
	// isSeed both resolve true and BuildCluster seeds the table alone.
	conf.Meta.JoinPeers = []string{conf.Meta.RPCBindAddress}

	srv, err := NewServer(conf, testInfo(), logger.NewLogger(errno.ModuleUnknown))
	require.NoError(t, err)

	require.NoError(t, srv.Open())
	defer srv.Close()

	s := srv.(*Server)
	assert.Equal(t, 1, s.store.NodeCount())
	assert.NotNil(t, s.Partitions())

	status := s.Status()
	assert.Equal(t, 1, status["nodeCount"])
}

func TestAppAddrSwapsPortForBindAddress(t *testing.T) {
	s := &Server{config: &config.ClusterNode{Meta: &config.Meta{BindAddress: "127.0.0.1:19088"}}}
	assert.Equal(t, "10.0.0.5:19088", s.appAddr("10.0.0.5:19092"))
}
