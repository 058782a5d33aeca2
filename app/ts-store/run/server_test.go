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
	"github.com/chronogrid/chronogrid/compaction"
	"github.com/chronogrid/chronogrid/lib/config"
	"github.com/chronogrid/chronogrid/lib/errno"
	"github.com/chronogrid/chronogrid/lib/logger"
	"github.com/chronogrid/chronogrid/metacache"
)

func testInfo() app.ServerInfo {
	return app.ServerInfo{App: config.AppStore, Version: "test"}
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
	conf := config.NewClusterNode(config.AppStore)
	conf.Store.Dir = filepath.Join(tmp, "store")
	conf.Store.BindAddress = "127.0.0.1:29400"
	conf.Store.HTTPBindAddress = "127.0.0.1:29401"

	s, err := NewServer(conf, testInfo(), logger.NewLogger(errno.ModuleUnknown))
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestNewServerRejectsMissingStoreSection(t *testing.T) {
	conf := config.NewClusterNode(config.AppStore)
	conf.Store = nil

	_, err := NewServer(conf, testInfo(), logger.NewLogger(errno.ModuleUnknown))
	require.Error(t, err)
}

func TestSchedulePriorityConversion(t *testing.T) {
	assert.Equal(t, compaction.PriorityBalance, schedulePriority(config.PriorityBalance))
	assert.Equal(t, compaction.PriorityInnerCross, schedulePriority(config.PriorityInnerCross))
	assert.Equal(t, compaction.PriorityCrossInner, schedulePriority(config.PriorityCrossInner))
}

func TestHostOfAndPortOf(t *testing.T) {
	assert.Equal(t, "10.0.0.5", hostOf("10.0.0.5:8400"))
	port, err := portOf("10.0.0.5:8400")
	require.NoError(t, err)
	assert.Equal(t, 8400, port)
}

func TestLocalNodeIDIsStableForSameAddress(t *testing.T) {
	assert.Equal(t, localNodeID("127.0.0.1:8400"), localNodeID("127.0.0.1:8400"))
	assert.NotEqual(t, localNodeID("127.0.0.1:8400"), localNodeID("127.0.0.1:8401"))
}

func TestServerLocalSchemaAnswersFromOwnCache(t *testing.T) {
	cache, err := metacache.New(16)
	require.NoError(t, err)
	cache.Put("root.sg.d1.s1", metacache.Entry{Schema: map[string]string{"s1": "INT64"}})
	cache.Put("root.sg.d2.s1", metacache.Entry{Schema: map[string]string{"s1": "FLOAT"}})
	cache.Put("root.other.d1.s1", metacache.Entry{Schema: map[string]string{"s1": "TEXT"}})

	s := &Server{cache: cache}
	got := s.localSchema([]string{"root.sg."})

	assert.Len(t, got, 2)
	assert.Contains(t, got, "root.sg.d1.s1")
	assert.Contains(t, got, "root.sg.d2.s1")
	assert.NotContains(t, got, "root.other.d1.s1")
}

func TestServerStatusBeforeOpenDoesNotPanic(t *testing.T) {
	partitions := map[string]*partitionState{}
	sub := newLocalSubmitter(partitions, 1<<20, logger.NewLogger(errno.ModuleUnknown))
	sub.scheduler = compaction.NewScheduler(sub, compaction.PriorityBalance, 4)

	cache, err := metacache.New(16)
	require.NoError(t, err)

	s := &Server{submitter: sub, cache: cache}
	status := s.Status()
	assert.Equal(t, 0, status["currentTaskNum"])
	assert.Nil(t, s.Partitions())
}
