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
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronogrid/chronogrid/app"
)

func TestWritePIDFileWritesCurrentPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.pid")
	require.NoError(t, app.WritePIDFile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(content))

	app.RemovePIDFile(path)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWritePIDFileNoopOnEmptyPath(t *testing.T) {
	require.NoError(t, app.WritePIDFile(""))
}

func TestParseFlagsReadsConfigAndPidfile(t *testing.T) {
	opts, err := app.ParseFlags(func() {}, "-config", "a.conf", "-pidfile", "a.pid")
	require.NoError(t, err)
	assert.Equal(t, "a.conf", opts.ConfigPath)
	assert.Equal(t, "a.pid", opts.PIDFile)
}

func TestFullVersionIncludesApp(t *testing.T) {
	app.Version = "v1.0.0"
	got := app.FullVersion("meta")
	assert.Contains(t, got, "meta")
	assert.Contains(t, got, "v1.0.0")
}

func TestServerInfoStatVersion(t *testing.T) {
	info := app.ServerInfo{Version: "v1", Branch: "main", Commit: "abc", BuildTime: "now"}
	assert.Equal(t, "v1-main:abc-now", info.StatVersion())
}
