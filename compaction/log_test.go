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

package compaction_test

import (
	"path/filepath"
	"testing"

	"github.com/chronogrid/chronogrid/compaction"
	"github.com/stretchr/testify/require"
)

func TestLogWriteAndParseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "root.1.compaction.log")

	log, err := compaction.OpenLog(logPath)
	require.NoError(t, err)

	require.NoError(t, log.Source("/data/a.tsfile"))
	require.NoError(t, log.Source("/data/b.tsfile"))
	require.NoError(t, log.Target("/data/merged.tsfile"))
	require.NoError(t, log.Seq(true))
	require.NoError(t, log.DeviceFinished("root.sg.d1", 128))
	require.NoError(t, log.DeviceFinished("root.sg.d2", 256))
	require.NoError(t, log.MergeEnd())
	require.NoError(t, log.Close())

	rec, err := compaction.ParseLog(logPath)
	require.NoError(t, err)
	require.Equal(t, []string{"/data/a.tsfile", "/data/b.tsfile"}, rec.Sources)
	require.Equal(t, "/data/merged.tsfile", rec.Target)
	require.True(t, rec.IsSeq)
	require.Equal(t, []string{"root.sg.d1", "root.sg.d2"}, rec.Devices)
	require.Equal(t, int64(256), rec.LastOffset)
	require.True(t, rec.MergeEnded)
}

func TestLogWithoutMergeEndParsesPartialState(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "root.1.compaction.log")

	log, err := compaction.OpenLog(logPath)
	require.NoError(t, err)
	require.NoError(t, log.Source("/data/a.tsfile"))
	require.NoError(t, log.Target("/data/merged.tsfile"))
	require.NoError(t, log.Seq(false))
	require.NoError(t, log.DeviceFinished("root.sg.d1", 64))
	require.NoError(t, log.Close())

	rec, err := compaction.ParseLog(logPath)
	require.NoError(t, err)
	require.False(t, rec.MergeEnded)
	require.Equal(t, []string{"root.sg.d1"}, rec.Devices)
	require.Equal(t, int64(64), rec.LastOffset)
}
