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
	"os"
	"path/filepath"
	"testing"

	"github.com/chronogrid/chronogrid/compaction"
	"github.com/chronogrid/chronogrid/tsfile"
	"github.com/stretchr/testify/require"
)

type alwaysCrashed struct{}

func (alwaysCrashed) IsCrashed(path string) (bool, error) { return true, nil }

type neverCrashed struct{}

func (neverCrashed) IsCrashed(path string) (bool, error) { return false, nil }

func TestRecoverCommitsWhenMergeEndWasRecorded(t *testing.T) {
	dir := t.TempDir()
	list := tsfile.NewResourceList()

	a := makeSource(t, dir, "a.tsfile", "root.sg.d1")
	b := makeSource(t, dir, "b.tsfile", "root.sg.d2")
	list.Lock()
	list.PushBack(a)
	list.PushBack(b)
	a.SetMerging(true)
	b.SetMerging(true)
	list.Unlock()

	targetPath := filepath.Join(dir, "merged.tsfile")
	require.NoError(t, os.WriteFile(targetPath, []byte("root.sg.d1\nroot.sg.d2\n"), 0644))

	logPath := filepath.Join(dir, "sg.1.compaction.log")
	log, err := compaction.OpenLog(logPath)
	require.NoError(t, err)
	require.NoError(t, log.Source(a.Path))
	require.NoError(t, log.Source(b.Path))
	require.NoError(t, log.Target(targetPath))
	require.NoError(t, log.Seq(true))
	require.NoError(t, log.DeviceFinished("root.sg.d1", 11))
	require.NoError(t, log.DeviceFinished("root.sg.d2", 22))
	require.NoError(t, log.MergeEnd())
	require.NoError(t, log.Close())

	rt := compaction.NewRecoverTask(list, writingMerger{}, neverCrashed{})
	require.NoError(t, rt.Recover(logPath))

	list.RLock()
	snap := list.Snapshot()
	list.RUnlock()
	require.Len(t, snap, 1)
	require.Equal(t, targetPath, snap[0].Path)
	require.NoFileExists(t, a.Path)
	require.NoFileExists(t, b.Path)
	require.NoFileExists(t, logPath)
}

func TestRecoverDiscardsWhenDeviceSetEmpty(t *testing.T) {
	dir := t.TempDir()
	list := tsfile.NewResourceList()

	a := makeSource(t, dir, "a.tsfile", "root.sg.d1")
	list.Lock()
	list.PushBack(a)
	a.SetMerging(true)
	list.Unlock()

	targetPath := filepath.Join(dir, "merged.tsfile")
	require.NoError(t, os.WriteFile(targetPath, []byte(""), 0644))

	logPath := filepath.Join(dir, "sg.1.compaction.log")
	log, err := compaction.OpenLog(logPath)
	require.NoError(t, err)
	require.NoError(t, log.Source(a.Path))
	require.NoError(t, log.Target(targetPath))
	require.NoError(t, log.Seq(true))
	require.NoError(t, log.Close())

	rt := compaction.NewRecoverTask(list, writingMerger{}, neverCrashed{})
	require.NoError(t, rt.Recover(logPath))

	require.NoFileExists(t, targetPath)
	require.NoFileExists(t, logPath)

	list.RLock()
	snap := list.Snapshot()
	list.RUnlock()
	require.Len(t, snap, 1, "the untouched source stays in the list")
	require.False(t, a.Merging())
}

func TestRecoverResumesCrashedMergeAndCommits(t *testing.T) {
	dir := t.TempDir()
	list := tsfile.NewResourceList()

	a := makeSource(t, dir, "a.tsfile", "root.sg.d1")
	b := makeSource(t, dir, "b.tsfile", "root.sg.d2")
	list.Lock()
	list.PushBack(a)
	list.PushBack(b)
	a.SetMerging(true)
	b.SetMerging(true)
	list.Unlock()

	targetPath := filepath.Join(dir, "merged.tsfile")
	require.NoError(t, os.WriteFile(targetPath, []byte("root.sg.d1\n"), 0644))

	logPath := filepath.Join(dir, "sg.1.compaction.log")
	log, err := compaction.OpenLog(logPath)
	require.NoError(t, err)
	require.NoError(t, log.Source(a.Path))
	require.NoError(t, log.Source(b.Path))
	require.NoError(t, log.Target(targetPath))
	require.NoError(t, log.Seq(true))
	require.NoError(t, log.DeviceFinished("root.sg.d1", 11))
	require.NoError(t, log.Close())

	rt := compaction.NewRecoverTask(list, writingMerger{}, alwaysCrashed{})
	require.NoError(t, rt.Recover(logPath))

	list.RLock()
	snap := list.Snapshot()
	list.RUnlock()
	require.Len(t, snap, 1)
	require.Equal(t, targetPath, snap[0].Path)
	require.NoFileExists(t, a.Path)
	require.NoFileExists(t, b.Path)
	require.NoFileExists(t, logPath)

	content, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	require.Equal(t, "root.sg.d1\nroot.sg.d2\n", string(content))
}

func TestRecoverIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	list := tsfile.NewResourceList()

	a := makeSource(t, dir, "a.tsfile", "root.sg.d1")
	list.Lock()
	list.PushBack(a)
	list.Unlock()

	logPath := filepath.Join(dir, "sg.1.compaction.log")
	log, err := compaction.OpenLog(logPath)
	require.NoError(t, err)
	require.NoError(t, log.Close())

	rt := compaction.NewRecoverTask(list, writingMerger{}, neverCrashed{})
	require.NoError(t, rt.Recover(logPath))
	require.NoFileExists(t, logPath)

	log2, err := compaction.OpenLog(logPath)
	require.NoError(t, err)
	require.NoError(t, log2.Close())
	require.NoError(t, rt.Recover(logPath))
	require.NoFileExists(t, logPath)
}
