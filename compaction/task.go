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

package compaction

import (
	"errors"
	"sort"

	"github.com/chronogrid/chronogrid/lib/fileops"
	"github.com/chronogrid/chronogrid/tsfile"
)

// ErrSourcesNotFound is returned when a commit's sources are no longer
// present in the resource list (they were already removed by a prior,
// partially-applied commit).
var ErrSourcesNotFound = errors.New("compaction: sources not found in resource list")

// DeviceMerger writes one device's merged chunk data - read from every
// source in time order and merge-sorted by timestamp - into target, and
// reports target's byte offset once the device is fully written so the
// compaction log can record a resumable boundary.
type DeviceMerger interface {
	MergeDevice(device string, sources []*tsfile.Resource, target fileops.File) (offset int64, err error)
}

// Task executes one selected inner-space file set into a single target
// file, per the resource-list-lock / redo-log / commit protocol.
type Task struct {
	List       *tsfile.ResourceList
	Sources    []*tsfile.Resource
	TargetPath string
	LogPath    string
	IsSeq      bool
	Merger     DeviceMerger
}

func NewTask(list *tsfile.ResourceList, sources []*tsfile.Resource, targetPath, logPath string, isSeq bool, merger DeviceMerger) *Task {
	return &Task{
		List:       list,
		Sources:    sources,
		TargetPath: targetPath,
		LogPath:    logPath,
		IsSeq:      isSeq,
		Merger:     merger,
	}
}

// unionDevices returns the sorted union of device names across sources.
func unionDevices(sources []*tsfile.Resource) []string {
	set := make(map[string]struct{})
	for _, s := range sources {
		for _, d := range s.Devices() {
			set[d] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Execute runs the full merge: steps 1-4 build the target file under a redo
// log, steps 5-7 (Commit) splice it into the resource list and clean up.
// Any error before mergeEnd is written rolls back (target discarded, merging
// flags cleared, sources left in the list); the caller is expected to retry
// via CompactionRecoverTask after a crash between mergeEnd and cleanup.
func (t *Task) Execute() error {
	t.List.Lock()
	for _, s := range t.Sources {
		s.SetMerging(true)
	}
	t.List.Unlock()

	rollback := func() {
		t.List.Lock()
		for _, s := range t.Sources {
			s.SetMerging(false)
		}
		t.List.Unlock()
		_ = fileops.Remove(t.TargetPath)
	}

	log, err := OpenLog(t.LogPath)
	if err != nil {
		rollback()
		return err
	}

	for _, s := range t.Sources {
		if err := log.Source(s.Path); err != nil {
			log.Close()
			rollback()
			return err
		}
	}
	if err := log.Target(t.TargetPath); err != nil {
		log.Close()
		rollback()
		return err
	}
	if err := log.Seq(t.IsSeq); err != nil {
		log.Close()
		rollback()
		return err
	}

	target, err := fileops.Create(t.TargetPath)
	if err != nil {
		log.Close()
		rollback()
		return err
	}

	for _, device := range unionDevices(t.Sources) {
		offset, err := t.Merger.MergeDevice(device, t.Sources, target)
		if err != nil {
			target.Close()
			log.Close()
			rollback()
			return err
		}
		if err := log.DeviceFinished(device, offset); err != nil {
			target.Close()
			log.Close()
			rollback()
			return err
		}
	}

	if err := log.MergeEnd(); err != nil {
		target.Close()
		log.Close()
		rollback()
		return err
	}
	if err := target.Close(); err != nil {
		log.Close()
		rollback()
		return err
	}
	log.Close()

	return t.Commit()
}

// Commit performs steps 5-7: splice the target resource into the list
// immediately before the first source and drop every source, delete the
// source files and their modifications files, and delete the compaction
// log. Safe to call again after a crash partway through - removing
// already-removed sources and files is a no-op.
func (t *Task) Commit() error {
	info, err := fileops.Stat(t.TargetPath)
	if err != nil {
		return err
	}
	target := tsfile.NewResource(t.TargetPath, info.Size())
	target.SetClosed(true)

	t.List.Lock()
	ok := t.List.InsertBeforeFirstSource(target, t.Sources)
	if !ok {
		// Every source already gone: a prior crash completed the splice but
		// not the disk cleanup below. Proceed to cleanup regardless.
		for _, s := range t.Sources {
			s.SetMerging(false)
		}
	}
	t.List.Unlock()

	for _, s := range t.Sources {
		s.SetMerging(false)
		_ = fileops.Remove(s.Path)
		if s.ModsPath != "" {
			_ = fileops.Remove(s.ModsPath)
		}
	}

	return fileops.Remove(t.LogPath)
}
