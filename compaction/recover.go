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
	"io"
	"os"

	"github.com/chronogrid/chronogrid/lib/fileops"
	"github.com/chronogrid/chronogrid/tsfile"
)

// TargetProbe reports whether a partially-written compaction target is
// resumable ("crashed" in the sense of an incomplete last write, per §4.7
// step 5). The offset the target is truncated to before the merge resumes
// comes from the log's last recorded device offset, not from the probe.
type TargetProbe interface {
	IsCrashed(path string) (bool, error)
}

// RecoverTask runs CompactionRecoverTask for a single compaction log found
// during storage-group startup. It resolves the log's named sources against
// list, resumes or discards the in-flight merge, and always clears merging
// flags and deletes the log - even when nothing else could be done, so a
// second run over the same state is a no-op.
type RecoverTask struct {
	List   *tsfile.ResourceList
	Merger DeviceMerger
	Probe  TargetProbe
}

func NewRecoverTask(list *tsfile.ResourceList, merger DeviceMerger, probe TargetProbe) *RecoverTask {
	return &RecoverTask{List: list, Merger: merger, Probe: probe}
}

// Recover executes the 7-step algorithm against the compaction log at
// logPath.
func (rt *RecoverTask) Recover(logPath string) error {
	rec, err := ParseLog(logPath)
	if err != nil {
		return err
	}

	// Step 7: clear the named sources' merging flags on every return path,
	// including the early returns of steps 2 and 3.
	defer func() {
		rt.List.Lock()
		for _, path := range rec.Sources {
			if r, ok := rt.List.Find(path); ok {
				r.SetMerging(false)
			}
		}
		rt.List.Unlock()
	}()

	// Step 2: target missing or no sources named -> the merge never
	// produced anything worth keeping.
	if rec.Target == "" || len(rec.Sources) == 0 {
		return fileops.Remove(logPath)
	}

	// Step 3: device set empty -> merge never really started.
	if len(rec.Devices) == 0 {
		if fileops.Exists(rec.Target) {
			if err := fileops.Remove(rec.Target); err != nil {
				return err
			}
		}
		return fileops.Remove(logPath)
	}

	// Step 4: resolve the named sources against the live list.
	rt.List.RLock()
	sources := make([]*tsfile.Resource, 0, len(rec.Sources))
	for _, path := range rec.Sources {
		if r, ok := rt.List.Find(path); ok {
			sources = append(sources, r)
		}
	}
	rt.List.RUnlock()

	task := &Task{
		List:       rt.List,
		Sources:    sources,
		TargetPath: rec.Target,
		LogPath:    logPath,
		IsSeq:      rec.IsSeq,
		Merger:     rt.Merger,
	}

	defer func() {
		rt.List.Lock()
		for _, s := range sources {
			s.SetMerging(false)
		}
		rt.List.Unlock()
	}()

	if !rec.MergeEnded {
		// Step 5: mergeEnd absent - resume if the target is salvageable,
		// otherwise there is nothing safe to commit; drop the attempt and
		// let a fresh compaction re-select these sources later.
		crashed := false
		if rt.Probe != nil && fileops.Exists(rec.Target) {
			crashed, err = rt.Probe.IsCrashed(rec.Target)
			if err != nil {
				return err
			}
		}
		if !crashed || len(sources) == 0 {
			_ = fileops.Remove(rec.Target)
			return fileops.Remove(logPath)
		}

		if err := rt.resume(task, rec); err != nil {
			return err
		}
		return nil // resume() commits and removes the log itself
	}

	// Step 6: mergeEnd recorded - just perform the commit.
	if len(sources) == 0 {
		return fileops.Remove(logPath)
	}
	return task.Commit()
}

// resume truncates the target to its last recorded device boundary and
// continues the merge from the device immediately after rec.Devices'
// last entry, reusing the same log file for continuity, then commits.
func (rt *RecoverTask) resume(task *Task, rec Record) error {
	f, err := fileops.OpenFile(rec.Target, os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if err := f.Truncate(rec.LastOffset); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Seek(rec.LastOffset, io.SeekStart); err != nil {
		f.Close()
		return err
	}

	done := make(map[string]bool, len(rec.Devices))
	for _, d := range rec.Devices {
		done[d] = true
	}

	log, err := ReopenLogForAppend(task.LogPath)
	if err != nil {
		f.Close()
		return err
	}

	for _, device := range unionDevices(task.Sources) {
		if done[device] {
			continue
		}
		offset, err := task.Merger.MergeDevice(device, task.Sources, f)
		if err != nil {
			f.Close()
			log.Close()
			return err
		}
		if err := log.DeviceFinished(device, offset); err != nil {
			f.Close()
			log.Close()
			return err
		}
	}

	if err := log.MergeEnd(); err != nil {
		f.Close()
		log.Close()
		return err
	}
	log.Close()
	if err := f.Close(); err != nil {
		return err
	}

	return task.Commit()
}
