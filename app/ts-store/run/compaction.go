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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/chronogrid/chronogrid/app"
	"github.com/chronogrid/chronogrid/compaction"
	"github.com/chronogrid/chronogrid/lib/fileops"
	"github.com/chronogrid/chronogrid/lib/logger"
	"github.com/chronogrid/chronogrid/tsfile"
)

const (
	tsFileSuffix = ".tsfile"
	unseqDirName = "unseq"
)

// lineMerger is this node's compaction.DeviceMerger. The physical chunk
// layout a tsfile actually encodes is out of scope for this spec; lineMerger
// stands in for it by writing a "device:<name>" marker followed by each
// source's raw bytes, which is enough to exercise the selection/redo-log/
// commit protocol end to end without inventing a real columnar format.
type lineMerger struct{}

func (lineMerger) MergeDevice(device string, sources []*tsfile.Resource, target fileops.File) (int64, error) {
	if _, err := target.Write([]byte("device:" + device + "\n")); err != nil {
		return 0, err
	}
	for _, src := range sources {
		if _, ok := src.DeviceRange(device); !ok {
			continue
		}
		data, err := fileops.ReadFile(src.Path)
		if err != nil {
			return 0, err
		}
		if _, err := target.Write(data); err != nil {
			return 0, err
		}
	}
	info, err := target.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// partitionState is one (storage group, time partition)'s live sequence
// and unsequence resource lists, discovered once at startup from disk.
type partitionState struct {
	sg            string
	timePartition int64
	dir           string
	seq           *tsfile.ResourceList
	unseq         *tsfile.ResourceList
}

func partitionKey(sg string, timePartition int64) string {
	return sg + "/" + strconv.FormatInt(timePartition, 10)
}

// discoverPartitions walks root for a "<sg>/<timePartition>[/unseq]/*.tsfile"
// layout, building a ResourceList for each list it finds. A root that does
// not exist yet (a fresh node with no local data) is not an error.
func discoverPartitions(root string) (map[string]*partitionState, error) {
	out := make(map[string]*partitionState)

	sgEntries, err := fileops.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}

	for _, sgEntry := range sgEntries {
		if !sgEntry.IsDir() {
			continue
		}
		sg := sgEntry.Name()
		sgDir := filepath.Join(root, sg)

		tpEntries, err := fileops.ReadDir(sgDir)
		if err != nil {
			return nil, err
		}
		for _, tpEntry := range tpEntries {
			if !tpEntry.IsDir() {
				continue
			}
			timePartition, err := strconv.ParseInt(tpEntry.Name(), 10, 64)
			if err != nil {
				continue
			}
			tpDir := filepath.Join(sgDir, tpEntry.Name())

			seq, err := loadResourceList(tpDir)
			if err != nil {
				return nil, err
			}
			unseq, err := loadResourceList(filepath.Join(tpDir, unseqDirName))
			if err != nil {
				return nil, err
			}

			out[partitionKey(sg, timePartition)] = &partitionState{
				sg: sg, timePartition: timePartition, dir: tpDir, seq: seq, unseq: unseq,
			}
		}
	}
	return out, nil
}

func loadResourceList(dir string) (*tsfile.ResourceList, error) {
	list := tsfile.NewResourceList()
	paths, err := fileops.Glob(filepath.Join(dir, "*"+tsFileSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return list, nil
		}
		return nil, err
	}
	sort.Strings(paths)
	for _, p := range paths {
		info, err := fileops.Stat(p)
		if err != nil {
			continue
		}
		r := tsfile.NewResource(p, info.Size())
		r.SetClosed(true)
		list.PushBack(r)
	}
	return list, nil
}

// logPathFor names the redo log for (sg, seq-or-unseq) under dir, giving the
// sequence and unsequence spaces of the same storage group distinct log
// files since compaction.LogName only keys on sg.
func logPathFor(dir, sg string, seq bool) string {
	if seq {
		return filepath.Join(dir, compaction.LogName(sg))
	}
	return filepath.Join(dir, compaction.LogName(sg+"-unseq"))
}

// recoverPartitions runs CompactionRecoverTask against every redo log left
// behind by a crash, across every discovered partition.
func recoverPartitions(partitions map[string]*partitionState, log *logger.Logger) {
	for _, ps := range partitions {
		recoverOne(ps.seq, logPathFor(ps.dir, ps.sg, true), log)
		recoverOne(ps.unseq, logPathFor(ps.dir, ps.sg, false), log)
	}
}

func recoverOne(list *tsfile.ResourceList, logPath string, log *logger.Logger) {
	if !fileops.Exists(logPath) {
		return
	}
	rt := compaction.NewRecoverTask(list, lineMerger{}, nil)
	if err := rt.Recover(logPath); err != nil {
		log.Error("compaction recovery failed", zap.String("log", logPath), zap.Error(err))
	}
}

// localSubmitter implements compaction.Submitter against the partitions
// discovered on this node's local disk.
type localSubmitter struct {
	targetSize int64
	logger     *logger.Logger

	mu         sync.Mutex
	partitions map[string]*partitionState
	seqNum     int64

	scheduler *compaction.Scheduler
}

func newLocalSubmitter(partitions map[string]*partitionState, targetSize int64, log *logger.Logger) *localSubmitter {
	return &localSubmitter{partitions: partitions, targetSize: targetSize, logger: log}
}

func (sub *localSubmitter) SubmitInnerSequence(sg string, timePartition int64) bool {
	return sub.trySubmit(sg, timePartition, true)
}

func (sub *localSubmitter) SubmitInnerUnsequence(sg string, timePartition int64) bool {
	return sub.trySubmit(sg, timePartition, false)
}

// SubmitCrossSpace never finds a candidate: cross-space compaction merges a
// time partition's sequence set with its unsequence set, and nothing in
// this spec's scope produces unsequence data for such a merge to consume.
func (sub *localSubmitter) SubmitCrossSpace(sg string, timePartition int64) bool {
	return false
}

func (sub *localSubmitter) trySubmit(sg string, timePartition int64, seq bool) bool {
	sub.mu.Lock()
	ps, ok := sub.partitions[partitionKey(sg, timePartition)]
	sub.mu.Unlock()
	if !ok {
		return false
	}

	list := ps.seq
	if !seq {
		list = ps.unseq
	}

	list.RLock()
	snapshot := list.Snapshot()
	list.RUnlock()

	tasks := compaction.SelectInnerSpace(snapshot, sub.targetSize)
	if len(tasks) == 0 {
		return false
	}
	sources := tasks[0]

	sub.mu.Lock()
	sub.seqNum++
	n := sub.seqNum
	sub.mu.Unlock()

	subdir := ps.dir
	if !seq {
		subdir = filepath.Join(ps.dir, unseqDirName)
	}
	targetPath := filepath.Join(subdir, fmt.Sprintf("compact-%d%s", n, tsFileSuffix))
	logPath := logPathFor(ps.dir, sg, seq)

	task := compaction.NewTask(list, sources, targetPath, logPath, seq, lineMerger{})

	labels := []string{sg, strconv.FormatInt(timePartition, 10)}
	app.Metrics.CompactionPartitions.WithLabelValues(labels...).Set(1)

	go func() {
		defer sub.scheduler.End(sg, timePartition)
		defer app.Metrics.CompactionPartitions.WithLabelValues(labels...).Set(0)
		if err := task.Execute(); err != nil {
			sub.logger.Error("compaction task failed", zap.String("sg", sg), zap.Int64("timePartition", timePartition), zap.Error(err))
		}
		app.Metrics.CompactionCurrentTasks.Set(float64(sub.scheduler.CurrentTaskNum()))
	}()
	app.Metrics.CompactionCurrentTasks.Set(float64(sub.scheduler.CurrentTaskNum()))

	return true
}

// schedule runs one Schedule pass over every discovered partition.
func (sub *localSubmitter) schedule() {
	sub.mu.Lock()
	keys := make([]string, 0, len(sub.partitions))
	states := make(map[string]*partitionState, len(sub.partitions))
	for k, ps := range sub.partitions {
		keys = append(keys, k)
		states[k] = ps
	}
	sub.mu.Unlock()

	for _, k := range keys {
		ps := states[k]
		sub.scheduler.Schedule(ps.sg, ps.timePartition)
	}
}

// currentTaskNum exposes the scheduler's live admission count, wired into
// app.Metrics by the caller on every schedule tick.
func (sub *localSubmitter) currentTaskNum() int {
	return sub.scheduler.CurrentTaskNum()
}
