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
	"sync"
	"sync/atomic"
)

// Priority selects the order in which a storage group's inner-sequence,
// inner-unsequence and cross-space submissions are tried on each tick.
type Priority int

const (
	PriorityBalance Priority = iota
	PriorityInnerCross
	PriorityCrossInner
)

// Submitter starts one compaction task for (storageGroup, timePartition) if
// the selector finds anything to do, reporting whether a task was actually
// submitted. Implementations run the task asynchronously and call
// Scheduler.End when it finishes so the scheduler can decrement its
// admission counter.
type Submitter interface {
	SubmitInnerSequence(sg string, timePartition int64) (submitted bool)
	SubmitInnerUnsequence(sg string, timePartition int64) (submitted bool)
	SubmitCrossSpace(sg string, timePartition int64) (submitted bool)
}

// Scheduler is the per-node admission gate and dispatcher for compaction
// tasks across all storage groups. A single atomic counter enforces the
// concurrency cap; a per-(sg, timePartition) map tracks active tasks so
// IsPartitionCompacting can answer recovery and test queries without
// touching the resource lists themselves.
type Scheduler struct {
	sub       Submitter
	priority  Priority
	threshold int32

	currentTaskNum int32

	mu     sync.Mutex
	active map[string]int
}

func NewScheduler(sub Submitter, priority Priority, concurrentCompactionThreshold int) *Scheduler {
	return &Scheduler{
		sub:       sub,
		priority:  priority,
		threshold: int32(concurrentCompactionThreshold),
		active:    make(map[string]int),
	}
}

func partitionKey(sg string, timePartition int64) string {
	return sg + "/" + itoa(timePartition)
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// begin admits one task for (sg, timePartition), returning false if the
// concurrency cap is already reached.
func (s *Scheduler) begin(sg string, timePartition int64) bool {
	if atomic.LoadInt32(&s.currentTaskNum) >= s.threshold {
		return false
	}
	atomic.AddInt32(&s.currentTaskNum, 1)
	s.mu.Lock()
	s.active[partitionKey(sg, timePartition)]++
	s.mu.Unlock()
	return true
}

// End releases the admission slot taken by a submitted task; callers invoke
// it from the task's completion handler (success or error) exactly once per
// successful begin.
func (s *Scheduler) End(sg string, timePartition int64) {
	atomic.AddInt32(&s.currentTaskNum, -1)
	s.mu.Lock()
	key := partitionKey(sg, timePartition)
	if s.active[key] > 0 {
		s.active[key]--
		if s.active[key] == 0 {
			delete(s.active, key)
		}
	}
	s.mu.Unlock()
}

// IsPartitionCompacting reports whether (sg, timePartition) currently has an
// active compaction task.
func (s *Scheduler) IsPartitionCompacting(sg string, timePartition int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[partitionKey(sg, timePartition)] > 0
}

// CurrentTaskNum returns the live admission counter, mainly for tests.
func (s *Scheduler) CurrentTaskNum() int { return int(atomic.LoadInt32(&s.currentTaskNum)) }

// Schedule runs compactionSchedule for (sg, timePartition) once, dispatching
// per s.priority.
func (s *Scheduler) Schedule(sg string, timePartition int64) {
	if atomic.LoadInt32(&s.currentTaskNum) >= s.threshold {
		return
	}

	switch s.priority {
	case PriorityInnerCross:
		s.tryAdmit(sg, timePartition, s.sub.SubmitInnerSequence)
		s.tryAdmit(sg, timePartition, s.sub.SubmitInnerUnsequence)
		s.tryAdmit(sg, timePartition, s.sub.SubmitCrossSpace)
	case PriorityCrossInner:
		s.tryAdmit(sg, timePartition, s.sub.SubmitCrossSpace)
		s.tryAdmit(sg, timePartition, s.sub.SubmitInnerUnsequence)
		s.tryAdmit(sg, timePartition, s.sub.SubmitInnerSequence)
	default: // PriorityBalance
		s.scheduleBalance(sg, timePartition)
	}
}

// scheduleBalance round-robins across the three submission kinds until a
// full round submits nothing or the cap is reached.
//
// The teacher's balance loop guards its body with `taskSubmitted`, a flag
// that starts false and is never set before the guard is first checked -
// so the body never runs. Implemented here is the evidently-intended
// behavior: keep looping while the most recent full round submitted at
// least one task.
func (s *Scheduler) scheduleBalance(sg string, timePartition int64) {
	kinds := []func(string, int64) bool{
		s.sub.SubmitInnerSequence,
		s.sub.SubmitInnerUnsequence,
		s.sub.SubmitCrossSpace,
	}

	for {
		submittedThisRound := false
		for _, kind := range kinds {
			if atomic.LoadInt32(&s.currentTaskNum) >= s.threshold {
				return
			}
			if s.tryAdmit(sg, timePartition, kind) {
				submittedThisRound = true
			}
		}
		if !submittedThisRound {
			return
		}
	}
}

func (s *Scheduler) tryAdmit(sg string, timePartition int64, kind func(string, int64) bool) bool {
	if atomic.LoadInt32(&s.currentTaskNum) >= s.threshold {
		return false
	}
	if !s.begin(sg, timePartition) {
		return false
	}
	submitted := kind(sg, timePartition)
	if !submitted {
		s.End(sg, timePartition)
	}
	return submitted
}
