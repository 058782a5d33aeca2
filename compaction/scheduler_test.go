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
	"testing"

	"github.com/chronogrid/chronogrid/compaction"
	"github.com/stretchr/testify/require"
)

// scriptedSubmitter submits a fixed number of times per kind, then refuses.
type scriptedSubmitter struct {
	seqBudget, unseqBudget, crossBudget int
	seqCalls, unseqCalls, crossCalls    int
}

func (s *scriptedSubmitter) SubmitInnerSequence(sg string, tp int64) bool {
	s.seqCalls++
	if s.seqBudget <= 0 {
		return false
	}
	s.seqBudget--
	return true
}

func (s *scriptedSubmitter) SubmitInnerUnsequence(sg string, tp int64) bool {
	s.unseqCalls++
	if s.unseqBudget <= 0 {
		return false
	}
	s.unseqBudget--
	return true
}

func (s *scriptedSubmitter) SubmitCrossSpace(sg string, tp int64) bool {
	s.crossCalls++
	if s.crossBudget <= 0 {
		return false
	}
	s.crossBudget--
	return true
}

func TestSchedulerInnerCrossOrderTriesEachOnce(t *testing.T) {
	sub := &scriptedSubmitter{seqBudget: 1, unseqBudget: 1, crossBudget: 1}
	sched := compaction.NewScheduler(sub, compaction.PriorityInnerCross, 10)
	sched.Schedule("root.sg", 1)

	require.Equal(t, 1, sub.seqCalls)
	require.Equal(t, 1, sub.unseqCalls)
	require.Equal(t, 1, sub.crossCalls)
}

func TestSchedulerCrossInnerOrderIsReversed(t *testing.T) {
	order := []string{}
	sub := &orderTrackingSubmitter{order: &order}
	sched := compaction.NewScheduler(sub, compaction.PriorityCrossInner, 10)
	sched.Schedule("root.sg", 1)

	require.Equal(t, []string{"cross", "unseq", "seq"}, order)
}

type orderTrackingSubmitter struct{ order *[]string }

func (s *orderTrackingSubmitter) SubmitInnerSequence(sg string, tp int64) bool {
	*s.order = append(*s.order, "seq")
	return false
}
func (s *orderTrackingSubmitter) SubmitInnerUnsequence(sg string, tp int64) bool {
	*s.order = append(*s.order, "unseq")
	return false
}
func (s *orderTrackingSubmitter) SubmitCrossSpace(sg string, tp int64) bool {
	*s.order = append(*s.order, "cross")
	return false
}

func TestSchedulerBalanceLoopsUntilAFullRoundSubmitsNothing(t *testing.T) {
	sub := &scriptedSubmitter{seqBudget: 2, unseqBudget: 1, crossBudget: 0}
	sched := compaction.NewScheduler(sub, compaction.PriorityBalance, 10)
	sched.Schedule("root.sg", 1)

	// Round 1: seq (submits, budget 2->1), unseq (submits, 1->0), cross (no).
	// Round 2: seq (submits, 1->0), unseq (no), cross (no) -> still one submit.
	// Round 3: seq (no), unseq (no), cross (no) -> nothing submitted, stop.
	require.Equal(t, 3, sub.seqCalls)
	require.Equal(t, 3, sub.unseqCalls)
	require.Equal(t, 3, sub.crossCalls)
}

func TestSchedulerRespectsConcurrencyCapAndReleasesOnEnd(t *testing.T) {
	sub := &scriptedSubmitter{seqBudget: 5, unseqBudget: 5, crossBudget: 5}
	sched := compaction.NewScheduler(sub, compaction.PriorityInnerCross, 1)

	sched.Schedule("root.sg", 1)
	require.Equal(t, 1, sched.CurrentTaskNum())
	require.True(t, sched.IsPartitionCompacting("root.sg", 1))

	// Cap reached: a second schedule call should not admit more.
	sched.Schedule("root.sg", 1)
	require.Equal(t, 1, sched.CurrentTaskNum())

	sched.End("root.sg", 1)
	require.Equal(t, 0, sched.CurrentTaskNum())
	require.False(t, sched.IsPartitionCompacting("root.sg", 1))
}
