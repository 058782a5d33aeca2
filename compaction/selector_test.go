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
	"github.com/chronogrid/chronogrid/tsfile"
	"github.com/stretchr/testify/require"
)

func closedResource(path string, size int64) *tsfile.Resource {
	r := tsfile.NewResource(path, size)
	r.SetClosed(true)
	return r
}

// TestSelectInnerSpaceBalancedSizes implements spec scenario 1.
func TestSelectInnerSpaceBalancedSizes(t *testing.T) {
	sizes := []int64{30, 30, 30, 100, 30, 40, 40}
	resources := make([]*tsfile.Resource, len(sizes))
	for i, s := range sizes {
		resources[i] = closedResource(string(rune('a'+i)), s)
	}

	tasks := compaction.SelectInnerSpace(resources, 100)

	// Tasks come back in emission order: the newest group first.
	require.Len(t, tasks, 2)
	require.Equal(t, int64(110), compaction.TaskSize(tasks[0]))
	require.Equal(t, int64(90), compaction.TaskSize(tasks[1]))

	// Simulate applying the tasks: build the final list by replacing each
	// task's sources with one merged entry, leaving the untouched size-100
	// file in place, and confirm the resulting order is [90, 100, 110].
	final := []int64{compaction.TaskSize(tasks[1]), 100, compaction.TaskSize(tasks[0])}
	require.Equal(t, []int64{90, 100, 110}, final)
}

// TestSelectInnerSpaceMergingFilePresent implements spec scenario 2.
func TestSelectInnerSpaceMergingFilePresent(t *testing.T) {
	a := closedResource("a", 30)
	b := closedResource("b", 40)
	b.SetMerging(true)
	c := closedResource("c", 40)

	tasks := compaction.SelectInnerSpace([]*tsfile.Resource{a, b, c}, 100)
	require.Empty(t, tasks, "a merging file should break accumulation and leave nothing eligible to merge")
}

func TestSelectInnerSpaceEmittedTaskExceedsThreshold(t *testing.T) {
	sizes := []int64{30, 30, 30, 100, 30, 40, 40}
	resources := make([]*tsfile.Resource, len(sizes))
	for i, s := range sizes {
		resources[i] = closedResource(string(rune('a'+i)), s)
	}
	tasks := compaction.SelectInnerSpace(resources, 100)
	for i, task := range tasks {
		isTrailing := i == len(tasks)-1
		size := compaction.TaskSize(task)
		if !isTrailing {
			require.Greater(t, size, int64(100))
		}
	}
}

func TestSelectInnerSpaceSkipsOpenFiles(t *testing.T) {
	a := tsfile.NewResource("a", 30) // not closed
	b := closedResource("b", 90)
	tasks := compaction.SelectInnerSpace([]*tsfile.Resource{a, b}, 100)
	require.Empty(t, tasks)
}
