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

// Package compaction implements the per-node storage compaction engine:
// stateless file-set selection, crash-safe merge execution with a redo log,
// admission scheduling, and startup recovery.
package compaction

import "github.com/chronogrid/chronogrid/tsfile"

// SelectInnerSpace scans resources (oldest-to-newest) in reverse -
// newest-first - accumulating candidates whose size does not exceed
// targetSize and which are neither merging nor still open. A candidate that
// fails that predicate flushes any partial accumulation without including
// it. Once the running total exceeds targetSize the accumulated set (order
// restored to oldest-to-newest) is emitted as a task and the accumulator
// resets.
//
// An accumulated set whose total equals targetSize exactly is sealed
// without being emitted and its files are left untouched; in particular an
// eligible file of exactly targetSize reached with an empty accumulator
// stays on its own. After the full scan, a trailing accumulator of two or
// more files is emitted as a final, possibly-undersized task; a trailing
// single file is left in place. Tasks are returned in the order they are
// emitted, so the newest group comes first.
func SelectInnerSpace(resources []*tsfile.Resource, targetSize int64) [][]*tsfile.Resource {
	var tasks [][]*tsfile.Resource
	var acc []*tsfile.Resource
	var accSize int64

	flush := func() {
		if len(acc) >= 2 {
			tasks = append(tasks, reverseOf(acc))
		}
		acc = nil
		accSize = 0
	}

	for i := len(resources) - 1; i >= 0; i-- {
		r := resources[i]
		if r.Merging() || !r.Closed() || r.Size() > targetSize {
			acc = nil
			accSize = 0
			continue
		}

		acc = append(acc, r)
		accSize += r.Size()

		if accSize >= targetSize {
			if accSize > targetSize {
				flush()
			} else {
				// accSize == targetSize exactly: the accumulated set meets
				// but does not exceed the threshold, so it is sealed without
				// being emitted (non-trailing tasks must strictly exceed
				// targetSize); its files are left untouched in the list.
				acc = nil
				accSize = 0
			}
		}
	}

	flush()
	return tasks
}

// reverseOf returns acc (accumulated newest-first) restored to
// oldest-to-newest order, matching the source list's ordering.
func reverseOf(acc []*tsfile.Resource) []*tsfile.Resource {
	out := make([]*tsfile.Resource, len(acc))
	for i, r := range acc {
		out[len(acc)-1-i] = r
	}
	return out
}

// TaskSize sums the byte sizes of a candidate set.
func TaskSize(set []*tsfile.Resource) int64 {
	var total int64
	for _, r := range set {
		total += r.Size()
	}
	return total
}
