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

package config

import (
	"fmt"

	"github.com/influxdata/influxdb/toml"
)

// CompactionPriority controls the order CompactionScheduler tries the three
// submission kinds in during one schedule pass.
type CompactionPriority string

const (
	PriorityBalance    CompactionPriority = "BALANCE"
	PriorityInnerCross CompactionPriority = "INNER_CROSS"
	PriorityCrossInner CompactionPriority = "CROSS_INNER"
)

const (
	DefaultConcurrentCompactionThread = 4
	DefaultTargetCompactionFileSize   = toml.Size(2 * 1024 * 1024 * 1024)
	DefaultEnableSeqSpaceCompaction   = true
	DefaultEnableUnseqSpaceCompaction = true
	DefaultCompactionPriority         = PriorityBalance
)

// Compaction is the "[compaction]" config section: everything spec.md §6
// enumerates as cluster-configurable compaction behaviour.
type Compaction struct {
	ConcurrentCompactionThread int                `toml:"concurrent-compaction-thread"`
	TargetCompactionFileSize   toml.Size          `toml:"target-compaction-file-size"`
	EnableSeqSpaceCompaction   bool               `toml:"enable-seq-space-compaction"`
	EnableUnseqSpaceCompaction bool               `toml:"enable-unseq-space-compaction"`
	CompactionPriority         CompactionPriority `toml:"compaction-priority"`
}

func NewCompaction() Compaction {
	return Compaction{
		ConcurrentCompactionThread: DefaultConcurrentCompactionThread,
		TargetCompactionFileSize:   DefaultTargetCompactionFileSize,
		EnableSeqSpaceCompaction:   DefaultEnableSeqSpaceCompaction,
		EnableUnseqSpaceCompaction: DefaultEnableUnseqSpaceCompaction,
		CompactionPriority:         DefaultCompactionPriority,
	}
}

func (c Compaction) Validate() error {
	if c.ConcurrentCompactionThread <= 0 {
		return fmt.Errorf("compaction concurrent-compaction-thread must be greater than 0, got: %d", c.ConcurrentCompactionThread)
	}
	if c.TargetCompactionFileSize <= 0 {
		return fmt.Errorf("compaction target-compaction-file-size must be greater than 0, got: %d", c.TargetCompactionFileSize)
	}
	switch c.CompactionPriority {
	case PriorityBalance, PriorityInnerCross, PriorityCrossInner:
	default:
		return fmt.Errorf("compaction compaction-priority must be one of BALANCE, INNER_CROSS, CROSS_INNER, got: %s", c.CompactionPriority)
	}
	return nil
}
