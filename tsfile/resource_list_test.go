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

package tsfile_test

import (
	"testing"

	"github.com/chronogrid/chronogrid/tsfile"
	"github.com/stretchr/testify/require"
)

func TestResourceListInsertBeforeFirstSourceReplacesSources(t *testing.T) {
	rl := tsfile.NewResourceList()
	a := tsfile.NewResource("a", 30)
	b := tsfile.NewResource("b", 40)
	c := tsfile.NewResource("c", 40)

	rl.Lock()
	rl.PushBack(a)
	rl.PushBack(b)
	rl.PushBack(c)
	rl.Unlock()

	target := tsfile.NewResource("merged", 110)

	rl.Lock()
	ok := rl.InsertBeforeFirstSource(target, []*tsfile.Resource{b, c})
	rl.Unlock()
	require.True(t, ok)

	rl.RLock()
	snap := rl.Snapshot()
	rl.RUnlock()

	require.Len(t, snap, 2)
	require.Equal(t, "a", snap[0].Path)
	require.Equal(t, "merged", snap[1].Path)
}
