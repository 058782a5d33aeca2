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

package router_test

import (
	"testing"

	"github.com/chronogrid/chronogrid/partition"
	"github.com/chronogrid/chronogrid/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTable(t *testing.T) *partition.Table {
	t.Helper()
	tbl := partition.New(5, 2, 128)
	for i := uint32(1); i <= 4; i++ {
		_, err := tbl.AddNode(partition.Node{ID: i})
		require.NoError(t, err)
	}
	return tbl
}

func TestStorageGroupNotSet(t *testing.T) {
	r := router.New(buildTable(t), 1000, 2)
	_, err := r.RoutePoint("onlyonesegment", 0)
	require.ErrorIs(t, err, router.ErrStorageGroupNotSet)
}

func TestRouteBatchGroupsByStorageGroupAndTimePartition(t *testing.T) {
	r := router.New(buildTable(t), 100, 2)
	rows := []router.Row{
		{Path: "root.sg1.d1", Time: 5},
		{Path: "root.sg1.d1", Time: 105},
		{Path: "root.sg1.d2", Time: 5},
	}
	plans, err := r.RouteBatch(rows)
	require.NoError(t, err)

	// rows 0 and 2 share (sg, partition); row 1 is a later time partition.
	total := 0
	for _, p := range plans {
		total += len(p.RowIndices)
	}
	require.Equal(t, 3, total)
}

func TestSplitIdempotentOnceSingleGroup(t *testing.T) {
	r := router.New(buildTable(t), 100, 2)
	rows := []router.Row{
		{Path: "root.sg1.d1", Time: 5},
		{Path: "root.sg1.d1", Time: 6},
	}
	plans, err := r.RouteBatch(rows)
	require.NoError(t, err)
	require.Len(t, plans, 1)

	again, err := r.RouteBatch(rows)
	require.NoError(t, err)
	require.Equal(t, plans, again)
}

// TestTabletSplitReassembly implements spec scenario 6: a 3-row tablet where
// rows 0 and 2 route to group A and row 1 routes to group B; A succeeds, B
// reports a row-level failure; the combined status must be MULTIPLE_ERROR
// with subStatus[0]=Success, subStatus[1]=<B failure>, subStatus[2]=Success.
func TestTabletSplitReassembly(t *testing.T) {
	groupA := partition.ReplicaGroup{Nodes: []partition.Node{{ID: 1}, {ID: 2}}}
	groupB := partition.ReplicaGroup{Nodes: []partition.Node{{ID: 3}, {ID: 4}}}

	results := []router.GroupResult{
		{
			SubPlan:   router.SubPlan{Group: groupA, RowIndices: []int{0, 2}},
			RowStatus: []router.RowStatus{router.RowSuccess, router.RowSuccess},
		},
		{
			SubPlan:   router.SubPlan{Group: groupB, RowIndices: []int{1}},
			RowStatus: []router.RowStatus{router.RowExecuteStatementError},
		},
	}

	overall, subStatus, err := router.Recombine(3, results)
	require.NoError(t, err)
	require.Equal(t, router.OverallMultipleError, overall)
	require.Equal(t, []router.RowStatus{
		router.RowSuccess,
		router.RowExecuteStatementError,
		router.RowSuccess,
	}, subStatus)
}

func TestRecombineWholeGroupFailureWithNoRowFailureIsAggregatedError(t *testing.T) {
	group := partition.ReplicaGroup{Nodes: []partition.Node{{ID: 1}}}
	results := []router.GroupResult{
		{SubPlan: router.SubPlan{Group: group, RowIndices: []int{0}}, Err: assert.AnError},
	}
	overall, subStatus, err := router.Recombine(1, results)
	require.Equal(t, router.OverallError, overall)
	require.Nil(t, subStatus)
	require.Error(t, err)
}
