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

// Package router splits parsed, non-query write plans into sub-plans that
// each target exactly one replica group, using a partition.Table.
package router

import (
	"errors"
	"strconv"
	"strings"

	"github.com/chronogrid/chronogrid/partition"
)

// ErrStorageGroupNotSet is returned when a path does not resolve to a
// storage group known to this router. Callers should synchronize with the
// meta leader once and retry before giving up.
var ErrStorageGroupNotSet = errors.New("router: storage group not set")

// WildcardExpander resolves a measurement-path wildcard pattern (e.g. for a
// DeleteTimeSeries plan) to the concrete paths it matches, so they can be
// frozen before forwarding.
type WildcardExpander interface {
	Expand(pattern string) ([]string, error)
}

// Row is one point of a batch insert: the device/measurement path and its
// timestamp.
type Row struct {
	Path string
	Time int64
}

// SubPlan is a batch insert slice that targets a single replica group. The
// original row indices are carried so per-row results can be rewoven into a
// combined response.
type SubPlan struct {
	Group      partition.ReplicaGroup
	RowIndices []int
}

// Router splits plans into per-replica-group sub-plans using a
// partition.Table. Storage groups are inferred from a path's leading
// segments, to a configured depth.
type Router struct {
	table             *partition.Table
	partitionInterval int64
	sgPathDepth       int
}

// New builds a Router over table. partitionInterval is the width, in the
// same units as row timestamps, of one time partition. sgPathDepth is the
// number of leading dot-separated path segments that make up a storage
// group name (the meta config's DefaultStorageGroupLevel).
func New(table *partition.Table, partitionInterval int64, sgPathDepth int) *Router {
	return &Router{table: table, partitionInterval: partitionInterval, sgPathDepth: sgPathDepth}
}

// TimePartition returns floor(ts / partitionInterval).
func (r *Router) TimePartition(ts int64) int64 {
	if r.partitionInterval <= 0 {
		return 0
	}
	if ts >= 0 {
		return ts / r.partitionInterval
	}
	// floor division for negative timestamps
	q := ts / r.partitionInterval
	if ts%r.partitionInterval != 0 {
		q--
	}
	return q
}

// StorageGroupOf infers the storage group name from path's leading
// sgPathDepth segments. Returns ErrStorageGroupNotSet if path is shallower
// than that.
func (r *Router) StorageGroupOf(path string) (string, error) {
	segments := strings.Split(path, ".")
	if len(segments) < r.sgPathDepth || r.sgPathDepth <= 0 {
		return "", ErrStorageGroupNotSet
	}
	return strings.Join(segments[:r.sgPathDepth], "."), nil
}

// RoutePoint derives (sg, time-partition) from a single row and returns its
// replica group.
func (r *Router) RoutePoint(path string, ts int64) (partition.ReplicaGroup, error) {
	sg, err := r.StorageGroupOf(path)
	if err != nil {
		return partition.ReplicaGroup{}, err
	}
	return r.table.Route(sg, r.TimePartition(ts))
}

// RouteCreateTimeSeries routes a schema-creation plan to the group owning
// the storage group's slot.
func (r *Router) RouteCreateTimeSeries(path string) (partition.ReplicaGroup, error) {
	sg, err := r.StorageGroupOf(path)
	if err != nil {
		return partition.ReplicaGroup{}, err
	}
	return r.table.Route(sg, 0)
}

// RouteBatch groups a tablet's rows by (sg, time-partition) and emits one
// SubPlan per group, preserving each row's original index so split results
// can be rewoven with Recombine.
func (r *Router) RouteBatch(rows []Row) ([]SubPlan, error) {
	index := make(map[string]int)
	var plans []SubPlan

	for i, row := range rows {
		sg, err := r.StorageGroupOf(row.Path)
		if err != nil {
			return nil, err
		}
		group, err := r.table.Route(sg, r.TimePartition(row.Time))
		if err != nil {
			return nil, err
		}
		key := groupKey(group)
		pos, ok := index[key]
		if !ok {
			pos = len(plans)
			index[key] = pos
			plans = append(plans, SubPlan{Group: group})
		}
		plans[pos].RowIndices = append(plans[pos].RowIndices, i)
	}
	return plans, nil
}

// RouteDeletion expands pattern to concrete paths via expander, freezing
// them before broadcasting the deletion to every replica group in the ring.
func (r *Router) RouteDeletion(expander WildcardExpander, pattern string) ([]string, []partition.ReplicaGroup, error) {
	paths, err := expander.Expand(pattern)
	if err != nil {
		return nil, nil, err
	}
	return paths, r.table.AllGroups(), nil
}

func groupKey(g partition.ReplicaGroup) string {
	var sb strings.Builder
	for i, n := range g.Nodes {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(n.ID), 10))
	}
	return sb.String()
}
