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

package meta

import (
	"context"
	"errors"
	"fmt"

	"github.com/chronogrid/chronogrid/lib/errno"
	"github.com/chronogrid/chronogrid/router"
)

// PlanKind classifies a non-query plan for dispatch (spec.md §4.3.6). The
// plan's own grammar/payload is opaque to this spec; only its kind and, for
// partitioned/global-data plans, the rows or pattern it carries matter.
type PlanKind int

const (
	// PlanLocal has no cluster effect (e.g. a session-local setting).
	PlanLocal PlanKind = iota
	// PlanGlobalMeta mutates cluster metadata and must go through raft
	// (e.g. create storage group).
	PlanGlobalMeta
	// PlanGlobalData has no single owning group and is broadcast to all of
	// them (e.g. delete time series).
	PlanGlobalData
	// PlanPartitioned is row-wise and is split by the router.
	PlanPartitioned
)

// Plan is the dispatch envelope ExecuteNonQueryPlan classifies and routes.
// Payload is opaque (plan grammar is out of scope); Rows and Pattern are
// populated only for the kinds that need them.
type Plan struct {
	Kind    PlanKind
	Payload []byte
	Rows    []router.Row
	Pattern string
}

// LocalExecutor runs a plan with no cluster effect, and is also the commit
// point for an applied global-meta plan (every follower runs the same
// payload once its entry is committed).
type LocalExecutor interface {
	Execute(payload []byte) error
}

// WildcardExpander resolves a deletion pattern to concrete measurement
// paths before they are frozen into a global-data broadcast.
type WildcardExpander = router.WildcardExpander

// GroupDispatcher delivers a sub-plan to the replica group it targets,
// running it locally when this node is a member or forwarding it over RPC
// otherwise, per the latency-ordered coordinator policy (spec.md §4.3.6).
type GroupDispatcher interface {
	Dispatch(ctx context.Context, sub router.SubPlan, plan Plan) router.GroupResult
}

// SchemaCreator creates a storage group's schema inline when an
// auto-create retry is triggered (spec.md §4.3.6 item 4, §4.3.7).
type SchemaCreator interface {
	CreateStorageGroup(sg string) error
}

var errNotLeader = errors.New("meta: not leader")

// ExecuteNonQueryPlan classifies and dispatches plan per spec.md §4.3.6.
func (s *Store) ExecuteNonQueryPlan(ctx context.Context, plan Plan, expander WildcardExpander, dispatcher GroupDispatcher, schemas SchemaCreator) (router.OverallStatus, []router.RowStatus, error) {
	switch plan.Kind {
	case PlanLocal:
		if s.localExecutor == nil {
			return router.OverallSuccess, nil, nil
		}
		if err := s.localExecutor.Execute(plan.Payload); err != nil {
			return router.OverallError, nil, err
		}
		return router.OverallSuccess, nil, nil

	case PlanGlobalMeta:
		if !s.IsLeader() {
			return router.OverallError, nil, errNotLeader
		}
		cmd := Command{Type: CommandUserPlan, UserPlan: &plan}
		if err := s.applyLocal(cmd); err != nil {
			return router.OverallError, nil, err
		}
		return router.OverallSuccess, nil, nil

	case PlanGlobalData:
		if s.currentTable() == nil {
			return router.OverallError, nil, errno.NewError(errno.PartitionTableUnavailable)
		}
		_, groups, err := s.router.RouteDeletion(expander, plan.Pattern)
		if err != nil {
			return router.OverallError, nil, err
		}
		results := make([]router.GroupResult, 0, len(groups))
		for _, g := range groups {
			sub := router.SubPlan{Group: g}
			results = append(results, dispatcher.Dispatch(ctx, sub, plan))
		}
		return router.Recombine(1, results)

	case PlanPartitioned:
		return s.executePartitioned(ctx, plan, dispatcher, schemas)

	default:
		return router.OverallError, nil, fmt.Errorf("unknown plan kind %d", plan.Kind)
	}
}

// executePartitioned splits plan.Rows across replica groups and dispatches
// each sub-plan, retrying once with an inline schema create when the router
// reports an unset storage group (spec.md §4.3.7).
func (s *Store) executePartitioned(ctx context.Context, plan Plan, dispatcher GroupDispatcher, schemas SchemaCreator) (router.OverallStatus, []router.RowStatus, error) {
	subPlans, err := s.router.RouteBatch(plan.Rows)
	if errors.Is(err, router.ErrStorageGroupNotSet) && schemas != nil && len(plan.Rows) > 0 {
		if sg, sgErr := s.router.StorageGroupOf(plan.Rows[0].Path); sgErr == nil {
			if cErr := schemas.CreateStorageGroup(sg); cErr == nil {
				subPlans, err = s.router.RouteBatch(plan.Rows)
			}
		}
	}
	if err != nil {
		return router.OverallError, nil, err
	}

	results := make([]router.GroupResult, 0, len(subPlans))
	for _, sp := range subPlans {
		results = append(results, dispatcher.Dispatch(ctx, sp, plan))
	}
	return router.Recombine(len(plan.Rows), results)
}
