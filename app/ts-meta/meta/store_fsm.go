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
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hashicorp/raft"
	"github.com/chronogrid/chronogrid/partition"
)

// CommandType tags a RaftLog entry's payload kind (spec.md §3: "AddNode,
// RemoveNode, or a deferred user plan").
type CommandType int

const (
	CommandAddNode CommandType = iota
	CommandRemoveNode
	CommandUserPlan
)

// Command is the JSON-encoded body every raft.Log carries. The entry set
// is small and fixed, so a hand-rolled protobuf schema buys nothing here;
// encoding/json keeps the three variants in one struct with no codegen.
type Command struct {
	Type       CommandType
	AddNode    *partition.Node `json:",omitempty"`
	RemoveNode *uint32         `json:",omitempty"`
	UserPlan   *Plan           `json:",omitempty"`
}

func (c Command) encode() ([]byte, error) { return json.Marshal(c) }

func decodeCommand(b []byte) (Command, error) {
	var c Command
	err := json.Unmarshal(b, &c)
	return c, err
}

// storeFSM represents the finite state machine used by Store to interact with Raft.
type storeFSM Store

func (fsm *storeFSM) Apply(l *raft.Log) interface{} {
	cmd, err := decodeCommand(l.Data)
	if err != nil {
		panic(fmt.Errorf("cannot decode command: %x: %w", l.Data, err))
	}

	s := (*Store)(fsm)
	s.mu.Lock()
	defer s.mu.Unlock()

	fsm.Logger.Info(fmt.Sprintf("apply log term %d index %d type %d", l.Term, l.Index, cmd.Type))
	err = fsm.executeCmd(cmd)

	s.data.Term = l.Term
	s.data.Index = l.Index

	select {
	case <-s.dataChanged:
	default:
		close(s.dataChanged)
	}
	s.dataChanged = make(chan struct{})

	return err
}

func (fsm *storeFSM) ApplyBatch(logs []*raft.Log) []interface{} {
	ret := make([]interface{}, len(logs))
	for i, l := range logs {
		ret[i] = fsm.Apply(l)
	}
	return ret
}

// executeCmd mutates fsm.data in place. Caller must hold (*Store)(fsm).mu.
func (fsm *storeFSM) executeCmd(cmd Command) error {
	switch cmd.Type {
	case CommandAddNode:
		return fsm.applyAddNode(*cmd.AddNode)
	case CommandRemoveNode:
		return fsm.applyRemoveNode(*cmd.RemoveNode)
	case CommandUserPlan:
		return fsm.applyUserPlan(*cmd.UserPlan)
	default:
		return fmt.Errorf("unknown command type %d", cmd.Type)
	}
}

// applyAddNode registers n and extends the partition table, creating one
// if this is the cluster's first member.
func (fsm *storeFSM) applyAddNode(n partition.Node) error {
	s := (*Store)(fsm)
	if s.data.Table == nil {
		s.data.Salt = hashSalt(s.config.HashSalt)
		s.data.Table = partition.New(s.data.Salt, s.data.ReplicationFactor, s.config.SlotCount)
	}
	s.data.Nodes[n.ID] = n
	_, err := s.data.Table.AddNode(n)
	if err != nil && err != partition.ErrNodeExists {
		return err
	}
	return nil
}

// applyRemoveNode drops id from membership and the partition table.
func (fsm *storeFSM) applyRemoveNode(id uint32) error {
	s := (*Store)(fsm)
	delete(s.data.Nodes, id)
	delete(s.data.BlindNodes, id)
	delete(s.data.IdConflictNodes, id)
	if s.data.Table == nil {
		return nil
	}
	_, err := s.data.Table.RemoveNode(id)
	if err != nil && err != partition.ErrNodeNotFound {
		return err
	}
	return nil
}

// applyUserPlan is the deferred-global-meta-plan commit point (spec.md
// §4.3.6 item 2): by the time it reaches the FSM, the plan has already
// been classified as a global meta plan; its opaque payload is handed to
// the local executor collaborator, unchanged in meaning across every
// follower applying the same committed entry.
func (fsm *storeFSM) applyUserPlan(p Plan) error {
	s := (*Store)(fsm)
	if s.localExecutor == nil {
		return nil
	}
	return s.localExecutor.Execute(p.Payload)
}

// Snapshot/Restore persist and reload the full in-memory data set as one
// opaque blob - the only fields raft's own log needn't replay forever.
type fsmSnapshot struct {
	data []byte
}

func (fsm *storeFSM) Snapshot() (raft.FSMSnapshot, error) {
	s := (*Store)(fsm)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tableBytes []byte
	if s.data.Table != nil {
		tableBytes = s.data.Table.Serialize()
	}
	snap := persistedSnapshot{
		Term:              s.data.Term,
		Index:             s.data.Index,
		Salt:              s.data.Salt,
		ReplicationFactor: s.data.ReplicationFactor,
		Nodes:             s.data.Nodes,
		Table:             tableBytes,
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return &fsmSnapshot{data: b}, nil
}

type persistedSnapshot struct {
	Term              uint64
	Index             uint64
	Salt              uint32
	ReplicationFactor int
	Nodes             map[uint32]partition.Node
	Table             []byte
}

func (f *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if _, err := sink.Write(f.data); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (f *fsmSnapshot) Release() {}

func (fsm *storeFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return err
	}
	var snap persistedSnapshot
	if err := json.Unmarshal(buf.Bytes(), &snap); err != nil {
		return err
	}

	s := (*Store)(fsm)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Term = snap.Term
	s.data.Index = snap.Index
	s.data.Salt = snap.Salt
	s.data.ReplicationFactor = snap.ReplicationFactor
	s.data.Nodes = snap.Nodes
	if s.data.Nodes == nil {
		s.data.Nodes = make(map[uint32]partition.Node)
	}
	if len(snap.Table) > 0 {
		table := partition.New(snap.Salt, snap.ReplicationFactor, s.config.SlotCount)
		if err := table.Deserialize(snap.Table); err != nil {
			return err
		}
		s.data.Table = table
	}
	return nil
}
