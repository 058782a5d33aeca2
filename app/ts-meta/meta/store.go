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

// Package meta implements the cluster control plane: the Raft-backed
// MetaGroupMember that owns cluster membership and the partition table,
// and drives non-query plan routing to data replica groups.
package meta

import (
	"context"
	"math/rand"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/chronogrid/chronogrid/lib/config"
	"github.com/chronogrid/chronogrid/lib/errno"
	"github.com/chronogrid/chronogrid/lib/logger"
	"github.com/chronogrid/chronogrid/partition"
	"github.com/chronogrid/chronogrid/router"
	"go.uber.org/zap"
)

// Character is a meta-group member's role in the cluster, mirrored from
// the underlying raft state plus the two extra states a member can be in
// before raft has a leader (ELECTOR) or during a graceful self-removal.
type Character int

const (
	CharacterFollower Character = iota
	CharacterCandidate
	CharacterLeader
	CharacterElector
)

// JoinResult is the leader's verdict on an AddNode request (spec.md
// §4.3.2).
type JoinResult int

const (
	JoinAgree JoinResult = iota
	JoinIdentifierConflict
	JoinParameterConflict
	JoinNoPartitionTable
	JoinNoLeader
)

// AddNodeRequest is what a joining node sends to a seed (spec.md §4.3.1,
// §4.3.2).
type AddNodeRequest struct {
	Node   partition.Node
	Status StartUpStatus
}

// AddNodeResponse is the leader's reply.
type AddNodeResponse struct {
	Result      JoinResult
	Table       []byte
	Diagnostics []string
}

// raftApplier is the subset of raftWrapper that Store's control logic
// depends on; a fake satisfies it in tests without booting real raft.
type raftApplier interface {
	IsLeader() bool
	Leader() string
	Apply(b []byte) error
	Close() error
}

// storeData is everything the raft FSM mutates. All access is guarded by
// Store.mu.
type storeData struct {
	Term  uint64
	Index uint64

	Salt              uint32
	ReplicationFactor int
	Nodes             map[uint32]partition.Node
	Table             *partition.Table

	Character Character
	Leader    string
	LeaderID  uint32

	BlindNodes      map[uint32]bool
	IdConflictNodes map[uint32]bool
}

// Store is the MetaGroupMember: the top-level actor owning membership, the
// partition table, and raft log application (spec.md §4.3).
type Store struct {
	config  *config.Meta
	logging config.Logger

	mu   sync.RWMutex
	data *storeData

	raft     raftApplier
	notifyCh chan bool

	dataChanged chan struct{}

	router *router.Router

	localExecutor LocalExecutor

	Logger *zap.Logger

	UseIncSyncData bool
	cacheMu        sync.RWMutex
}

func NewStore(c *config.Meta) *Store {
	s := &Store{
		config:      c,
		notifyCh:    make(chan bool, 1),
		dataChanged: make(chan struct{}),
		Logger:      logger.GetLogger(),
		data: &storeData{
			ReplicationFactor: c.ReplicationNum,
			Nodes:             make(map[uint32]partition.Node),
			BlindNodes:        make(map[uint32]bool),
			IdConflictNodes:   make(map[uint32]bool),
			Character:         CharacterElector,
		},
	}
	s.router = router.New(nil, int64(c.PartitionInterval), c.DefaultStorageGroupLevel)
	return s
}

// SetLocalExecutor wires the collaborator that runs a plan's opaque
// payload once it is either local-only or committed through raft.
func (s *Store) SetLocalExecutor(e LocalExecutor) { s.localExecutor = e }

// SetLogging wires the logging config raftConfig uses to size the raft
// library's own log output file; must be called before Open.
func (s *Store) SetLogging(l config.Logger) { s.logging = l }

// Leader returns the raft-reported leader address, or "" before one is
// known or once raft has not been opened.
func (s *Store) Leader() string {
	if s.raft == nil {
		return ""
	}
	return s.raft.Leader()
}

// NodeCount returns the number of nodes currently known to the cluster.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Nodes)
}

// SerializedTable returns the current partition table's wire encoding, or
// nil if the cluster has none yet.
func (s *Store) SerializedTable() []byte {
	t := s.currentTable()
	if t == nil {
		return nil
	}
	return t.Serialize()
}

// Term returns the raft term of the last log entry this store has applied.
func (s *Store) Term() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Term
}

// LocalStartUpStatus exports this node's configured StartUpStatus, for the
// RPC server to answer CheckStatusRequest and to seed AddNodeRequest/
// BuildCluster's seed-to-seed check without reaching into package-private
// helpers.
func (s *Store) LocalStartUpStatus() StartUpStatus {
	return startUpStatusFromConfig(s.config)
}

// ApplyReplicatedEntry applies a Command payload received directly over
// the wire from the leader's sendLogToAllGroups broadcast (spec.md
// §4.3.3's data-group acknowledgement path), bypassing raft entirely:
// the leader already owns consensus for this entry, so a follower
// receiving it here only has to catch its local state up.
func (s *Store) ApplyReplicatedEntry(payload []byte) error {
	cmd, err := decodeCommand(payload)
	if err != nil {
		return err
	}
	fsm := (*storeFSM)(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	return fsm.executeCmd(cmd)
}

// Open starts the raft subsystem, listening on ln, with the given initial
// peer set.
func (s *Store) Open(ln net.Listener, peers []string) error {
	rw, err := newRaftWrapper(s, ln, peers)
	if err != nil {
		return err
	}
	s.raft = rw
	return nil
}

func (s *Store) Close() error {
	if s.raft == nil {
		return nil
	}
	return s.raft.Close()
}

func (s *Store) IsLeader() bool { return s.raft != nil && s.raft.IsLeader() }

func (s *Store) character() Character {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Character
}

func (s *Store) setCharacter(c Character) {
	s.mu.Lock()
	s.data.Character = c
	s.mu.Unlock()
}

// currentTable returns a routable snapshot of the partition table, or nil
// if the cluster has none yet.
func (s *Store) currentTable() *partition.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Table
}

// nodeSnapshot returns every known node, sorted by identifier.
func (s *Store) nodeSnapshot() []partition.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]partition.Node, 0, len(s.data.Nodes))
	for _, n := range s.data.Nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BuildCluster runs this node as a seed: it synthesises the initial
// partition table if the cluster has only this member. Checking every
// other seed's StartUpStatus and waiting for quorum agreement (spec.md
// §4.3.1) is delegated to checker, so the control flow here stays testable
// without a network.
func (s *Store) BuildCluster(self partition.Node, checker func(seed string, local StartUpStatus) (StartUpStatus, error)) error {
	local := startUpStatusFromConfig(s.config)

	var mismatches []string
	for _, seed := range s.config.JoinPeers {
		remote, err := checker(seed, local)
		if err != nil {
			continue
		}
		if diff := local.Diff(remote); len(diff) > 0 {
			mismatches = append(mismatches, diff...)
		}
	}
	if len(mismatches) > 0 {
		return errno.NewError(errno.StartUpStatusMismatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Salt = hashSalt(s.config.HashSalt)
	s.data.Nodes[self.ID] = self
	if len(s.config.JoinPeers) <= 1 {
		s.data.Table = partition.New(s.data.Salt, s.data.ReplicationFactor, s.config.SlotCount)
		if _, err := s.data.Table.AddNode(self); err != nil {
			return err
		}
	}
	s.data.Character = CharacterFollower
	return nil
}

// hashSalt turns the configured salt string into the numeric salt the
// partition table hashes with.
func hashSalt(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// JoinCluster runs this node's join sequence: pick a seed at random, send
// an AddNode request, and act on the response (spec.md §4.3.1). regenerate
// is called to produce a fresh identifier on IDENTIFIER_CONFLICT.
func (s *Store) JoinCluster(self partition.Node, send func(seed string, req AddNodeRequest) (AddNodeResponse, error), regenerate func() uint32) error {
	if len(s.config.JoinPeers) == 0 {
		return errno.NewError(errno.ClusterTooSmall)
	}

	for attempt := 0; attempt < config.DefaultJoinRetry; attempt++ {
		seed := s.config.JoinPeers[rand.Intn(len(s.config.JoinPeers))] //nolint:gosec
		resp, err := send(seed, AddNodeRequest{Node: self, Status: startUpStatusFromConfig(s.config)})
		if err != nil {
			time.Sleep(config.DefaultJoinRetryWait)
			continue
		}

		switch resp.Result {
		case JoinAgree:
			s.mu.Lock()
			table := partition.New(0, s.data.ReplicationFactor, s.config.SlotCount)
			if err := table.Deserialize(resp.Table); err != nil {
				s.mu.Unlock()
				return err
			}
			s.data.Table = table
			for _, n := range table.Nodes() {
				s.data.Nodes[n.ID] = n
			}
			s.data.Character = CharacterFollower
			s.mu.Unlock()
			return nil
		case JoinIdentifierConflict:
			self.ID = regenerate()
			continue
		case JoinParameterConflict:
			return errno.NewError(errno.StartUpStatusMismatch)
		case JoinNoPartitionTable:
			time.Sleep(config.DefaultJoinRetryWait)
			continue
		default:
			time.Sleep(config.DefaultJoinRetryWait)
		}
	}
	return errno.NewError(errno.JoinRetryExhausted)
}

// HandleAddNode implements the leader-side add-node protocol (spec.md
// §4.3.2). acker performs step 5's cluster-wide replication; it is
// nil-safe so tests can exercise steps 1-4 without a network.
func (s *Store) HandleAddNode(ctx context.Context, req AddNodeRequest, acker NodeAcker) AddNodeResponse {
	if !s.IsLeader() {
		return AddNodeResponse{Result: JoinNoLeader}
	}

	s.mu.Lock()
	if existing, ok := s.data.Nodes[req.Node.ID]; ok {
		if existing != req.Node {
			s.mu.Unlock()
			return AddNodeResponse{Result: JoinIdentifierConflict}
		}
		table := s.data.Table
		s.mu.Unlock()
		return AddNodeResponse{Result: JoinAgree, Table: table.Serialize()}
	}
	local := startUpStatusFromConfig(s.config)
	if diff := local.Diff(req.Status); len(diff) > 0 {
		s.mu.Unlock()
		return AddNodeResponse{Result: JoinParameterConflict, Diagnostics: diff}
	}
	if s.data.Table == nil {
		s.mu.Unlock()
		return AddNodeResponse{Result: JoinNoPartitionTable}
	}
	nodes := s.data.Table.Nodes()
	groups := s.data.Table.AllGroups()
	s.mu.Unlock()

	if acker != nil {
		cmd := Command{Type: CommandAddNode, AddNode: &req.Node}
		payload, err := cmd.encode()
		if err != nil {
			return AddNodeResponse{Result: JoinNoLeader}
		}
		result := sendLogToAllGroups(ctx, nodes, groups, payload, acker, s.IsLeader)
		if result != BroadcastOK {
			return AddNodeResponse{Result: JoinNoLeader}
		}
	}

	if err := s.applyLocal(Command{Type: CommandAddNode, AddNode: &req.Node}); err != nil {
		return AddNodeResponse{Result: JoinNoLeader}
	}

	s.mu.RLock()
	table := s.data.Table
	s.mu.RUnlock()
	return AddNodeResponse{Result: JoinAgree, Table: table.Serialize()}
}

// HandleRemoveNode implements the leader-side remove-node protocol
// (spec.md §4.3.4). Rejects if removal would bring the cluster below the
// replication factor.
func (s *Store) HandleRemoveNode(ctx context.Context, id uint32, acker NodeAcker) error {
	if !s.IsLeader() {
		return errno.NewError(errno.MetaIsNotLeader)
	}

	s.mu.RLock()
	if len(s.data.Nodes)-1 < s.data.ReplicationFactor {
		s.mu.RUnlock()
		return errno.NewError(errno.ClusterTooSmall, len(s.data.Nodes), s.data.ReplicationFactor)
	}
	nodes := s.data.Table.Nodes()
	groups := s.data.Table.AllGroups()
	removedIsLeader := id == s.data.LeaderID
	s.mu.RUnlock()

	if acker != nil {
		cmd := Command{Type: CommandRemoveNode, RemoveNode: &id}
		payload, err := cmd.encode()
		if err != nil {
			return err
		}
		result := sendLogToAllGroups(ctx, nodes, groups, payload, acker, s.IsLeader)
		if result != BroadcastOK {
			return errno.NewError(errno.QuorumTimeout)
		}
	}

	if err := s.applyLocal(Command{Type: CommandRemoveNode, RemoveNode: &id}); err != nil {
		return err
	}

	if removedIsLeader {
		s.setCharacter(CharacterElector)
	}
	return nil
}

// applyLocal runs cmd through the same code path raft.Apply would use,
// without going through raft - used for single-node clusters and tests.
// Real leaders route through s.raft.Apply so the entry is replicated.
func (s *Store) applyLocal(cmd Command) error {
	if s.raft != nil {
		payload, err := cmd.encode()
		if err != nil {
			return err
		}
		return s.raft.Apply(payload)
	}
	fsm := (*storeFSM)(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	return fsm.executeCmd(cmd)
}
