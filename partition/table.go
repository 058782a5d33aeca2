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

package partition

import (
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/chronogrid/chronogrid/lib/consistenthash"
	"github.com/chronogrid/chronogrid/lib/numberenc"
)

// DefaultSlotCount is used when a caller does not specify a slot count.
const DefaultSlotCount = 16384

// virtualReplicas is the number of ring points per node in the consistent
// hash used for slot-owner assignment; higher spreads load more evenly and
// bounds how many slots move when membership changes.
const virtualReplicas = 64

const tableVersion = 1

var (
	// ErrNotEnoughNodes is returned by Route when fewer than R nodes are
	// registered in the table.
	ErrNotEnoughNodes = errors.New("partition: fewer than replication-factor nodes registered")
	// ErrNodeExists is returned by AddNode for an already-registered id.
	ErrNodeExists = errors.New("partition: node already present")
	// ErrNodeNotFound is returned by RemoveNode for an unknown id.
	ErrNodeNotFound = errors.New("partition: node not found")
	// ErrWouldUnderflow is returned by RemoveNode if it would drop the
	// cluster below R members.
	ErrWouldUnderflow = errors.New("partition: removing node would leave fewer than replication-factor nodes")
	// ErrCorruptTable is returned by Deserialize on a malformed buffer.
	ErrCorruptTable = errors.New("partition: corrupt serialized table")
)

// SlotMove records that a slot changed owner as the result of an AddNode or
// RemoveNode operation, so data-plane code can pull that slot's data.
type SlotMove struct {
	Slot          int
	PreviousOwner uint32
	NewOwner      uint32
}

// NodeAdditionResult is returned by Table.AddNode.
type NodeAdditionResult struct {
	Moved []SlotMove
}

// NodeRemovalResult is returned by Table.RemoveNode.
type NodeRemovalResult struct {
	Moved []SlotMove
}

// Table is a deterministic assignment of SlotCount virtual slots to nodes.
// A (storage-group, time-partition) key hashes, with the cluster salt, into
// a slot; the slot owner plus its R-1 ring successors form the replica
// group. The zero value is not usable; construct with New.
type Table struct {
	mu sync.RWMutex

	salt  uint32
	r     int
	slots int

	nodes map[uint32]Node
	ring  *consistenthash.Map

	ordered   []uint32 // node IDs, ascending, for ring-successor lookup
	slotOwner []uint32 // cached slot -> owner node ID, length == slots
}

// New builds an empty table for the given cluster salt and replication
// factor, using slotCount virtual slots (DefaultSlotCount if <= 0).
func New(salt uint32, replicationFactor, slotCount int) *Table {
	if slotCount <= 0 {
		slotCount = DefaultSlotCount
	}
	return &Table{
		salt:      salt,
		r:         replicationFactor,
		slots:     slotCount,
		nodes:     make(map[uint32]Node),
		ring:      consistenthash.New(virtualReplicas, slotHash),
		slotOwner: make([]uint32, slotCount),
	}
}

// slotHash adapts xxhash to consistenthash.Hash.
func slotHash(b []byte) uint32 {
	return uint32(xxhash.Sum64(b))
}

// NodeCount returns the number of nodes currently registered.
func (t *Table) NodeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Salt returns the cluster-wide hash salt this table was built with.
func (t *Table) Salt() uint32 { return t.salt }

// ReplicationFactor returns R.
func (t *Table) ReplicationFactor() int { return t.r }

// Nodes returns a snapshot of the registered nodes.
func (t *Table) Nodes() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func slotKey(salt uint32, sg string, timePartition int64) string {
	buf := make([]byte, 0, len(sg)+12)
	buf = numberenc.MarshalUint32Append(buf, salt)
	buf = append(buf, sg...)
	buf = numberenc.MarshalInt64Append(buf, timePartition)
	return strconv.FormatUint(xxhash.Sum64(buf), 10)
}

func (t *Table) slotFor(sg string, timePartition int64) int {
	h := xxhash.Sum64String(slotKey(t.salt, sg, timePartition))
	return int(h % uint64(t.slots))
}

// Route hashes (sg, time-partition) with the cluster salt into a slot and
// returns the slot owner plus its R-1 ring successors. Pure: two calls with
// the same table state and inputs always return the same group.
func (t *Table) Route(sg string, timePartition int64) (ReplicaGroup, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.nodes) < t.r || t.r <= 0 {
		return ReplicaGroup{}, ErrNotEnoughNodes
	}

	slot := t.slotFor(sg, timePartition)
	owner := t.slotOwner[slot]
	return t.replicaGroupLocked(owner), nil
}

// AllGroups returns one replica group per registered node, that node acting
// as header. Used to broadcast global data plans (e.g. deletions) to every
// group in the ring.
func (t *Table) AllGroups() []ReplicaGroup {
	t.mu.RLock()
	defer t.mu.RUnlock()

	groups := make([]ReplicaGroup, 0, len(t.ordered))
	for _, id := range t.ordered {
		groups = append(groups, t.replicaGroupLocked(id))
	}
	return groups
}

// replicaGroupLocked returns owner plus its R-1 successors on the
// identifier-ordered node ring. Caller must hold t.mu.
func (t *Table) replicaGroupLocked(owner uint32) ReplicaGroup {
	pos := sort.Search(len(t.ordered), func(i int) bool { return t.ordered[i] >= owner })
	nodes := make([]Node, 0, t.r)
	for i := 0; i < t.r && i < len(t.ordered); i++ {
		idx := (pos + i) % len(t.ordered)
		nodes = append(nodes, t.nodes[t.ordered[idx]])
	}
	return ReplicaGroup{Nodes: nodes}
}

func (t *Table) rebuildOrderedLocked() {
	t.ordered = t.ordered[:0]
	for id := range t.nodes {
		t.ordered = append(t.ordered, id)
	}
	sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i] < t.ordered[j] })
}

func (t *Table) rebuildSlotOwnersLocked() []SlotMove {
	var moves []SlotMove
	for s := 0; s < t.slots; s++ {
		owner := t.ring.Get(strconv.Itoa(s))
		var id uint32
		if owner != "" {
			v, _ := strconv.ParseUint(owner, 10, 32)
			id = uint32(v)
		}
		if t.slotOwner[s] != id {
			moves = append(moves, SlotMove{Slot: s, PreviousOwner: t.slotOwner[s], NewOwner: id})
			t.slotOwner[s] = id
		}
	}
	return moves
}

// AddNode registers n, reassigns roughly SlotCount/N slots from existing
// owners to it via the consistent-hash ring (a deterministic rule: every
// replica computes the identical reassignment from the identical inputs),
// and returns the slots that moved.
func (t *Table) AddNode(n Node) (NodeAdditionResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.nodes[n.ID]; ok {
		return NodeAdditionResult{}, ErrNodeExists
	}

	t.nodes[n.ID] = n
	t.ring.Add(n.key())
	t.rebuildOrderedLocked()
	moves := t.rebuildSlotOwnersLocked()

	return NodeAdditionResult{Moved: moves}, nil
}

// RemoveNode unregisters id and redistributes its slots to the remaining
// nodes via the same deterministic rule.
func (t *Table) RemoveNode(id uint32) (NodeRemovalResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return NodeRemovalResult{}, ErrNodeNotFound
	}
	if len(t.nodes)-1 < t.r {
		return NodeRemovalResult{}, ErrWouldUnderflow
	}

	delete(t.nodes, id)
	t.ring.Remove(n.key())
	t.rebuildOrderedLocked()
	moves := t.rebuildSlotOwnersLocked()

	return NodeRemovalResult{Moved: moves}, nil
}

// Serialize renders the table as (version, salt, R, slotCount, node-list,
// slot-owner array), a form that Deserialize reconstructs bit-for-bit.
func (t *Table) Serialize() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()

	nodes := make([]Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	buf := make([]byte, 0, 32+len(nodes)*24+t.slots*4)
	buf = numberenc.MarshalUint32Append(buf, tableVersion)
	buf = numberenc.MarshalUint32Append(buf, t.salt)
	buf = numberenc.MarshalUint32Append(buf, uint32(t.r))
	buf = numberenc.MarshalUint32Append(buf, uint32(t.slots))
	buf = numberenc.MarshalUint32Append(buf, uint32(len(nodes)))
	for _, n := range nodes {
		buf = numberenc.MarshalUint32Append(buf, n.ID)
		buf = numberenc.MarshalStringAppend(buf, n.Host)
		buf = numberenc.MarshalUint32Append(buf, uint32(n.MetaPort))
		buf = numberenc.MarshalUint32Append(buf, uint32(n.DataPort))
		buf = numberenc.MarshalUint32Append(buf, uint32(n.ClientPort))
	}
	for _, owner := range t.slotOwner {
		buf = numberenc.MarshalUint32Append(buf, owner)
	}
	return buf
}

// Deserialize replaces t's contents with the table encoded in b.
func (t *Table) Deserialize(b []byte) error {
	read32 := func() (uint32, error) {
		if len(b) < 4 {
			return 0, ErrCorruptTable
		}
		v := numberenc.UnmarshalUint32(b)
		b = b[4:]
		return v, nil
	}

	version, err := read32()
	if err != nil || version != tableVersion {
		return ErrCorruptTable
	}
	salt, err := read32()
	if err != nil {
		return err
	}
	r, err := read32()
	if err != nil {
		return err
	}
	slots, err := read32()
	if err != nil {
		return err
	}
	nodeCount, err := read32()
	if err != nil {
		return err
	}

	nodes := make(map[uint32]Node, nodeCount)
	for i := uint32(0); i < nodeCount; i++ {
		id, err := read32()
		if err != nil {
			return err
		}
		host, rest, err := numberenc.UnmarshalString(b)
		if err != nil {
			return err
		}
		b = rest
		metaPort, err := read32()
		if err != nil {
			return err
		}
		dataPort, err := read32()
		if err != nil {
			return err
		}
		clientPort, err := read32()
		if err != nil {
			return err
		}
		nodes[id] = Node{ID: id, Host: host, MetaPort: int(metaPort), DataPort: int(dataPort), ClientPort: int(clientPort)}
	}

	slotOwner := make([]uint32, slots)
	for i := range slotOwner {
		v, err := read32()
		if err != nil {
			return err
		}
		slotOwner[i] = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.salt = salt
	t.r = int(r)
	t.slots = int(slots)
	t.nodes = nodes
	t.ring = consistenthash.New(virtualReplicas, slotHash)
	for _, n := range nodes {
		t.ring.Add(n.key())
	}
	t.rebuildOrderedLocked()
	t.slotOwner = slotOwner
	return nil
}
