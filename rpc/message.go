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

// Package rpc implements the meta-group wire transport: a length-prefixed
// framing over net.Conn carrying msgpack-encoded request/response bodies,
// and the fixed set of message kinds a MetaGroupMember exchanges with its
// peers (spec.md §6).
package rpc

// Kind tags a frame's payload type.
type Kind uint8

const (
	KindAddNodeRequest Kind = iota + 1
	KindAddNodeResponse
	KindRemoveNodeRequest
	KindRemoveNodeResponse
	KindHeartbeatRequest
	KindHeartbeatResponse
	KindAppendEntryRequest
	KindAppendEntryResponse
	KindPullSchemaRequest
	KindPullSchemaResponse
	KindCheckAliveRequest
	KindCheckAliveResponse
	KindCheckStatusRequest
	KindCheckStatusResponse
	KindExile
)

// RespCode is a join/remove protocol verdict (spec.md §6's response codes).
type RespCode uint8

const (
	RespAgree RespCode = iota
	RespIdentifierConflict
	RespParameterConflict
	RespPartitionTableUnavailable
	RespClusterTooSmall
	RespNull
	RespReject
)

// StatusCode is a plan-execution outcome, mirrored from router.RowStatus/
// router.OverallStatus for wire transport.
type StatusCode uint8

const (
	StatusSuccess StatusCode = iota
	StatusMultipleError
	StatusTimeseriesNotExist
	StatusExecuteStatementError
	StatusInternalServerError
)

// AddNodeRequest is sent by a joining node to a seed.
type AddNodeRequest struct {
	NodeID     uint32
	Host       string
	MetaPort   int
	DataPort   int
	ClientPort int
	Status     StartUpStatusWire
}

// StartUpStatusWire is the wire form of meta.StartUpStatus; kept
// independent of the meta package so rpc has no import cycle back to it.
type StartUpStatusWire struct {
	PartitionInterval int64
	HashSalt          string
	ReplicationNum    int
	ClusterName       string
	SeedNodes         []string
}

// AddNodeResponse is the leader's reply.
type AddNodeResponse struct {
	Code                RespCode
	PartitionTableBytes []byte
	Diagnostics         []string
}

// RemoveNodeRequest asks the leader to remove a node by identifier.
type RemoveNodeRequest struct {
	NodeID uint32
}

// RemoveNodeResponse carries the leader's verdict.
type RemoveNodeResponse struct {
	Code RespCode
}

// HeartbeatRequest is the leader's periodic liveness probe, optionally
// piggybacking the serialized partition table for a blind node (spec.md
// §4.3.5).
type HeartbeatRequest struct {
	Term                uint64
	Leader              string
	LastLogIndex        uint64
	LastLogTerm         uint64
	RequireIdentifier   bool
	PartitionTableBytes []byte
}

// HeartbeatResponse is the follower's reply, optionally carrying its
// identifier (requested when the leader's node map is incomplete) or a
// request for the partition table (when it considers itself blind).
type HeartbeatResponse struct {
	Term                  uint64
	FollowerIdentifier    uint32
	HasFollowerIdentifier bool
	RequirePartitionTable bool
	RegenerateIdentifier  bool
}

// AppendEntryRequest carries one committed raft-log entry outside of raft's
// own transport, used by sendLogToAllGroups' direct node acknowledgement.
type AppendEntryRequest struct {
	Term      uint64
	PrevIndex uint64
	PrevTerm  uint64
	Entry     []byte
}

// AppendEntryResponse acknowledges (or rejects) one AppendEntryRequest.
type AppendEntryResponse struct {
	Term     uint64
	Accepted bool
}

// PullSchemaRequestBody asks a replica group for the schema of every path
// under prefixPaths, on a RemoteMetaCache local miss (spec.md §4.4).
type PullSchemaRequestBody struct {
	Header      string
	PrefixPaths []string
}

// PullSchemaResponse carries the encoded schemas the target group owns.
type PullSchemaResponse struct {
	SchemaBytes []byte
}

// CheckStatusRequest carries the caller's StartUpStatus for agreement
// checking (spec.md §4.3.1).
type CheckStatusRequest struct {
	Status StartUpStatusWire
}

// CheckStatusResponse echoes the responder's own StartUpStatus so the
// caller can diff it locally.
type CheckStatusResponse struct {
	Status StartUpStatusWire
}

// ExileNotice is the one-way message a leader sends a node it has just
// removed from the cluster.
type ExileNotice struct {
	Reason string
}
