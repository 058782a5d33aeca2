/*
Copyright 2022 Huawei Cloud Computing Technologies Co., Ltd.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

 http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package errno

// common
const (
	InternalError Errno = iota + 1
	InvalidDataType
	RecoverPanic
	UnknownMessageType
	InvalidBufferSize
	ShortBufferSize
	ShortWrite
	ShortRead
	BuiltInError
	ThirdPartyError
)

// network / rpc transport
const (
	NoConnectionAvailable Errno = iota + 100
	NoNodeAvailable
	InvalidHeaderSize
	InvalidHeader
	InvalidDataSize
	ConnectionClosed
	InvalidAddress
	RemoteError
	DialTimeout
)

// meta / raft
const (
	MetaIsNotLeader Errno = iota + 200
	RaftIsNotOpen
	RaftApplyTimeout
	RaftApplyLeadershipLost
	NodeIdentifierConflict
	NodeAlreadyExists
	NodeNotFound
	StartUpStatusMismatch
	ClusterTooSmall
	QuorumTimeout
	PartitionTableUnavailable
	JoinRetryExhausted
)

// partition table / router
const (
	SlotOwnerNotFound Errno = iota + 300
	InsufficientNodesForReplication
	StorageGroupNotSet
	InvalidPartitionTableVersion
	PartitionTableSerializeFailed
	PartitionTableDeserializeFailed
)

// remote metadata cache
const (
	SchemaNotFoundLocally Errno = iota + 400
	SchemaPullFailed
)

// compaction
const (
	ProcessCompactLogFailed Errno = iota + 500
	RecoverFileFailed
	CompactionLogCorrupted
	CompactionLogMissingTarget
	WriteFileFailed
	RemoveFileFailed
	RenameFileFailed
	CreateFileFailed
	ReadFileFailed
	OpenFileFailed
	CloseFileFailed
	CompactPanicFail
	NoCompactionCandidates
)
