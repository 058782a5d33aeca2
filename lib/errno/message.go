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

type Message struct {
	format string
	level  Level
	module Module
}

func newMessage(format string, module Module, level Level) *Message {
	return &Message{format: format, level: level, module: module}
}

func newNoticeMessage(format string, module Module) *Message {
	return newMessage(format, module, LevelNotice)
}

func newWarnMessage(format string, module Module) *Message {
	return newMessage(format, module, LevelWarn)
}

func newFatalMessage(format string, module Module) *Message {
	return newMessage(format, module, LevelFatal)
}

var unknownMessage = newNoticeMessage("unknown error", ModuleUnknown)

// When an error message is initialized, the level and module corresponding to
// the error code are bound. If the module to which the error code belongs
// cannot be determined during initialization, set to ModuleUnknown.
var messageMap = map[Errno]*Message{
	// common
	InternalError:      newWarnMessage("%v", ModuleUnknown),
	InvalidDataType:    newWarnMessage("invalid data type, exp: %s, got: %s", ModuleUnknown),
	RecoverPanic:       newFatalMessage("runtime panic: %v", ModuleUnknown),
	UnknownMessageType: newFatalMessage("unknown message type: %v", ModuleUnknown),
	InvalidBufferSize:  newWarnMessage("invalid buffer size, excepted %d; actual %d", ModuleUnknown),
	ShortBufferSize:    newWarnMessage("invalid buffer size, expected greater than %d; actual %d", ModuleUnknown),
	ShortWrite:         newWarnMessage("short write. succeeded in writing %d bytes, but expected %d bytes", ModuleUnknown),
	ShortRead:          newWarnMessage("short read. succeeded in reading %d bytes, but expected %d bytes", ModuleUnknown),

	// network / rpc transport
	NoConnectionAvailable: newFatalMessage("no connections available, node: %v, %v", ModuleNetwork),
	NoNodeAvailable:       newFatalMessage("no node available, node: %v", ModuleNetwork),
	InvalidHeaderSize:     newFatalMessage("expect read header with length %d, but %d", ModuleNetwork),
	InvalidHeader:         newFatalMessage("invalid version(%d), type(%d) of header", ModuleNetwork),
	InvalidDataSize:       newFatalMessage("expect write with data length %d, but %d", ModuleNetwork),
	ConnectionClosed:      newWarnMessage("connection closed", ModuleNetwork),
	InvalidAddress:        newNoticeMessage("invalid address: %s", ModuleNetwork),
	RemoteError:           newWarnMessage("remote error: %v", ModuleNetwork),
	DialTimeout:           newWarnMessage("dial %s timed out", ModuleNetwork),

	// meta / raft
	MetaIsNotLeader:           newWarnMessage("node is not the leader", ModuleMetaRaft),
	RaftIsNotOpen:             newWarnMessage("raft is not open", ModuleMetaRaft),
	RaftApplyTimeout:          newWarnMessage("raft apply timed out after %s", ModuleMetaRaft),
	RaftApplyLeadershipLost:   newWarnMessage("leadership lost while applying log entry", ModuleMetaRaft),
	NodeIdentifierConflict:    newNoticeMessage("node identifier %d already registered", ModuleMetaRaft),
	NodeAlreadyExists:         newNoticeMessage("node %v already a cluster member", ModuleMetaRaft),
	NodeNotFound:              newWarnMessage("node %d not found", ModuleMetaRaft),
	StartUpStatusMismatch:     newNoticeMessage("start-up status mismatch: %s", ModuleMetaRaft),
	ClusterTooSmall:           newWarnMessage("cluster has %d nodes, removing would drop below replication factor %d", ModuleMetaRaft),
	QuorumTimeout:             newWarnMessage("quorum not reached within %s", ModuleMetaRaft),
	PartitionTableUnavailable: newNoticeMessage("partition table not yet available", ModuleMetaRaft),
	JoinRetryExhausted:        newWarnMessage("join cluster: exhausted %d retries", ModuleMetaRaft),

	// partition table / router
	SlotOwnerNotFound:                newWarnMessage("slot %d has no owner", ModulePartition),
	InsufficientNodesForReplication:  newWarnMessage("%d nodes available, need at least %d for replication factor", ModulePartition),
	StorageGroupNotSet:               newNoticeMessage("storage group %s not set locally", ModulePartition),
	InvalidPartitionTableVersion:     newWarnMessage("unsupported partition table wire version %d", ModulePartition),
	PartitionTableSerializeFailed:    newWarnMessage("serialize partition table: %v", ModulePartition),
	PartitionTableDeserializeFailed:  newWarnMessage("deserialize partition table: %v", ModulePartition),

	// remote metadata cache
	SchemaNotFoundLocally: newNoticeMessage("schema for %s not cached locally", ModuleMetaClient),
	SchemaPullFailed:      newWarnMessage("pull schema for %s: %v", ModuleMetaClient),

	// compaction
	ProcessCompactLogFailed:    newFatalMessage("process compaction log failed, dir=%s, err=%s", ModuleCompact),
	RecoverFileFailed:          newFatalMessage("recover file failed, shardDir %s", ModuleCompact),
	CompactionLogCorrupted:     newWarnMessage("compaction log %s corrupted: %v", ModuleCompact),
	CompactionLogMissingTarget: newNoticeMessage("compaction log %s references missing target %s", ModuleCompact),
	WriteFileFailed:            newFatalMessage("compaction write file failed", ModuleCompact),
	RemoveFileFailed:           newFatalMessage("compaction remove file failed", ModuleCompact),
	RenameFileFailed:           newFatalMessage("compaction rename file failed", ModuleCompact),
	CreateFileFailed:           newFatalMessage("compaction create file failed", ModuleCompact),
	ReadFileFailed:             newFatalMessage("compaction read file failed", ModuleCompact),
	OpenFileFailed:             newFatalMessage("compaction open file failed", ModuleCompact),
	CloseFileFailed:            newFatalMessage("compaction close file failed", ModuleCompact),
	CompactPanicFail:           newFatalMessage("compaction task panicked: %v", ModuleCompact),
	NoCompactionCandidates:     newNoticeMessage("no compaction candidates for storage group %s", ModuleCompact),
}
