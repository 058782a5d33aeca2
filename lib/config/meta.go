// Copyright 2022 Huawei Cloud Computing Technologies Co., Ltd.
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

package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	"github.com/influxdata/influxdb/toml"
)

const (
	DefaultDir              = "meta"
	DefaultRaftFileName     = "raft"
	DefaultMetaBindAddress  = "127.0.0.1:8088"
	DefaultRPCBindAddress   = "127.0.0.1:8092"
	DefaultHTTPBindAddress  = "127.0.0.1:8091"

	DefaultCommitTimeout      = 50 * time.Millisecond
	DefaultLeaderLeaseTimeout = 500 * time.Millisecond
	DefaultElectionTimeout    = 1000 * time.Millisecond
	DefaultHeartbeatTimeout   = 1000 * time.Millisecond

	// DefaultSlotCount is the number of virtual slots the partition table
	// hashes (storage-group, time-partition) pairs into.
	DefaultSlotCount = 1024

	DefaultReplicationNum  = 3
	DefaultPartitionInterval = toml.Duration(7 * 24 * time.Hour)

	DefaultJoinRetry     = 10
	DefaultJoinRetryWait = 5 * time.Second

	DefaultRemoteSchemaCacheSize = 100000
	DefaultStorageGroupLevel     = 1
)

var DefaultMetaJoin = []string{"127.0.0.1:8092"}

// ClusterNode is the top-level configuration format shared by the ts-meta
// and ts-store binaries: each embeds the sections it needs and leaves the
// rest at their defaults.
type ClusterNode struct {
	Common     *Common    `toml:"common"`
	Meta       *Meta      `toml:"meta"`
	Store      *Store     `toml:"store"`
	Compaction Compaction `toml:"compaction"`
	Logging    Logger     `toml:"logging"`
}

func NewClusterNode(app App) *ClusterNode {
	return &ClusterNode{
		Common:     NewCommon(),
		Meta:       NewMeta(),
		Store:      NewStore(),
		Compaction: NewCompaction(),
		Logging:    NewLogger(app),
	}
}

func (c *ClusterNode) Validate() error {
	items := []Validator{c.Common, c.Meta, c.Store, c.Compaction, c.Logging}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *ClusterNode) GetLogging() *Logger { return &c.Logging }

func (c *ClusterNode) GetCommon() *Common { return c.Common }

// Meta is the "[meta]" config section: everything StartUpStatus (spec.md
// §3) must agree on cluster-wide, plus the local bind addresses.
type Meta struct {
	Dir             string   `toml:"dir"`
	HTTPBindAddress string   `toml:"http-bind-address"`
	RPCBindAddress  string   `toml:"rpc-bind-address"`
	BindAddress     string   `toml:"bind-address"`
	JoinPeers       []string `toml:"join-peers"`

	// StartUpStatus fields: must be bit-for-bit identical across the
	// cluster, checked field-by-field at join time (spec.md §3, §4.3.1).
	HashSalt          string        `toml:"hash-salt"`
	ReplicationNum    int           `toml:"replication-num"`
	PartitionInterval toml.Duration `toml:"partition-interval"`
	ClusterName       string        `toml:"cluster-name"`

	ElectionTimeout    toml.Duration `toml:"election-timeout"`
	HeartbeatTimeout   toml.Duration `toml:"heartbeat-timeout"`
	LeaderLeaseTimeout toml.Duration `toml:"leader-lease-timeout"`
	CommitTimeout      toml.Duration `toml:"commit-timeout"`

	SlotCount int `toml:"slot-count"`

	EnableAutoCreateSchema bool   `toml:"enable-auto-create-schema"`
	DefaultStorageGroupLevel int  `toml:"default-storage-group-level"`
	RemoteSchemaCacheSize    int  `toml:"remote-schema-cache-size"`

	ReadOperationTimeout  toml.Duration `toml:"read-operation-timeout"`
	WriteOperationTimeout toml.Duration `toml:"write-operation-timeout"`
}

func NewMeta() *Meta {
	return &Meta{
		Dir:                    DefaultDir,
		HTTPBindAddress:        DefaultHTTPBindAddress,
		RPCBindAddress:         DefaultRPCBindAddress,
		BindAddress:            DefaultMetaBindAddress,
		JoinPeers:              []string{},
		ReplicationNum:         DefaultReplicationNum,
		PartitionInterval:      DefaultPartitionInterval,
		ElectionTimeout:        toml.Duration(DefaultElectionTimeout),
		HeartbeatTimeout:       toml.Duration(DefaultHeartbeatTimeout),
		LeaderLeaseTimeout:     toml.Duration(DefaultLeaderLeaseTimeout),
		CommitTimeout:          toml.Duration(DefaultCommitTimeout),
		SlotCount:              DefaultSlotCount,
		EnableAutoCreateSchema: true,
		DefaultStorageGroupLevel: DefaultStorageGroupLevel,
		RemoteSchemaCacheSize:    DefaultRemoteSchemaCacheSize,
		ReadOperationTimeout:     toml.Duration(30 * time.Second),
		WriteOperationTimeout:    toml.Duration(30 * time.Second),
	}
}

func (c *Meta) Validate() error {
	svItems := []stringValidatorItem{
		{"meta dir", c.Dir},
		{"meta http-bind-address", c.HTTPBindAddress},
		{"meta rpc-bind-address", c.RPCBindAddress},
		{"meta bind-address", c.BindAddress},
		{"meta cluster-name", c.ClusterName},
	}
	if err := (stringValidator{}).Validate(svItems); err != nil {
		return err
	}
	if c.ReplicationNum <= 0 {
		return fmt.Errorf("meta replication-num must be greater than 0, got: %d", c.ReplicationNum)
	}
	if c.SlotCount <= 0 {
		return fmt.Errorf("meta slot-count must be greater than 0, got: %d", c.SlotCount)
	}
	return nil
}

func (c *Meta) BuildRaft(logging Logger) *raft.Config {
	conf := raft.DefaultConfig()
	conf.LogOutput = logging.NewLumberjackLogger(DefaultRaftFileName)
	conf.HeartbeatTimeout = time.Duration(c.HeartbeatTimeout)
	conf.ElectionTimeout = time.Duration(c.ElectionTimeout)
	conf.LeaderLeaseTimeout = time.Duration(c.LeaderLeaseTimeout)
	conf.CommitTimeout = time.Duration(c.CommitTimeout)
	conf.ShutdownOnRemove = false
	return conf
}

func (c *Meta) Dirname() string {
	return filepath.Join(openGeminiDir(), c.Dir)
}

// CombineDomain returns addr unchanged. The teacher uses this hook to
// rewrite the host part of a bind address to a stable TLS SNI domain;
// certificates are outside this spec's scope, so it is the identity here.
func (c *Meta) CombineDomain(addr string) string {
	return addr
}
