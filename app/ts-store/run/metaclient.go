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

package run

import (
	"math/rand"
	"net"
	"strconv"
	"time"

	"github.com/chronogrid/chronogrid/lib/config"
	"github.com/chronogrid/chronogrid/lib/errno"
	"github.com/chronogrid/chronogrid/metacache"
	"github.com/chronogrid/chronogrid/partition"
	"github.com/chronogrid/chronogrid/rpc"
)

// MetaClient is a ts-store node's link to the meta group: it registers this
// node in the partition table at startup and, once registered, answers
// RemoteMetaCache's local-miss lookups by acting as both
// metacache.Coordinator and metacache.SchemaFetcher (spec.md §4.4, §4.8).
// It speaks the same rpc wire protocol the meta-group members speak to each
// other, dialing a configured meta seed directly rather than through
// meta.Store - a store node is never a raft member, so it has no use for
// that package's membership/consensus machinery, only the wire format.
type MetaClient struct {
	seeds       []string
	dialTimeout time.Duration
}

// NewMetaClient builds a client that joins through one of seeds, the
// cluster's common.meta-join addresses.
func NewMetaClient(seeds []string) *MetaClient {
	return &MetaClient{seeds: seeds, dialTimeout: 5 * time.Second}
}

// Join registers self with a randomly chosen seed, retrying against a
// freshly chosen random seed (which may be the same one) on a dial failure
// or a transient verdict, and returns the
// partition table the leader agreed self into. regenerate produces a fresh
// identifier on an IDENTIFIER_CONFLICT verdict, mirroring
// meta.Store.JoinCluster's own retry shape.
func (c *MetaClient) Join(self partition.Node, status rpc.StartUpStatusWire, regenerate func() uint32) (*partition.Table, error) {
	if len(c.seeds) == 0 {
		return nil, errno.NewError(errno.ClusterTooSmall)
	}

	var lastErr error
	for attempt := 0; attempt < config.DefaultJoinRetry; attempt++ {
		seed := c.seeds[rand.Intn(len(c.seeds))] //nolint:gosec
		resp, err := c.sendAddNode(seed, self, status)
		if err != nil {
			lastErr = err
			time.Sleep(config.DefaultJoinRetryWait)
			continue
		}

		switch resp.Code {
		case rpc.RespAgree:
			table := partition.New(0, 0, 0)
			if err := table.Deserialize(resp.PartitionTableBytes); err != nil {
				return nil, err
			}
			return table, nil
		case rpc.RespIdentifierConflict:
			self.ID = regenerate()
			continue
		case rpc.RespParameterConflict:
			return nil, errno.NewError(errno.StartUpStatusMismatch)
		default:
			time.Sleep(config.DefaultJoinRetryWait)
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errno.NewError(errno.JoinRetryExhausted)
}

func (c *MetaClient) sendAddNode(addr string, self partition.Node, status rpc.StartUpStatusWire) (rpc.AddNodeResponse, error) {
	conn, err := net.DialTimeout("tcp", addr, c.dialTimeout)
	if err != nil {
		return rpc.AddNodeResponse{}, err
	}
	defer conn.Close()

	req := rpc.AddNodeRequest{
		NodeID:     self.ID,
		Host:       self.Host,
		MetaPort:   self.MetaPort,
		DataPort:   self.DataPort,
		ClientPort: self.ClientPort,
		Status:     status,
	}
	if err := rpc.WriteMessage(conn, rpc.KindAddNodeRequest, req); err != nil {
		return rpc.AddNodeResponse{}, err
	}
	var resp rpc.AddNodeResponse
	if _, err := rpc.ReadMessage(conn, &resp); err != nil {
		return rpc.AddNodeResponse{}, err
	}
	return resp, nil
}

// OrderedNodes implements metacache.Coordinator. This node observes no
// per-peer latency yet, so group's nodes are tried header-first, in the
// order the partition table already ranks them.
func (c *MetaClient) OrderedNodes(group partition.ReplicaGroup) []partition.Node {
	return group.Nodes
}

// PullSchema implements metacache.SchemaFetcher: dial node's own store RPC
// listener (its DataPort) and ask for every path under prefixPaths.
func (c *MetaClient) PullSchema(node partition.Node, prefixPaths []string) (map[string]metacache.Entry, error) {
	addr := net.JoinHostPort(node.Host, strconv.Itoa(node.DataPort))
	conn, err := net.DialTimeout("tcp", addr, c.dialTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := rpc.WriteMessage(conn, rpc.KindPullSchemaRequest, rpc.PullSchemaRequestBody{PrefixPaths: prefixPaths}); err != nil {
		return nil, err
	}
	var resp rpc.PullSchemaResponse
	if _, err := rpc.ReadMessage(conn, &resp); err != nil {
		return nil, err
	}
	if len(resp.SchemaBytes) == 0 {
		return nil, nil
	}
	var entries map[string]metacache.Entry
	if err := rpc.Decode(resp.SchemaBytes, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
