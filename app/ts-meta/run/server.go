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

// Package run wires meta.Store into a standalone ts-meta process: the
// app-level RPC listener peers dial for AddNode/RemoveNode/Heartbeat/
// AppendEntry/CheckAlive/CheckStatus/Exile, the raft transport listener,
// and the gorilla/mux report server.
package run

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/chronogrid/chronogrid/app"
	"github.com/chronogrid/chronogrid/app/ts-meta/meta"
	"github.com/chronogrid/chronogrid/lib/config"
	"github.com/chronogrid/chronogrid/lib/errno"
	"github.com/chronogrid/chronogrid/lib/logger"
	"github.com/chronogrid/chronogrid/partition"
	"github.com/chronogrid/chronogrid/rpc"
)

// Server runs the meta control plane: meta.Store plus the two listeners
// (raft transport, app-level RPC) and the report server that front it.
type Server struct {
	config *config.ClusterNode
	info   app.ServerInfo
	logger *logger.Logger

	store *meta.Store
	self  partition.Node

	raftLn net.Listener
	rpcLn  net.Listener
	report *app.ReportServer

	errCh  chan error
	wg     sync.WaitGroup
	closed chan struct{}
}

// NewServer builds the ts-meta Server from conf, which must be a
// *config.ClusterNode with its [meta] section populated.
func NewServer(conf config.Config, info app.ServerInfo, log *logger.Logger) (app.Server, error) {
	c, ok := conf.(*config.ClusterNode)
	if !ok || c.Meta == nil {
		return nil, fmt.Errorf("ts-meta requires a [meta] configuration section")
	}

	store := meta.NewStore(c.Meta)
	store.SetLogging(c.Logging)

	return &Server{
		config: c,
		info:   info,
		logger: log,
		store:  store,
		errCh:  make(chan error, 1),
		closed: make(chan struct{}),
	}, nil
}

// NewCommand builds the ts-meta *app.Command. enableGossip is accepted for
// signature symmetry with ts-store's constructor; this spec's membership is
// raft-only, so it has no effect here.
func NewCommand(info app.ServerInfo, enableGossip bool) *app.Command {
	cmd := app.NewCommand()
	cmd.Info = info
	cmd.Logo = app.METALOGO
	cmd.Version = info.FullVersion()
	cmd.Usage = fmt.Sprintf(app.RunUsage, info.App, info.App)
	cmd.Config = config.NewClusterNode(info.App)
	cmd.NewServerFunc = NewServer
	return cmd
}

func (s *Server) Open() error {
	app.LogStarting("ts-meta", &s.info)

	mc := s.config.Meta
	s.self = partition.Node{ID: localNodeID(mc.BindAddress), Host: hostOf(mc.BindAddress)}
	if port, err := portOf(mc.BindAddress); err == nil {
		s.self.MetaPort = port
	}

	rpcLn, err := net.Listen("tcp", mc.BindAddress)
	if err != nil {
		return fmt.Errorf("listen rpc: %w", err)
	}
	s.rpcLn = rpcLn
	s.wg.Add(1)
	go s.serveRPC()

	raftLn, err := net.Listen("tcp", mc.RPCBindAddress)
	if err != nil {
		return fmt.Errorf("listen raft: %w", err)
	}
	s.raftLn = raftLn
	if err := s.store.Open(raftLn, mc.JoinPeers); err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	if s.isSeed() {
		if err := s.store.BuildCluster(s.self, s.checkStatus); err != nil {
			return fmt.Errorf("build cluster: %w", err)
		}
	} else {
		if err := s.store.JoinCluster(s.self, s.sendAddNode, regenerateID); err != nil {
			return fmt.Errorf("join cluster: %w", err)
		}
	}

	if s.config.Common.ReportEnable {
		s.report = app.NewReportServer(mc.HTTPBindAddress, s, s.logger)
		if err := s.report.Open(); err != nil {
			return fmt.Errorf("open report server: %w", err)
		}
	}

	return nil
}

func (s *Server) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
		close(s.closed)
	}

	if s.rpcLn != nil {
		_ = s.rpcLn.Close()
	}
	if s.report != nil {
		_ = s.report.Close()
	}
	err := s.store.Close()
	s.wg.Wait()
	return err
}

func (s *Server) Err() <-chan error { return s.errCh }

// Status implements app.StatusReporter.
func (s *Server) Status() map[string]interface{} {
	return map[string]interface{}{
		"leader":    s.store.Leader(),
		"isLeader":  s.store.IsLeader(),
		"term":      s.store.Term(),
		"nodeCount": s.store.NodeCount(),
		"self":      s.self,
	}
}

// Partitions implements app.StatusReporter.
func (s *Server) Partitions() []byte { return s.store.SerializedTable() }

// isSeed mirrors the raft bootstrap criterion raft_wrapper.go's bootFirst
// applies to raft's own peer set: the first configured join peer
// bootstraps the cluster, every other node joins it.
func (s *Server) isSeed() bool {
	peers := s.config.Meta.JoinPeers
	if len(peers) == 0 {
		return true
	}
	return s.config.Meta.CombineDomain(s.config.Meta.RPCBindAddress) == peers[0]
}

func (s *Server) serveRPC() {
	defer s.wg.Done()
	for {
		conn, err := s.rpcLn.Accept()
		if err != nil {
			select {
			case <-s.closed:
			default:
				s.errCh <- err
			}
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	for {
		kind, payload, err := rpc.ReadFrame(conn)
		if err != nil {
			if err != io.EOF {
				s.logger.Error("rpc read failed", zap.Error(err))
			}
			return
		}
		if err := s.dispatch(conn, kind, payload); err != nil {
			s.logger.Error("rpc dispatch failed", zap.Uint8("kind", uint8(kind)), zap.Error(err))
			return
		}
	}
}

func (s *Server) dispatch(conn net.Conn, kind rpc.Kind, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.config.Meta.WriteOperationTimeout))
	defer cancel()

	switch kind {
	case rpc.KindAddNodeRequest:
		var req rpc.AddNodeRequest
		if err := rpc.Decode(payload, &req); err != nil {
			return err
		}
		resp := s.store.HandleAddNode(ctx, addNodeRequestFromWire(req), rpcAcker{})
		return rpc.WriteMessage(conn, rpc.KindAddNodeResponse, addNodeResponseToWire(resp))

	case rpc.KindRemoveNodeRequest:
		var req rpc.RemoveNodeRequest
		if err := rpc.Decode(payload, &req); err != nil {
			return err
		}
		code := rpc.RespAgree
		if err := s.store.HandleRemoveNode(ctx, req.NodeID, rpcAcker{}); err != nil {
			code = rpc.RespReject
		}
		return rpc.WriteMessage(conn, rpc.KindRemoveNodeResponse, rpc.RemoveNodeResponse{Code: code})

	case rpc.KindAppendEntryRequest:
		var req rpc.AppendEntryRequest
		if err := rpc.Decode(payload, &req); err != nil {
			return err
		}
		accepted := s.store.ApplyReplicatedEntry(req.Entry) == nil
		return rpc.WriteMessage(conn, rpc.KindAppendEntryResponse, rpc.AppendEntryResponse{Term: s.store.Term(), Accepted: accepted})

	case rpc.KindCheckStatusRequest:
		var req rpc.CheckStatusRequest
		if err := rpc.Decode(payload, &req); err != nil {
			return err
		}
		return rpc.WriteMessage(conn, rpc.KindCheckStatusResponse, rpc.CheckStatusResponse{Status: startUpStatusToWire(s.store.LocalStartUpStatus())})

	case rpc.KindCheckAliveRequest:
		return rpc.WriteFrame(conn, rpc.KindCheckAliveResponse, nil)

	case rpc.KindHeartbeatRequest:
		var req rpc.HeartbeatRequest
		if err := rpc.Decode(payload, &req); err != nil {
			return err
		}
		return rpc.WriteMessage(conn, rpc.KindHeartbeatResponse, rpc.HeartbeatResponse{Term: s.store.Term()})

	case rpc.KindExile:
		var notice rpc.ExileNotice
		if err := rpc.Decode(payload, &notice); err != nil {
			return err
		}
		s.logger.Warn("exiled by cluster leader", zap.String("reason", notice.Reason))
		return nil

	default:
		return fmt.Errorf("unhandled rpc kind %d", kind)
	}
}

// appAddr translates a JoinPeers entry - configured as the seed's raft
// transport address, the convention raft_wrapper.go's bootFirst also
// assumes - into that seed's app-level RPC address. Meta nodes in a
// cluster are deployed homogeneously, so swapping in this node's own
// BindAddress port is enough; there is no separate discovery step.
func (s *Server) appAddr(seed string) string {
	host, _, err := net.SplitHostPort(seed)
	if err != nil {
		return seed
	}
	_, port, err := net.SplitHostPort(s.config.Meta.BindAddress)
	if err != nil {
		return seed
	}
	return net.JoinHostPort(host, port)
}

// checkStatus is meta.Store.BuildCluster's checker argument: dial seed's
// app-level RPC listener, present this node's status, and return the
// seed's own.
func (s *Server) checkStatus(seed string, local meta.StartUpStatus) (meta.StartUpStatus, error) {
	conn, err := net.DialTimeout("tcp", s.appAddr(seed), 5*time.Second)
	if err != nil {
		return meta.StartUpStatus{}, err
	}
	defer conn.Close()

	if err := rpc.WriteMessage(conn, rpc.KindCheckStatusRequest, rpc.CheckStatusRequest{Status: startUpStatusToWire(local)}); err != nil {
		return meta.StartUpStatus{}, err
	}
	var resp rpc.CheckStatusResponse
	if _, err := rpc.ReadMessage(conn, &resp); err != nil {
		return meta.StartUpStatus{}, err
	}
	return startUpStatusFromWire(resp.Status), nil
}

// sendAddNode is meta.Store.JoinCluster's send argument: dial seed and
// present this node's AddNodeRequest.
func (s *Server) sendAddNode(seed string, req meta.AddNodeRequest) (meta.AddNodeResponse, error) {
	conn, err := net.DialTimeout("tcp", s.appAddr(seed), 5*time.Second)
	if err != nil {
		return meta.AddNodeResponse{}, err
	}
	defer conn.Close()

	wireReq := rpc.AddNodeRequest{
		NodeID:     req.Node.ID,
		Host:       req.Node.Host,
		MetaPort:   req.Node.MetaPort,
		DataPort:   req.Node.DataPort,
		ClientPort: req.Node.ClientPort,
		Status:     startUpStatusToWire(req.Status),
	}
	if err := rpc.WriteMessage(conn, rpc.KindAddNodeRequest, wireReq); err != nil {
		return meta.AddNodeResponse{}, err
	}
	var resp rpc.AddNodeResponse
	if _, err := rpc.ReadMessage(conn, &resp); err != nil {
		return meta.AddNodeResponse{}, err
	}
	return meta.AddNodeResponse{
		Result:      joinResultFromCode(resp.Code),
		Table:       resp.PartitionTableBytes,
		Diagnostics: resp.Diagnostics,
	}, nil
}

// rpcAcker implements meta.NodeAcker by replaying a committed entry to a
// peer's app-level RPC listener, used by sendLogToAllGroups' direct
// node-acknowledgement broadcast.
type rpcAcker struct{}

func (rpcAcker) SendEntry(ctx context.Context, node partition.Node, entry []byte) error {
	addr := net.JoinHostPort(node.Host, strconv.Itoa(node.MetaPort))
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if err := rpc.WriteMessage(conn, rpc.KindAppendEntryRequest, rpc.AppendEntryRequest{Entry: entry}); err != nil {
		return err
	}
	var resp rpc.AppendEntryResponse
	if _, err := rpc.ReadMessage(conn, &resp); err != nil {
		return err
	}
	if !resp.Accepted {
		return errno.NewError(errno.MetaIsNotLeader)
	}
	return nil
}

// localNodeID derives a node's identifier from its bind address, so a
// restarted process keeps the same identity it joined with.
func localNodeID(addr string) uint32 {
	return uint32(xxhash.Sum64String(addr))
}

func regenerateID() uint32 {
	return rand.Uint32() //nolint:gosec
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func portOf(addr string) (int, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(port)
}

func startUpStatusToWire(s meta.StartUpStatus) rpc.StartUpStatusWire {
	return rpc.StartUpStatusWire{
		PartitionInterval: s.PartitionInterval,
		HashSalt:          s.HashSalt,
		ReplicationNum:    s.ReplicationNum,
		ClusterName:       s.ClusterName,
		SeedNodes:         s.SeedNodes,
	}
}

func startUpStatusFromWire(w rpc.StartUpStatusWire) meta.StartUpStatus {
	return meta.StartUpStatus{
		PartitionInterval: w.PartitionInterval,
		HashSalt:          w.HashSalt,
		ReplicationNum:    w.ReplicationNum,
		ClusterName:       w.ClusterName,
		SeedNodes:         w.SeedNodes,
	}
}

func addNodeRequestFromWire(req rpc.AddNodeRequest) meta.AddNodeRequest {
	return meta.AddNodeRequest{
		Node: partition.Node{
			ID:         req.NodeID,
			Host:       req.Host,
			MetaPort:   req.MetaPort,
			DataPort:   req.DataPort,
			ClientPort: req.ClientPort,
		},
		Status: startUpStatusFromWire(req.Status),
	}
}

func addNodeResponseToWire(resp meta.AddNodeResponse) rpc.AddNodeResponse {
	return rpc.AddNodeResponse{
		Code:                joinResultToCode(resp.Result),
		PartitionTableBytes: resp.Table,
		Diagnostics:         resp.Diagnostics,
	}
}

func joinResultFromCode(code rpc.RespCode) meta.JoinResult {
	switch code {
	case rpc.RespAgree:
		return meta.JoinAgree
	case rpc.RespIdentifierConflict:
		return meta.JoinIdentifierConflict
	case rpc.RespParameterConflict:
		return meta.JoinParameterConflict
	case rpc.RespPartitionTableUnavailable:
		return meta.JoinNoPartitionTable
	default:
		return meta.JoinNoLeader
	}
}

func joinResultToCode(r meta.JoinResult) rpc.RespCode {
	switch r {
	case meta.JoinAgree:
		return rpc.RespAgree
	case meta.JoinIdentifierConflict:
		return rpc.RespIdentifierConflict
	case meta.JoinParameterConflict:
		return rpc.RespParameterConflict
	case meta.JoinNoPartitionTable:
		return rpc.RespPartitionTableUnavailable
	default:
		return rpc.RespNull
	}
}
