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

// Package run wires the storage compaction engine into a standalone
// ts-store process: local partition discovery and crash recovery, the
// admission-gated compaction.Scheduler, the app-level RPC listener peers
// dial for PullSchemaRequest/CheckAliveRequest, a MetaClient that joins
// this node into the meta group's partition table, and the gorilla/mux
// report server (spec.md §4.4, §4.7, §4.8).
package run

import (
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
	"github.com/chronogrid/chronogrid/compaction"
	"github.com/chronogrid/chronogrid/lib/config"
	"github.com/chronogrid/chronogrid/lib/logger"
	"github.com/chronogrid/chronogrid/metacache"
	"github.com/chronogrid/chronogrid/partition"
	"github.com/chronogrid/chronogrid/rpc"
)

// Server runs the storage compaction engine: a local compaction.Scheduler
// over the partitions found on disk, a MetaClient link to the meta group,
// and the RPC/report listeners that front them.
type Server struct {
	config *config.ClusterNode
	info   app.ServerInfo
	logger *logger.Logger

	self       partition.Node
	metaClient *MetaClient
	table      *partition.Table
	tableMu    sync.RWMutex

	cache  *metacache.Cache
	puller *metacache.Puller

	submitter *localSubmitter
	scheduler *compaction.Scheduler
	ticker    *time.Ticker

	rpcLn  net.Listener
	report *app.ReportServer

	errCh  chan error
	wg     sync.WaitGroup
	closed chan struct{}
}

// NewServer builds the ts-store Server from conf, which must be a
// *config.ClusterNode with its [store] section populated.
func NewServer(conf config.Config, info app.ServerInfo, log *logger.Logger) (app.Server, error) {
	c, ok := conf.(*config.ClusterNode)
	if !ok || c.Store == nil {
		return nil, fmt.Errorf("ts-store requires a [store] configuration section")
	}

	cache, err := metacache.New(c.Store.SchemaCacheSize)
	if err != nil {
		return nil, fmt.Errorf("build schema cache: %w", err)
	}

	metaClient := NewMetaClient(c.Common.MetaJoin)
	puller := metacache.NewPuller(cache, metaClient, metaClient)

	return &Server{
		config:     c,
		info:       info,
		logger:     log,
		cache:      cache,
		puller:     puller,
		metaClient: metaClient,
		errCh:      make(chan error, 1),
		closed:     make(chan struct{}),
	}, nil
}

// NewCommand builds the ts-store *app.Command. enableGossip is accepted for
// signature symmetry with ts-meta's constructor; this spec's membership is
// meta-group-driven, so it has no effect here.
func NewCommand(info app.ServerInfo, enableGossip bool) *app.Command {
	cmd := app.NewCommand()
	cmd.Info = info
	cmd.Logo = app.STORELOGO
	cmd.Version = info.FullVersion()
	cmd.Usage = fmt.Sprintf(app.RunUsage, info.App, info.App)
	cmd.Config = config.NewClusterNode(info.App)
	cmd.NewServerFunc = NewServer
	return cmd
}

func (s *Server) Open() error {
	app.LogStarting("ts-store", &s.info)

	sc := s.config.Store
	s.self = partition.Node{ID: localNodeID(sc.BindAddress), Host: hostOf(sc.BindAddress)}
	if port, err := portOf(sc.BindAddress); err == nil {
		s.self.DataPort = port
	}

	rpcLn, err := net.Listen("tcp", sc.BindAddress)
	if err != nil {
		return fmt.Errorf("listen rpc: %w", err)
	}
	s.rpcLn = rpcLn
	s.wg.Add(1)
	go s.serveRPC()

	partitions, err := discoverPartitions(sc.Dirname())
	if err != nil {
		return fmt.Errorf("discover partitions: %w", err)
	}
	recoverPartitions(partitions, s.logger)

	targetSize := int64(s.config.Compaction.TargetCompactionFileSize)
	s.submitter = newLocalSubmitter(partitions, targetSize, s.logger)
	s.scheduler = compaction.NewScheduler(s.submitter, schedulePriority(s.config.Compaction.CompactionPriority), s.config.Compaction.ConcurrentCompactionThread)
	s.submitter.scheduler = s.scheduler

	status := rpc.StartUpStatusWire{
		PartitionInterval: int64(s.config.Meta.PartitionInterval),
		HashSalt:          s.config.Meta.HashSalt,
		ReplicationNum:    s.config.Meta.ReplicationNum,
		ClusterName:       s.config.Common.ClusterName,
	}
	table, err := s.metaClient.Join(s.self, status, regenerateID)
	if err != nil {
		return fmt.Errorf("join meta group: %w", err)
	}
	s.tableMu.Lock()
	s.table = table
	s.tableMu.Unlock()

	s.ticker = time.NewTicker(time.Duration(sc.ScheduleInterval))
	s.wg.Add(1)
	go s.scheduleLoop()

	if s.config.Common.ReportEnable {
		s.report = app.NewReportServer(sc.HTTPBindAddress, s, s.logger)
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

	if s.ticker != nil {
		s.ticker.Stop()
	}
	if s.rpcLn != nil {
		_ = s.rpcLn.Close()
	}
	var err error
	if s.report != nil {
		err = s.report.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) Err() <-chan error { return s.errCh }

// Status implements app.StatusReporter.
func (s *Server) Status() map[string]interface{} {
	return map[string]interface{}{
		"self":           s.self,
		"currentTaskNum": s.submitter.currentTaskNum(),
		"cacheLen":       s.cache.Len(),
	}
}

// Partitions implements app.StatusReporter: the last partition table this
// node learned from the meta group.
func (s *Server) Partitions() []byte {
	s.tableMu.RLock()
	defer s.tableMu.RUnlock()
	if s.table == nil {
		return nil
	}
	return s.table.Serialize()
}

func (s *Server) scheduleLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.closed:
			return
		case <-s.ticker.C:
			s.submitter.schedule()
			app.Metrics.CompactionCurrentTasks.Set(float64(s.submitter.currentTaskNum()))
		}
	}
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
	switch kind {
	case rpc.KindPullSchemaRequest:
		var req rpc.PullSchemaRequestBody
		if err := rpc.Decode(payload, &req); err != nil {
			return err
		}
		entries := s.localSchema(req.PrefixPaths)
		var schemaBytes []byte
		if len(entries) > 0 {
			b, err := rpc.Encode(entries)
			if err != nil {
				return err
			}
			schemaBytes = b
		}
		return rpc.WriteMessage(conn, rpc.KindPullSchemaResponse, rpc.PullSchemaResponse{SchemaBytes: schemaBytes})

	case rpc.KindCheckAliveRequest:
		return rpc.WriteFrame(conn, rpc.KindCheckAliveResponse, nil)

	default:
		return fmt.Errorf("unhandled rpc kind %d", kind)
	}
}

// localSchema answers a PullSchemaRequest from this node's own cache: every
// entry whose path begins with one of prefixPaths.
func (s *Server) localSchema(prefixPaths []string) map[string]metacache.Entry {
	out := make(map[string]metacache.Entry)
	for _, prefix := range prefixPaths {
		for k, v := range s.cache.EntriesWithPrefix(prefix) {
			out[k] = v
		}
	}
	return out
}

func schedulePriority(p config.CompactionPriority) compaction.Priority {
	switch p {
	case config.PriorityInnerCross:
		return compaction.PriorityInnerCross
	case config.PriorityCrossInner:
		return compaction.PriorityCrossInner
	default:
		return compaction.PriorityBalance
	}
}

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
