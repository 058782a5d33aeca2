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

package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chronogrid/chronogrid/lib/logger"
)

// StatusReporter answers the node-report endpoints a running Server exposes.
// ts-meta's run.Server reports leader/term/node list; ts-store's reports its
// local compaction/scheduling state.
type StatusReporter interface {
	Status() map[string]interface{}
	Partitions() []byte
}

// ReportServer is the "GET /status", "GET /partitions" and "GET /metrics"
// surface every node exposes when common.report-enable is set (spec.md
// §4.10). It is a thin gorilla/mux router plus the default prometheus
// registry's promhttp handler - this repo collects-and-scrapes rather than
// pushing, since nothing here plays the role of the teacher's
// statisticsPusher remote collector.
type ReportServer struct {
	addr   string
	ln     net.Listener
	srv    *http.Server
	logger *logger.Logger
}

// NewReportServer builds, but does not start, the report server for addr.
// reporter may be nil, in which case /status and /partitions answer 503.
func NewReportServer(addr string, reporter StatusReporter, log *logger.Logger) *ReportServer {
	r := mux.NewRouter()
	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		if reporter == nil {
			http.Error(w, "report not ready", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(reporter.Status())
	}).Methods(http.MethodGet)
	r.HandleFunc("/partitions", func(w http.ResponseWriter, req *http.Request) {
		if reporter == nil {
			http.Error(w, "report not ready", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(reporter.Partitions())
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return &ReportServer{
		addr:   addr,
		srv:    &http.Server{Handler: r},
		logger: log,
	}
}

// Open starts serving in the background. A failure to bind is returned
// immediately; failures afterwards are logged, matching the teacher's
// "log and keep running" posture for its own report server.
func (s *ReportServer) Open() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("report server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the actual bound address, useful when addr was ":0".
func (s *ReportServer) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *ReportServer) Close() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
