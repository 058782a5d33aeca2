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

package app_test

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronogrid/chronogrid/app"
	"github.com/chronogrid/chronogrid/lib/errno"
	"github.com/chronogrid/chronogrid/lib/logger"
)

type fakeReporter struct{}

func (fakeReporter) Status() map[string]interface{} { return map[string]interface{}{"leader": "n1"} }
func (fakeReporter) Partitions() []byte              { return []byte("table-bytes") }

func TestReportServerServesStatusPartitionsAndMetrics(t *testing.T) {
	srv := app.NewReportServer("127.0.0.1:0", fakeReporter{}, logger.NewLogger(errno.ModuleUnknown))
	require.NoError(t, srv.Open())
	defer srv.Close()

	base := "http://" + srv.Addr()

	statusResp, err := http.Get(base + "/status")
	require.NoError(t, err)
	defer statusResp.Body.Close()
	assert.Equal(t, http.StatusOK, statusResp.StatusCode)
	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	assert.Equal(t, "n1", status["leader"])

	partResp, err := http.Get(base + "/partitions")
	require.NoError(t, err)
	defer partResp.Body.Close()
	body, err := io.ReadAll(partResp.Body)
	require.NoError(t, err)
	assert.Equal(t, "table-bytes", string(body))

	metricsResp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}

func TestReportServerReturns503WithoutReporter(t *testing.T) {
	srv := app.NewReportServer("127.0.0.1:0", nil, logger.NewLogger(errno.ModuleUnknown))
	require.NoError(t, srv.Open())
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr() + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
