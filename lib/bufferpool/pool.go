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

package bufferpool

import "sync"

const (
	maxDefaultSize    = 1024 * 1024 // 1M
	minDefaultSize    = 64
	maxLocalCacheSize = 32 * 1024 * 1024 // 32M
)

// Pool recycles []byte scratch buffers so that binary payloads can be built
// without an allocation on every call.
type Pool struct {
	defaultSize int
	pool        sync.Pool
}

var defaultPool = NewByteBufferPool(0)

func NewByteBufferPool(defaultSize int) *Pool {
	if defaultSize > maxDefaultSize {
		defaultSize = maxDefaultSize
	}
	if defaultSize < minDefaultSize {
		defaultSize = minDefaultSize
	}
	return &Pool{defaultSize: defaultSize}
}

func Get() []byte { return defaultPool.Get() }

func Put(b []byte) { defaultPool.Put(b) }

func (p *Pool) Get() []byte {
	v := p.pool.Get()
	if v == nil {
		return make([]byte, 0, p.defaultSize)
	}
	return v.([]byte)
}

func (p *Pool) Put(b []byte) {
	if cap(b) > maxLocalCacheSize {
		return
	}
	p.pool.Put(b[:0]) //nolint:staticcheck
}

// Resize grows b's length to n, extending its backing array if needed.
func Resize(b []byte, n int) []byte {
	if nn := n - cap(b); nn > 0 {
		b = append(b[:cap(b)], make([]byte, nn)...)
	}
	return b[:n]
}
