// Copyright 2025 Huawei Cloud Computing Technologies Co., Ltd.
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

// Package tsfile holds the handles the compaction engine operates on: one
// on-disk time-series file (Resource) and the ordered, lock-guarded
// sequence of them that a storage group maintains (ResourceList).
package tsfile

import (
	"sort"
	"sync"
	"sync/atomic"
)

// TimeRange is a device's observed [min, max] timestamp range within a
// Resource.
type TimeRange struct {
	Min int64
	Max int64
}

// Resource is a handle to one on-disk time-series file: path, byte size,
// per-device time range, and the merging/closed lifecycle flags compaction
// and flush coordinate through.
type Resource struct {
	Path     string
	ModsPath string

	size    int64
	merging int32
	closed  int32

	mu      sync.RWMutex
	devices map[string]TimeRange
}

// NewResource builds a resource for path, initially open (not closed) and
// not merging.
func NewResource(path string, size int64) *Resource {
	return &Resource{
		Path:    path,
		size:    size,
		devices: make(map[string]TimeRange),
	}
}

func (r *Resource) Size() int64     { return atomic.LoadInt64(&r.size) }
func (r *Resource) SetSize(v int64) { atomic.StoreInt64(&r.size, v) }
func (r *Resource) Merging() bool   { return atomic.LoadInt32(&r.merging) != 0 }
func (r *Resource) Closed() bool    { return atomic.LoadInt32(&r.closed) != 0 }

func (r *Resource) SetMerging(v bool) {
	if v {
		atomic.StoreInt32(&r.merging, 1)
	} else {
		atomic.StoreInt32(&r.merging, 0)
	}
}

func (r *Resource) SetClosed(v bool) {
	if v {
		atomic.StoreInt32(&r.closed, 1)
	} else {
		atomic.StoreInt32(&r.closed, 0)
	}
}

// UpdateDeviceRange widens device's recorded time range to include t.
func (r *Resource) UpdateDeviceRange(device string, t int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tr, ok := r.devices[device]
	if !ok {
		r.devices[device] = TimeRange{Min: t, Max: t}
		return
	}
	if t < tr.Min {
		tr.Min = t
	}
	if t > tr.Max {
		tr.Max = t
	}
	r.devices[device] = tr
}

// DeviceRange returns device's recorded time range and whether it exists.
func (r *Resource) DeviceRange(device string) (TimeRange, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tr, ok := r.devices[device]
	return tr, ok
}

// Devices returns the resource's device names, sorted.
func (r *Resource) Devices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.devices))
	for d := range r.devices {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
