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

package tsfile

import (
	"container/list"
	"sync"
)

// ResourceList is the ordered, doubly-linked sequence of Resources a
// storage group/time-partition maintains, ordered by file creation
// (time-ascending). Callers serialize access with RLock/RUnlock for reads
// (writers appending a freshly flushed file) and Lock/Unlock for writes
// (compaction commit, which removes sources and inserts a target).
type ResourceList struct {
	mu    sync.RWMutex
	l     *list.List
	index map[string]*list.Element
}

func NewResourceList() *ResourceList {
	return &ResourceList{l: list.New(), index: make(map[string]*list.Element)}
}

func (rl *ResourceList) Lock()    { rl.mu.Lock() }
func (rl *ResourceList) Unlock()  { rl.mu.Unlock() }
func (rl *ResourceList) RLock()   { rl.mu.RLock() }
func (rl *ResourceList) RUnlock() { rl.mu.RUnlock() }

// PushBack appends r as the newest resource. Caller must hold Lock.
func (rl *ResourceList) PushBack(r *Resource) {
	rl.index[r.Path] = rl.l.PushBack(r)
}

// Len returns the number of resources. Caller must hold RLock or Lock.
func (rl *ResourceList) Len() int { return rl.l.Len() }

// Snapshot returns the resources in oldest-to-newest order. Caller must
// hold RLock or Lock.
func (rl *ResourceList) Snapshot() []*Resource {
	out := make([]*Resource, 0, rl.l.Len())
	for e := rl.l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Resource))
	}
	return out
}

// Find returns the resource at path, if present. Caller must hold RLock or
// Lock.
func (rl *ResourceList) Find(path string) (*Resource, bool) {
	e, ok := rl.index[path]
	if !ok {
		return nil, false
	}
	return e.Value.(*Resource), true
}

// InsertBeforeFirstSource inserts target immediately before the first
// resource named in sources (matched by path), then removes every source
// from the list. Caller must hold Lock. Returns false if none of sources
// were found (target is not inserted in that case).
func (rl *ResourceList) InsertBeforeFirstSource(target *Resource, sources []*Resource) bool {
	var mark *list.Element
	for _, s := range sources {
		if e, ok := rl.index[s.Path]; ok {
			if mark == nil || e.Value.(*Resource) == s {
				mark = e
				break
			}
		}
	}
	if mark == nil {
		return false
	}

	inserted := rl.l.InsertBefore(target, mark)
	rl.index[target.Path] = inserted

	for _, s := range sources {
		if e, ok := rl.index[s.Path]; ok {
			rl.l.Remove(e)
			delete(rl.index, s.Path)
		}
	}
	return true
}

// Remove deletes r from the list, if present. Caller must hold Lock.
func (rl *ResourceList) Remove(r *Resource) {
	if e, ok := rl.index[r.Path]; ok {
		rl.l.Remove(e)
		delete(rl.index, r.Path)
	}
}
