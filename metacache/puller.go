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

package metacache

import "github.com/chronogrid/chronogrid/partition"

// Coordinator orders a replica group's nodes by observed latency, nearest
// first, so MetaPuller tries the likeliest-fast node first.
type Coordinator interface {
	OrderedNodes(group partition.ReplicaGroup) []partition.Node
}

// SchemaFetcher sends a PullSchemaRequest to a single remote node.
type SchemaFetcher interface {
	PullSchema(node partition.Node, prefixPaths []string) (map[string]Entry, error)
}

// Puller resolves a schema lookup miss by querying the owning replica group,
// in coordinator-ordered sequence, caching every schema a successful
// response returns.
type Puller struct {
	cache       *Cache
	coordinator Coordinator
	fetcher     SchemaFetcher
}

func NewPuller(cache *Cache, coordinator Coordinator, fetcher SchemaFetcher) *Puller {
	return &Puller{cache: cache, coordinator: coordinator, fetcher: fetcher}
}

// Lookup returns the cached entry for path if present; otherwise it queries
// group's nodes in order until one returns a non-error, non-empty response,
// caches every schema it contains, and returns the entry for path.
func (p *Puller) Lookup(path string, group partition.ReplicaGroup) (Entry, error) {
	if e, ok := p.cache.Get(path); ok {
		return e, nil
	}

	for _, node := range p.coordinator.OrderedNodes(group) {
		resp, err := p.fetcher.PullSchema(node, []string{path})
		if err != nil || len(resp) == 0 {
			continue
		}
		for k, v := range resp {
			p.cache.Put(k, v)
		}
		if e, ok := resp[path]; ok {
			return e, nil
		}
	}
	return Entry{}, ErrSchemaNotFound
}
