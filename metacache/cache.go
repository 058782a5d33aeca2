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

// Package metacache implements RemoteMetaCache: a bounded LRU caching
// measurement schemas pulled from remote replica groups, plus MetaPuller,
// the collaborator that fetches on a local miss.
package metacache

import (
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrSchemaNotFound is returned when no replica group in a group's ordered
// node list returns a usable schema for a path.
var ErrSchemaNotFound = errors.New("metacache: schema not found")

// LastValuePair is the most recent (time, value) observed for a series.
type LastValuePair struct {
	Time  int64
	Value interface{}
}

// Entry is a cached schema plus its last-value pair.
type Entry struct {
	Schema    map[string]string
	LastValue LastValuePair
}

// Cache is a bounded, least-recently-accessed LRU mapping a full
// measurement path to its schema.
type Cache struct {
	lru *lru.Cache[string, Entry]
}

// New builds a cache of the given capacity (must be > 0).
func New(capacity int) (*Cache, error) {
	l, err := lru.New[string, Entry](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// Get returns the cached entry for path, if present, marking it recently
// used.
func (c *Cache) Get(path string) (Entry, bool) {
	return c.lru.Get(path)
}

// Put inserts or refreshes the cached entry for path.
func (c *Cache) Put(path string, e Entry) {
	c.lru.Add(path, e)
}

// RemovePrefix deletes every cached entry whose path begins with prefix,
// used to invalidate a subtree on delete.
func (c *Cache) RemovePrefix(prefix string) {
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}

// EntriesWithPrefix returns every cached entry whose path begins with
// prefix, without marking them recently used - a PullSchemaRequest
// responder answers from its local cache without disturbing its own LRU
// order on behalf of the requester.
func (c *Cache) EntriesWithPrefix(prefix string) map[string]Entry {
	out := make(map[string]Entry)
	for _, key := range c.lru.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if e, ok := c.lru.Peek(key); ok {
			out[key] = e
		}
	}
	return out
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.lru.Len() }
