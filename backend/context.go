/*
Copyright © 2026 the zdataset authors.
This file is part of zdataset.

zdataset is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

zdataset is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with zdataset.  If not, see <http://www.gnu.org/licenses/>.
*/

package backend

import (
	gocontext "context"

	"github.com/ctessum/requestcache"
)

// defaultChunkSizeEstimate is used to turn a byte budget into an LRU entry
// count before any chunk has actually been sized; it is deliberately
// conservative (spec §5 describes the default cache as "1 GiB").
const defaultChunkSizeEstimate = 4 << 20 // 4 MiB, a typical seismic chunk

// chunkFetch is the payload handed to the shared requestcache processor.
type chunkFetch struct {
	handle KVHandle
	key    string
}

// Context is the process-wide resource context injected at open time
// (spec §5): a cache pool byte budget and a data-copy concurrency limit.
// Its chunkCache is a deduplicating, LRU-backed cache of raw (still
// encoded) chunk bytes as read from the KV store, built with github.com/ctessum/requestcache exactly as the teacher
// builds sr.Reader's sourceCache.
type Context struct {
	CacheBytesLimit  int64
	ConcurrencyLimit int

	chunkCache *requestcache.Cache
}

// DefaultContext returns the context used when none is provided: a 1 GiB
// cache and as many concurrent chunk operations as GOMAXPROCS.
func DefaultContext(gomaxprocs int) *Context {
	c := &Context{
		CacheBytesLimit:  1 << 30,
		ConcurrencyLimit: gomaxprocs,
	}
	c.init()
	return c
}

// NewContext builds a Context from explicit limits.
func NewContext(cacheBytesLimit int64, concurrencyLimit int) *Context {
	c := &Context{CacheBytesLimit: cacheBytesLimit, ConcurrencyLimit: concurrencyLimit}
	c.init()
	return c
}

func (c *Context) init() {
	if c.ConcurrencyLimit <= 0 {
		c.ConcurrencyLimit = 1
	}
	entries := int(c.CacheBytesLimit / defaultChunkSizeEstimate)
	if entries < 1 {
		entries = 1
	}
	processor := func(ctx gocontext.Context, payload interface{}) (interface{}, error) {
		f := payload.(chunkFetch)
		return f.handle.Read(ctx, f.key).Value()
	}
	c.chunkCache = requestcache.NewCache(processor, c.ConcurrencyLimit,
		requestcache.Deduplicate(), requestcache.Memory(entries))
}

// FetchChunk reads key through the deduplicating LRU cache, coalescing
// concurrent requests for the same key into a single underlying read
// (spec §5's cache pool).
func (c *Context) FetchChunk(ctx gocontext.Context, handle KVHandle, key string) ([]byte, error) {
	req := c.chunkCache.NewRequest(ctx, chunkFetch{handle: handle, key: key}, key)
	v, err := req.Result()
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
