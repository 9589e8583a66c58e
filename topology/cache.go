/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package topology

import (
	"context"
	"sync"
	"time"
)

// Cache is the read-only, asynchronous topology lookup used by the
// coordinator (spec §4.2). Every Fetch* call returns ok=false, rather than
// an error, on timeout or missing id -- the coordinator treats both the
// same way (a temporary drop), so the two aren't distinguished here.
// The in-process reference implementation below hands every caller the
// pointer stored at Put time without copying it; snapshots carry slices,
// maps and pointers, so the returned value is shared, not a private copy.
type Cache interface {
	FetchPort(ctx context.Context, id uint32, deadline time.Time) (*Port, bool, error)
	FetchBridge(ctx context.Context, id string, deadline time.Time) (*Bridge, bool, error)
	FetchRouter(ctx context.Context, id string, deadline time.Time) (*Router, bool, error)
	FetchVlanBridge(ctx context.Context, id string, deadline time.Time) (*VlanBridge, bool, error)
	FetchChain(ctx context.Context, id string, deadline time.Time) (*Chain, bool, error)
	FetchDevice(ctx context.Context, id string, deadline time.Time) (Device, bool, error)
}

// MemCache is a goroutine-safe, in-process reference Cache, suitable for
// tests and as a stand-in until a real topology-store client (out of
// scope per spec §1) is wired in. It never blocks past the deadline: a
// lookup either completes immediately (the snapshot is already resident)
// or reports ok=false.
type MemCache struct {
	mu       sync.RWMutex
	ports    map[uint32]*Port
	bridges  map[string]*Bridge
	routers  map[string]*Router
	vlanBrs  map[string]*VlanBridge
	chains   map[string]*Chain
}

func NewMemCache() *MemCache {
	return &MemCache{
		ports:   make(map[uint32]*Port),
		bridges: make(map[string]*Bridge),
		routers: make(map[string]*Router),
		vlanBrs: make(map[string]*VlanBridge),
		chains:  make(map[string]*Chain),
	}
}

func (c *MemCache) PutPort(p *Port) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ports[p.ID] = p
}

func (c *MemCache) PutBridge(b *Bridge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bridges[b.ID] = b
}

func (c *MemCache) PutRouter(r *Router) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routers[r.ID] = r
}

func (c *MemCache) PutVlanBridge(v *VlanBridge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vlanBrs[v.ID] = v
}

func (c *MemCache) PutChain(ch *Chain) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chains[ch.ID] = ch
}

func expired(ctx context.Context, deadline time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	return !deadline.IsZero() && time.Now().After(deadline)
}

func (c *MemCache) FetchPort(ctx context.Context, id uint32, deadline time.Time) (*Port, bool, error) {
	if expired(ctx, deadline) {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.ports[id]
	return p, ok, nil
}

func (c *MemCache) FetchBridge(ctx context.Context, id string, deadline time.Time) (*Bridge, bool, error) {
	if expired(ctx, deadline) {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bridges[id]
	return b, ok, nil
}

func (c *MemCache) FetchRouter(ctx context.Context, id string, deadline time.Time) (*Router, bool, error) {
	if expired(ctx, deadline) {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.routers[id]
	return r, ok, nil
}

func (c *MemCache) FetchVlanBridge(ctx context.Context, id string, deadline time.Time) (*VlanBridge, bool, error) {
	if expired(ctx, deadline) {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vlanBrs[id]
	return v, ok, nil
}

func (c *MemCache) FetchChain(ctx context.Context, id string, deadline time.Time) (*Chain, bool, error) {
	if expired(ctx, deadline) {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.chains[id]
	return ch, ok, nil
}

func (c *MemCache) FetchDevice(ctx context.Context, id string, deadline time.Time) (Device, bool, error) {
	if expired(ctx, deadline) {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if b, ok := c.bridges[id]; ok {
		return b, true, nil
	}
	if r, ok := c.routers[id]; ok {
		return r, true, nil
	}
	if v, ok := c.vlanBrs[id]; ok {
		return v, true, nil
	}
	return nil, false, nil
}
