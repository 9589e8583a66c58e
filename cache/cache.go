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

// Package cache provides the thread-safe, bounded capability handles
// the coordinator threads through device processors: a bridge's
// MAC-learning table, a router's ARP cache, and the connection-tracking
// cache, all generalized from the teacher's LRU-backed flow
// de-duplication cache into independent bounded tables (spec §5, §9).
package cache

import (
	"fmt"
	"net"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/superkkt/go-logging"

	"github.com/superkkt/midonet-sim/simctx"
)

var logger = logging.MustGetLogger("cache")

const defaultCapacity = 8192

// MACTable is a bridge's MAC-learning table: destination MAC -> egress
// port. Keyed per bridge since two bridges may learn the same MAC on
// different ports.
type MACTable struct {
	cache *lru.Cache
}

func NewMACTable() *MACTable {
	c, err := lru.New(defaultCapacity)
	if err != nil {
		panic(fmt.Sprintf("failed to init MAC-learning LRU cache: %v", err))
	}
	return &MACTable{cache: c}
}

func macKey(bridgeID string, mac net.HardwareAddr) string {
	return fmt.Sprintf("%s/%s", bridgeID, mac.String())
}

// Learn records that mac is reachable via port on bridgeID.
func (t *MACTable) Learn(bridgeID string, mac net.HardwareAddr, port uint32) {
	t.cache.Add(macKey(bridgeID, mac), port)
	logger.Debugf("learned mac=%v on bridge=%v port=%v", mac, bridgeID, port)
}

// Lookup returns the learned egress port for mac on bridgeID, if any.
func (t *MACTable) Lookup(bridgeID string, mac net.HardwareAddr) (uint32, bool) {
	v, ok := t.cache.Get(macKey(bridgeID, mac))
	if !ok {
		return 0, false
	}
	return v.(uint32), true
}

// ARPEntry is a resolved or pending next-hop MAC.
type ARPEntry struct {
	MAC     net.HardwareAddr
	Pending bool
}

// ARPCache is a router's IP -> MAC resolution cache, one entry per
// (router, next-hop IP).
type ARPCache struct {
	cache *lru.Cache
}

func NewARPCache() *ARPCache {
	c, err := lru.New(defaultCapacity)
	if err != nil {
		panic(fmt.Sprintf("failed to init ARP LRU cache: %v", err))
	}
	return &ARPCache{cache: c}
}

func arpKey(routerID string, ip net.IP) string {
	return fmt.Sprintf("%s/%s", routerID, ip.String())
}

// Lookup returns the cached entry for ip on routerID, if any.
func (c *ARPCache) Lookup(routerID string, ip net.IP) (ARPEntry, bool) {
	v, ok := c.cache.Get(arpKey(routerID, ip))
	if !ok {
		return ARPEntry{}, false
	}
	return v.(ARPEntry), true
}

// MarkPending records that resolution for ip is in flight, so repeated
// misses don't re-trigger an ARP request storm.
func (c *ARPCache) MarkPending(routerID string, ip net.IP) {
	c.cache.Add(arpKey(routerID, ip), ARPEntry{Pending: true})
}

// Resolve records a completed resolution.
func (c *ARPCache) Resolve(routerID string, ip net.IP, mac net.HardwareAddr) {
	c.cache.Add(arpKey(routerID, ip), ARPEntry{MAC: mac})
	logger.Debugf("resolved arp router=%v ip=%v mac=%v", routerID, ip, mac)
}

// ConnCache is the connection-tracking capability from spec §9,
// satisfying simctx.ConnCache. Entries expire passively: a stale
// forward-flow entry simply stops matching once its LRU slot is
// evicted or TTL elapses, which is sufficient since a missed match
// just re-resolves the packet as forward (conservative default).
type ConnCache struct {
	cache *lru.Cache
	ttl   time.Duration
}

type connEntry struct {
	marker  string
	expires time.Time
}

func NewConnCache(ttl time.Duration) *ConnCache {
	c, err := lru.New(defaultCapacity)
	if err != nil {
		panic(fmt.Sprintf("failed to init conntrack LRU cache: %v", err))
	}
	return &ConnCache{cache: c, ttl: ttl}
}

func (c *ConnCache) Put(key simctx.ConnKey, marker string) {
	c.cache.Add(key, connEntry{marker: marker, expires: time.Now().Add(c.ttl)})
}

func (c *ConnCache) Get(key simctx.ConnKey) (string, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return "", false
	}
	e := v.(connEntry)
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		c.cache.Remove(key)
		return "", false
	}
	return e.marker, true
}
