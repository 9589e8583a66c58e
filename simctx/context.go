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

// Package simctx implements the per-simulation packet context: an
// Open->Frozen state machine holding the original and current match,
// flow tags, flow-removed callbacks and loop-detection bookkeeping
// (spec §4.1, §9 design note).
package simctx

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/superkkt/go-logging"

	"github.com/superkkt/midonet-sim/action"
	"github.com/superkkt/midonet-sim/match"
	"github.com/superkkt/midonet-sim/topology"
)

var logger = logging.MustGetLogger("simctx")

// ErrFrozen is returned by every mutator once the context has been
// frozen for result production.
var ErrFrozen = errors.New("packet context is frozen")

// ConnKey identifies a connection-tracking entry: a 5-tuple plus the
// device that owns the tracking decision (spec §9 design note).
type ConnKey struct {
	Proto          uint8
	SrcIP, DstIP   string
	SrcPort, DstPort uint16
	DeviceID       string
}

// Reversed swaps source and destination, the key a return packet of
// this flow would derive.
func (k ConnKey) Reversed() ConnKey {
	r := k
	r.SrcIP, r.DstIP = k.DstIP, k.SrcIP
	r.SrcPort, r.DstPort = k.DstPort, k.SrcPort
	return r
}

// ConnCache is the narrow capability handle described in spec §9:
// Put(key, marker) and Get(key) -> (marker, ok). Put takes no ttl.
type ConnCache interface {
	Put(key ConnKey, marker string)
	Get(key ConnKey) (marker string, ok bool)
}

// Context is one simulation's mutable scratchpad. Not safe for
// concurrent use; exactly one in-flight simulation owns it (spec §5).
type Context struct {
	original *match.Match
	current  *match.Match
	frozen   bool

	callbacks []action.Callback
	tags      map[string]struct{}

	connCache        ConnCache
	connTracked      bool
	connDeviceID     string
	forwardResolved  bool
	forwardFlow      bool

	trace []string

	devicesVisited   map[string]int
	devicesTraversed int

	inputPort     *topology.Port
	outputPort    *uint32
	outputPortSet *uint32

	generated bool
}

// New builds a fresh Open context around m, which becomes the
// immutable original snapshot; current starts as a clone of it.
func New(m *match.Match, connCache ConnCache, generated bool) *Context {
	return &Context{
		original:       m,
		current:        m.Clone(),
		tags:           make(map[string]struct{}),
		devicesVisited: make(map[string]int),
		connCache:      connCache,
		generated:      generated,
	}
}

// Original returns the immutable snapshot taken at construction. It is
// never mutated, even across a Fork.
func (c *Context) Original() *match.Match { return c.original }

// Current returns the live, mutable match. Callers that need a stable
// copy across a mutation call CloneMatch first.
func (c *Context) Current() *match.Match { return c.current }

// CloneMatch returns a deep copy of the current match.
func (c *Context) CloneMatch() *match.Match { return c.current.Clone() }

// SetMatch replaces the current match wholesale.
func (c *Context) SetMatch(m *match.Match) error {
	if c.frozen {
		return ErrFrozen
	}
	c.current = m
	return nil
}

// Freeze is a one-way latch set during result production; Unfreeze
// releases it, used by the Fork handler to rewind between branches
// (spec §9).
func (c *Context) Freeze()   { c.frozen = true }
func (c *Context) Unfreeze() { c.frozen = false }
func (c *Context) Frozen() bool { return c.frozen }

// AddFlowTag records a tag that will be attached to the installed flow.
func (c *Context) AddFlowTag(t string) error {
	if c.frozen {
		return ErrFrozen
	}
	c.tags[t] = struct{}{}
	return nil
}

// Tags returns the accumulated flow-tag set.
func (c *Context) Tags() map[string]struct{} { return c.tags }

// AddFlowRemovedCallback queues a (capability, payload) pair to fire
// exactly once, per the invariant in spec §3.
func (c *Context) AddFlowRemovedCallback(cb action.Callback) error {
	if c.frozen {
		return ErrFrozen
	}
	c.callbacks = append(c.callbacks, cb)
	return nil
}

// Callbacks returns the queued flow-removed callbacks.
func (c *Context) Callbacks() []action.Callback { return c.callbacks }

// FireCallbacksNow runs every queued callback synchronously, used when
// a simulation produces NoOp or SendPacket rather than an installed
// flow (spec §3 invariant: callbacks fire immediately in that case).
func (c *Context) FireCallbacksNow() {
	for _, cb := range c.callbacks {
		if cb.Handle == nil {
			continue
		}
		if err := cb.Handle.Fire(cb.Payload); err != nil {
			logger.Errorf("flow-removed callback failed: %v", err)
		}
	}
}

// Trace records a per-device diagnostic line; dumped with go-spew at
// DEBUG so a verbose-traced simulation can be replayed by eye.
func (c *Context) Trace(deviceID, format string, args ...interface{}) {
	line := fmt.Sprintf("[%s] %s", deviceID, fmt.Sprintf(format, args...))
	c.trace = append(c.trace, line)
	logger.Debugf("%v match=%v", line, spew.Sdump(c.current))
}

// TraceLines returns the accumulated trace, oldest first.
func (c *Context) TraceLines() []string { return c.trace }

// SetInputPort records the ingress port snapshot.
func (c *Context) SetInputPort(p *topology.Port) error {
	if c.frozen {
		return ErrFrozen
	}
	c.inputPort = p
	c.outputPort = nil
	c.outputPortSet = nil
	return nil
}

func (c *Context) InputPort() *topology.Port { return c.inputPort }

// SetOutputPort records a single egress port.
func (c *Context) SetOutputPort(id uint32) error {
	if c.frozen {
		return ErrFrozen
	}
	c.outputPort = &id
	c.outputPortSet = nil
	return nil
}

// SetOutputPortSet records an egress port-set (broadcast/flood).
func (c *Context) SetOutputPortSet(id uint32) error {
	if c.frozen {
		return ErrFrozen
	}
	c.outputPortSet = &id
	c.outputPort = nil
	return nil
}

func (c *Context) OutputPort() (uint32, bool) {
	if c.outputPort == nil {
		return 0, false
	}
	return *c.outputPort, true
}

func (c *Context) OutputPortSet() (uint32, bool) {
	if c.outputPortSet == nil {
		return 0, false
	}
	return *c.outputPortSet, true
}

// Generated reports whether this simulation was started for a packet
// synthesized by a device rather than one arriving from the datapath.
func (c *Context) Generated() bool { return c.generated }

// IsConnTracked reports whether MarkConnTracked has been called.
func (c *Context) IsConnTracked() bool { return c.connTracked }

// MarkConnTracked opts this simulation into connection tracking under
// deviceID, the device whose filter decided tracking applies.
func (c *Context) MarkConnTracked(deviceID string) {
	c.connTracked = true
	c.connDeviceID = deviceID
}

// IsForwardFlow lazily resolves, on first call, whether the current
// match is the forward or return side of a tracked connection, by
// deriving a key and consulting the connection cache (spec §4.1).
func (c *Context) IsForwardFlow() (bool, error) {
	if c.forwardResolved {
		return c.forwardFlow, nil
	}
	if !c.connTracked || c.connCache == nil {
		c.forwardFlow, c.forwardResolved = true, true
		return true, nil
	}

	key := deriveConnKey(c.current, c.connDeviceID)
	if _, ok := c.connCache.Get(key.Reversed()); ok {
		c.forwardFlow = false
	} else {
		c.connCache.Put(key, "forward")
		c.forwardFlow = true
	}
	c.forwardResolved = true
	return c.forwardFlow, nil
}

func deriveConnKey(m *match.Match, deviceID string) ConnKey {
	proto, _ := m.IPProto()
	srcPort, _ := m.TpSrc()
	dstPort, _ := m.TpDst()

	var src, dst string
	if m.IsIPv6() {
		s, _ := m.IPv6Src()
		d, _ := m.IPv6Dst()
		src, dst = s.String(), d.String()
	} else {
		s, _ := m.IPv4Src()
		d, _ := m.IPv4Dst()
		src, dst = s.String(), d.String()
	}

	return ConnKey{
		Proto:    proto,
		SrcIP:    src,
		DstIP:    dst,
		SrcPort:  srcPort,
		DstPort:  dstPort,
		DeviceID: deviceID,
	}
}

// DevicesTraversed returns the current traversal count.
func (c *Context) DevicesTraversed() int { return c.devicesTraversed }

// VisitDevice increments the traversal counter and the per-device
// visit count, returning the new totals for the coordinator's loop and
// budget checks (spec §4.5).
func (c *Context) VisitDevice(deviceID string) (traversed, visits int) {
	c.devicesTraversed++
	c.devicesVisited[deviceID]++
	return c.devicesTraversed, c.devicesVisited[deviceID]
}
