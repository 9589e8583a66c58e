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

// Package device implements the per-device-kind packet processors the
// coordinator dispatches to: Bridge, Router and the PortFilter wrapper
// (spec §4.4). Each is a pure function over an immutable device
// snapshot and the mutable packet context; dispatch happens by
// switching on topology.DeviceKind, never through embedding or
// dynamic method resolution on the snapshot itself (spec §9).
package device

import (
	"context"

	"github.com/superkkt/midonet-sim/action"
	"github.com/superkkt/midonet-sim/config"
	"github.com/superkkt/midonet-sim/protocol"
	"github.com/superkkt/midonet-sim/simctx"
	"github.com/superkkt/midonet-sim/topology"
)

// Processor is the common contract every device kind implements (spec
// §4.4 "process(ctx) -> Future<Action>").
type Processor interface {
	Process(ctx context.Context, pctx *simctx.Context, dev topology.Device, cache topology.Cache, cfg config.Tunables, gen GeneratedPacketEmitter) (action.Action, error)
}

// GeneratedPacketEmitter is the capability a processor uses to hand a
// synthesized packet (ARP reply, ICMP error, DHCP offer) back to the
// coordinator for a fresh simulation that starts at egress_port rather
// than ingress_port (spec §4.5 "packet generated by virtual device").
type GeneratedPacketEmitter interface {
	Emit(ctx context.Context, eth *protocol.Ethernet, egressPortID uint32) error
}

// Dispatcher picks the Processor for a device kind with a plain switch
// rather than a registry (spec §9 design note): KindRouter goes to
// Router and every other kind falls to the default branch, Bridge. Bridge
// handles both KindBridge and KindVlanBridge: the latter is the
// companion fan-out device a trunk port forks to, not a Bridge
// subtype, so Bridge.Process type-switches on the concrete snapshot.
type Dispatcher struct {
	Bridge *Bridge
	Router *Router
}

func (d Dispatcher) For(dev topology.Device) Processor {
	switch dev.Kind() {
	case topology.KindRouter:
		return d.Router
	default:
		return d.Bridge
	}
}
