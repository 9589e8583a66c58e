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

package device

import (
	"context"
	"fmt"
	"net"

	"github.com/superkkt/go-logging"

	"github.com/superkkt/midonet-sim/action"
	"github.com/superkkt/midonet-sim/cache"
	"github.com/superkkt/midonet-sim/config"
	"github.com/superkkt/midonet-sim/simctx"
	"github.com/superkkt/midonet-sim/topology"
)

var logger = logging.MustGetLogger("device")

var broadcastMAC = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Bridge implements the L2 switching behavior of spec §4.4: flood
// unknown/broadcast destinations, hairpin-suppress, learn the source
// MAC, and fork VLAN-tagged trunk traffic to the companion VlanBridge
// fan-out device, grounded on the teacher's storm-controlled flooding
// in northbound/app/l2switch/switch.go.
type Bridge struct {
	MAC *cache.MACTable
}

func (b *Bridge) Process(ctx context.Context, pctx *simctx.Context, dev topology.Device, topoCache topology.Cache, cfg config.Tunables, gen GeneratedPacketEmitter) (action.Action, error) {
	switch d := dev.(type) {
	case *topology.VlanBridge:
		return b.processVlanBridge(pctx, d)
	case *topology.Bridge:
		return b.processBridge(pctx, d)
	default:
		return action.ErrorDrop(fmt.Sprintf("bridge processor given unexpected device kind %T", dev)), nil
	}
}

func (b *Bridge) processBridge(pctx *simctx.Context, br *topology.Bridge) (action.Action, error) {
	m := pctx.Current()

	dstMAC, _ := m.EthDst()
	srcMAC, _ := m.EthSrc()
	inPort, hasInPort := m.InPort()

	if srcMAC != nil {
		b.MAC.Learn(br.ID, srcMAC, inPort)
		pctx.Trace(br.ID, "learned src mac %v on port %v", srcMAC, inPort)
	}

	if isBroadcastOrMulticast(dstMAC) {
		pctx.Trace(br.ID, "flooding broadcast/multicast dst %v", dstMAC)
		return forkToVlanBridge(br, pctx, action.ToPortSet(br.FloodPortSetID)), nil
	}

	learnedPort, ok := b.MAC.Lookup(br.ID, dstMAC)
	if !ok {
		pctx.Trace(br.ID, "unknown dst %v, flooding", dstMAC)
		return forkToVlanBridge(br, pctx, action.ToPortSet(br.FloodPortSetID)), nil
	}

	if hasInPort && learnedPort == inPort {
		pctx.Trace(br.ID, "hairpin suppressed for dst %v on port %v", dstMAC, learnedPort)
		return action.Drop(false), nil
	}

	pctx.Trace(br.ID, "forwarding dst %v to learned port %v", dstMAC, learnedPort)
	return forkToVlanBridge(br, pctx, action.ToPort(learnedPort)), nil
}

// forkToVlanBridge implements the VLAN-port-map translation of spec
// §4.4.3: a VLAN-tagged frame bound for a trunk port also forks a copy
// as a ToPortSet addressed by the companion VlanBridge's id. The
// coordinator emits that branch directly as a port-set output; the
// VlanBridge processor does not run for it.
func forkToVlanBridge(br *topology.Bridge, pctx *simctx.Context, primary action.Action) action.Action {
	if br.VlanBridgeID == "" || len(br.VlanPortMap) == 0 {
		return primary
	}
	vlans := pctx.Current().Vlans()
	if len(vlans) == 0 {
		return primary
	}
	outer := vlans[0]
	trunkPort, ok := br.VlanPortMap[outer.ID]
	if !ok || primary.Kind != action.KindToPort || primary.PortID != trunkPort {
		return primary
	}
	return action.Fork(action.ToPortSet(br.VlanBridgeID), primary)
}

func isBroadcastOrMulticast(mac net.HardwareAddr) bool {
	if mac == nil {
		return true
	}
	if len(mac) != 6 {
		return false
	}
	if [6]byte{mac[0], mac[1], mac[2], mac[3], mac[4], mac[5]} == broadcastMAC {
		return true
	}
	return mac[0]&0x01 == 1
}

// processVlanBridge fans a frame already forked from a Bridge trunk
// port out to the per-VLAN port set addressed by the frame's outer tag
// (spec §4.4.4).
func (b *Bridge) processVlanBridge(pctx *simctx.Context, vb *topology.VlanBridge) (action.Action, error) {
	vlans := pctx.Current().Vlans()
	if len(vlans) == 0 {
		pctx.Trace(vb.ID, "untagged frame at vlan bridge, dropping")
		return action.Drop(false), nil
	}
	portSetID, ok := vb.VlanPortSets[vlans[0].ID]
	if !ok {
		pctx.Trace(vb.ID, "no port set for vlan %v, dropping", vlans[0].ID)
		return action.Drop(false), nil
	}
	return action.ToPortSet(portSetID), nil
}
