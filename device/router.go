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

	"github.com/superkkt/midonet-sim/action"
	"github.com/superkkt/midonet-sim/cache"
	"github.com/superkkt/midonet-sim/config"
	"github.com/superkkt/midonet-sim/dhcpreply"
	"github.com/superkkt/midonet-sim/match"
	"github.com/superkkt/midonet-sim/protocol"
	"github.com/superkkt/midonet-sim/simctx"
	"github.com/superkkt/midonet-sim/topology"
)

const (
	icmpv6NeighborSolicitation  uint8 = 135
	icmpv6NeighborAdvertisement uint8 = 136

	udpProtocolNumber uint8 = 17
)

// Router implements the L3 forwarding behavior of spec §4.4: ARP/NDP
// self-resolution, TTL/hop-limit handling, longest-prefix routing,
// next-hop resolution, and ethernet rewrite, grounded on the teacher's
// reply construction in northbound/app/proxyarp/arp.go.
type Router struct {
	ARP *cache.ARPCache
}

func (r *Router) Process(ctx context.Context, pctx *simctx.Context, dev topology.Device, topoCache topology.Cache, cfg config.Tunables, gen GeneratedPacketEmitter) (action.Action, error) {
	rt, ok := dev.(*topology.Router)
	if !ok {
		return action.ErrorDrop(fmt.Sprintf("router processor given unexpected device kind %T", dev)), nil
	}

	m := pctx.Current()

	if m.IsARP() {
		return r.processARP(ctx, pctx, rt, gen, m)
	}
	if m.IsIPv6() {
		if icmpType, ok := m.IcmpType(); ok && icmpType == icmpv6NeighborSolicitation {
			return r.processNeighborSolicitation(ctx, pctx, rt, gen, m)
		}
	}
	if m.IsIPv4() {
		if proto, ok := m.IPProto(); ok && proto == udpProtocolNumber {
			if dstPort, ok := m.TpDst(); ok && dstPort == protocol.DHCPServerPort {
				return r.processDHCP(ctx, pctx, rt, gen, m)
			}
		}
	}
	if !m.IsIPv4() && !m.IsIPv6() {
		pctx.Trace(rt.ID, "non-IP ethertype, yielding wider wildcard")
		return action.NotIPv4(), nil
	}

	inPortID, _ := m.InPort()

	if frag, ok := m.FragType(); ok && frag == match.FragFirst && m.IsIPv4() {
		pctx.Trace(rt.ID, "first fragment, emitting frag-needed")
		if err := r.emitError(ctx, pctx, rt, gen, inPortID, protocol.ICMPTypeUnreachable, protocol.ICMPCodeFragNeeded, protocol.ICMPv6TypeUnreachable); err != nil {
			return action.Action{}, err
		}
		return action.Drop(true), nil
	}

	if ttl, hasTTL := m.IPTTL(); hasTTL {
		if ttl <= 1 {
			pctx.Trace(rt.ID, "ttl exceeded")
			if err := r.emitError(ctx, pctx, rt, gen, inPortID, protocol.ICMPTypeTimeExceeded, protocol.ICMPCodeTTLExceeded, protocol.ICMPv6TypeTimeExceeded); err != nil {
				return action.Action{}, err
			}
			return action.Drop(false), nil
		}
		m.SetIPTTL(ttl - 1)
	}

	dst := destinationAddress(m)
	if dst == nil {
		return action.ErrorDrop("router saw an IP packet with no destination address"), nil
	}

	route, ok := rt.LookupRoute(dst)
	if !ok {
		pctx.Trace(rt.ID, "no route to %v", dst)
		if err := r.emitError(ctx, pctx, rt, gen, inPortID, protocol.ICMPTypeUnreachable, protocol.ICMPCodeNetUnreachable, protocol.ICMPv6TypeUnreachable); err != nil {
			return action.Action{}, err
		}
		return action.Drop(false), nil
	}
	if route.Local {
		pctx.Trace(rt.ID, "destination %v is local, dropping", dst)
		return action.Drop(false), nil
	}

	nextHop := route.NextHop
	if nextHop == nil {
		nextHop = dst
	}

	entry, resolved := r.ARP.Lookup(rt.ID, nextHop)
	if !resolved || entry.Pending {
		if !resolved {
			pctx.Trace(rt.ID, "next hop %v unresolved, triggering resolution", nextHop)
			r.ARP.MarkPending(rt.ID, nextHop)
			if err := r.emitResolutionRequest(ctx, pctx, rt, gen, route.OutPort, nextHop, m.IsIPv6()); err != nil {
				return action.Action{}, err
			}
		} else {
			pctx.Trace(rt.ID, "next hop %v resolution already pending", nextHop)
		}
		// Temporary drop: a short hard expiration (spec §4.5's 5_000ms
		// policy) causes the datapath to resubmit the next packet of
		// this flow once the ARP/NDP entry resolves.
		return action.Drop(true), nil
	}

	egressAddr, ok := rt.PortAddresses[route.OutPort]
	if !ok {
		return action.ErrorDrop(fmt.Sprintf("router %v missing port address for egress port %v", rt.ID, route.OutPort)), nil
	}

	m.SetEthSrc(egressAddr.MAC)
	m.SetEthDst(entry.MAC)
	pctx.Trace(rt.ID, "forwarding to %v via port %v, next hop mac %v", dst, route.OutPort, entry.MAC)

	return action.ToPort(route.OutPort), nil
}

func destinationAddress(m *match.Match) net.IP {
	if m.IsIPv6() {
		dst, _ := m.IPv6Dst()
		return dst
	}
	dst, _ := m.IPv4Dst()
	return dst
}

// processARP answers an ARP request whose target address is one of
// this router's own port addresses (spec §4.4 step 2); any other ARP
// traffic is dropped, mirroring the teacher's announcement/non-request
// filtering in proxyarp.OnPacketIn.
func (r *Router) processARP(ctx context.Context, pctx *simctx.Context, rt *topology.Router, gen GeneratedPacketEmitter, m *match.Match) (action.Action, error) {
	op, _ := m.ArpOp()
	if op != protocol.ArpOperationRequest {
		pctx.Trace(rt.ID, "dropping non-request arp")
		return action.Drop(false), nil
	}

	tpa := m.ArpTpa()
	portID, addr, ok := findPortAddressByIPv4(rt, tpa)
	if !ok {
		pctx.Trace(rt.ID, "arp request for %v doesn't match any port address, dropping", tpa)
		return action.Drop(false), nil
	}

	sha := m.ArpSha()
	spa := m.ArpSpa()
	reply := protocol.NewARPReply(addr.MAC, sha, tpa, spa)
	replyBytes, err := reply.MarshalBinary()
	if err != nil {
		return action.Action{}, err
	}

	eth := &protocol.Ethernet{
		SrcMAC:  addr.MAC,
		DstMAC:  sha,
		Type:    0x0806,
		Payload: replyBytes,
	}
	inPortID, _ := m.InPort()
	if err := gen.Emit(ctx, eth, inPortID); err != nil {
		return action.Action{}, err
	}
	r.ARP.Resolve(rt.ID, spa, sha)

	pctx.Trace(rt.ID, "answered arp for %v on port %v", tpa, portID)
	return action.Consumed(), nil
}

// processDHCP answers a DISCOVER or REQUEST addressed to this router's
// DHCP server port (spec §7's supplemented DHCP path): the match's
// DHCPMsgType stands in for the request's option-53 byte the same way
// ArpOp stands in for an ARP packet's opcode, and dhcpreply.BuildReply
// picks OFFER vs ACK the way proxyarp picks request vs announcement.
func (r *Router) processDHCP(ctx context.Context, pctx *simctx.Context, rt *topology.Router, gen GeneratedPacketEmitter, m *match.Match) (action.Action, error) {
	msgType, ok := m.DHCPMsgType()
	if !ok {
		pctx.Trace(rt.ID, "dhcp packet missing message type, dropping")
		return action.Drop(false), nil
	}

	clientMAC, _ := m.EthSrc()
	lease, ok := rt.DHCPLeases[clientMAC.String()]
	if !ok {
		pctx.Trace(rt.ID, "no dhcp lease configured for %v, dropping", clientMAC)
		return action.Drop(false), nil
	}

	ciaddr := net.IPv4zero
	if ip, ok := m.IPv4Src(); ok && ip != nil {
		ciaddr = ip
	}
	req := &protocol.DHCP{
		Op:     protocol.DHCPOpcodeRequest,
		CHAddr: clientMAC,
		CIAddr: ciaddr,
		Options: []protocol.DHCPOption{
			{Code: protocol.DHCPOptionMessageType, Value: []byte{msgType}},
		},
	}

	eth, err := dhcpreply.BuildReply(req, lease)
	if err != nil {
		pctx.Trace(rt.ID, "dhcp reply for %v failed: %v", clientMAC, err)
		return action.Drop(false), nil
	}

	inPortID, _ := m.InPort()
	if err := gen.Emit(ctx, eth, inPortID); err != nil {
		return action.Action{}, err
	}

	pctx.Trace(rt.ID, "answered dhcp message type %v for %v on port %v", msgType, clientMAC, inPortID)
	return action.Consumed(), nil
}

func findPortAddressByIPv4(rt *topology.Router, ip net.IP) (uint32, topology.PortAddress, bool) {
	for port, addr := range rt.PortAddresses {
		if addr.IPv4 != nil && addr.IPv4.Equal(ip) {
			return port, addr, true
		}
	}
	return 0, topology.PortAddress{}, false
}

func findPortAddressByIPv6(rt *topology.Router, ip net.IP) (uint32, topology.PortAddress, bool) {
	for port, addr := range rt.PortAddresses {
		if addr.IPv6 != nil && addr.IPv6.Equal(ip) {
			return port, addr, true
		}
	}
	return 0, topology.PortAddress{}, false
}

// processNeighborSolicitation is IPv6's ARP equivalent (spec §7's
// supplemented dual-stack path): the NDP target address travels in
// the match's ICMP data field since match carries no dedicated NDP
// option fields, mirroring how ArpTpa carries ARP's target address.
func (r *Router) processNeighborSolicitation(ctx context.Context, pctx *simctx.Context, rt *topology.Router, gen GeneratedPacketEmitter, m *match.Match) (action.Action, error) {
	target := net.IP(m.IcmpData())
	portID, addr, ok := findPortAddressByIPv6(rt, target)
	if !ok {
		pctx.Trace(rt.ID, "neighbor solicitation for %v doesn't match any port address, dropping", target)
		return action.Drop(false), nil
	}

	src, _ := m.IPv6Src()
	ethSrc, _ := m.EthSrc()

	na := protocol.NewICMPv6Error(icmpv6NeighborAdvertisement, 0, append(net.IP(nil), target...))
	naBytes, err := na.MarshalBinary(addr.IPv6, src)
	if err != nil {
		return action.Action{}, err
	}
	ip := protocol.NewIPv6(addr.IPv6, src, 255, icmpv6NextHeaderNumber, naBytes)
	ipBytes, err := ip.MarshalBinary()
	if err != nil {
		return action.Action{}, err
	}

	eth := &protocol.Ethernet{
		SrcMAC:  addr.MAC,
		DstMAC:  ethSrc,
		Type:    0x86DD,
		Payload: ipBytes,
	}
	inPortID, _ := m.InPort()
	if err := gen.Emit(ctx, eth, inPortID); err != nil {
		return action.Action{}, err
	}
	r.ARP.Resolve(rt.ID, src, ethSrc)

	pctx.Trace(rt.ID, "answered neighbor solicitation for %v on port %v", target, portID)
	return action.Consumed(), nil
}

// emitError synthesizes an ICMP (v4) or ICMPv6 (v6) error and hands it
// to the generated-packet emitter addressed back out the ingress port
// (spec §4.4 steps 3-4). The "original datagram" fragment is rebuilt
// from the match's own header fields since this model carries no raw
// wire bytes.
func (r *Router) emitError(ctx context.Context, pctx *simctx.Context, rt *topology.Router, gen GeneratedPacketEmitter, ingressPort uint32, v4Type, v4Code uint8, v6Type uint8) error {
	m := pctx.Current()
	portAddr, ok := rt.PortAddresses[ingressPort]
	if !ok {
		return fmt.Errorf("router %v has no address configured on ingress port %v", rt.ID, ingressPort)
	}

	if m.IsIPv6() {
		src, _ := m.IPv6Src()
		dst, _ := m.IPv6Dst()
		proto, _ := m.IPProto()
		hopLimit, _ := m.IPTTL()
		original, err := protocol.NewIPv6(dst, src, hopLimit, proto, nil).MarshalBinary()
		if err != nil {
			return err
		}
		errPkt := protocol.NewICMPv6Error(v6Type, 0, original)
		errBytes, err := errPkt.MarshalBinary(portAddr.IPv6, src)
		if err != nil {
			return err
		}
		ip := protocol.NewIPv6(portAddr.IPv6, src, 64, icmpv6NextHeaderNumber, errBytes)
		ipBytes, err := ip.MarshalBinary()
		if err != nil {
			return err
		}
		ethSrc, _ := m.EthSrc()
		eth := &protocol.Ethernet{SrcMAC: portAddr.MAC, DstMAC: ethSrc, Type: 0x86DD, Payload: ipBytes}
		return gen.Emit(ctx, eth, ingressPort)
	}

	src, _ := m.IPv4Src()
	dst, _ := m.IPv4Dst()
	proto, _ := m.IPProto()
	ttl, _ := m.IPTTL()
	original, err := protocol.NewIPv4(dst, src, ttl, proto, nil).MarshalBinary()
	if err != nil {
		return err
	}
	errPkt := protocol.NewICMPError(v4Type, v4Code, original)
	errBytes, err := errPkt.MarshalBinary()
	if err != nil {
		return err
	}
	ip := protocol.NewIPv4(portAddr.IPv4, src, 64, icmpv4ProtocolNumber, errBytes)
	ipBytes, err := ip.MarshalBinary()
	if err != nil {
		return err
	}
	ethSrc, _ := m.EthSrc()
	eth := &protocol.Ethernet{SrcMAC: portAddr.MAC, DstMAC: ethSrc, Type: 0x0800, Payload: ipBytes}
	return gen.Emit(ctx, eth, ingressPort)
}

const (
	icmpv4ProtocolNumber   uint8 = 1
	icmpv6NextHeaderNumber uint8 = 58
)

// emitResolutionRequest sends an ARP request (v4) or an ICMPv6
// Neighbor Solicitation (v6) for nextHop out egressPort.
func (r *Router) emitResolutionRequest(ctx context.Context, pctx *simctx.Context, rt *topology.Router, gen GeneratedPacketEmitter, egressPort uint32, nextHop net.IP, isV6 bool) error {
	addr, ok := rt.PortAddresses[egressPort]
	if !ok {
		return fmt.Errorf("router %v has no address configured on egress port %v", rt.ID, egressPort)
	}

	if isV6 {
		sol := protocol.NewICMPv6Error(icmpv6NeighborSolicitation, 0, append(net.IP(nil), nextHop...))
		solBytes, err := sol.MarshalBinary(addr.IPv6, nextHop)
		if err != nil {
			return err
		}
		ip := protocol.NewIPv6(addr.IPv6, nextHop, 255, icmpv6NextHeaderNumber, solBytes)
		ipBytes, err := ip.MarshalBinary()
		if err != nil {
			return err
		}
		eth := &protocol.Ethernet{SrcMAC: addr.MAC, DstMAC: net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, Type: 0x86DD, Payload: ipBytes}
		return gen.Emit(ctx, eth, egressPort)
	}

	req := protocol.NewARPRequest(addr.MAC, net.HardwareAddr{0, 0, 0, 0, 0, 0}, addr.IPv4, nextHop)
	reqBytes, err := req.MarshalBinary()
	if err != nil {
		return err
	}
	eth := &protocol.Ethernet{SrcMAC: addr.MAC, DstMAC: net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, Type: 0x0806, Payload: reqBytes}
	return gen.Emit(ctx, eth, egressPort)
}
