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
	"net"
	"testing"

	"github.com/superkkt/midonet-sim/action"
	"github.com/superkkt/midonet-sim/cache"
	"github.com/superkkt/midonet-sim/config"
	"github.com/superkkt/midonet-sim/dhcpreply"
	"github.com/superkkt/midonet-sim/match"
	"github.com/superkkt/midonet-sim/protocol"
	"github.com/superkkt/midonet-sim/simctx"
	"github.com/superkkt/midonet-sim/topology"
)

type recordingEmitter struct {
	emitted []recordedPacket
}

type recordedPacket struct {
	eth  *protocol.Ethernet
	port uint32
}

func (e *recordingEmitter) Emit(ctx context.Context, eth *protocol.Ethernet, egressPortID uint32) error {
	e.emitted = append(e.emitted, recordedPacket{eth: eth, port: egressPortID})
	return nil
}

func routerIPv4Ctx(inPort uint32, src, dst net.IP, ttl uint8) *simctx.Context {
	m := match.New()
	m.SetInPort(inPort)
	m.SetEthType(0x0800)
	m.SetEthSrc(net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01})
	m.SetEthDst(net.HardwareAddr{0x02, 0, 0, 0, 0, 0xfe})
	m.SetIPv4Src(src)
	m.SetIPv4Dst(dst)
	m.SetIPProto(6)
	m.SetIPTTL(ttl)
	return simctx.New(m, nil, false)
}

func TestRouterAnswersARPForOwnPortAddress(t *testing.T) {
	rt := &Router{ARP: cache.NewARPCache()}
	router := &topology.Router{
		ID: "r1",
		PortAddresses: map[uint32]topology.PortAddress{
			1: {IPv4: net.IPv4(10, 0, 0, 1), MAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xaa}},
		},
	}

	m := match.New()
	m.SetInPort(1)
	m.SetEthType(0x0806)
	m.SetArpOp(1)
	m.SetArpSpa(net.IPv4(10, 0, 0, 2))
	m.SetArpTpa(net.IPv4(10, 0, 0, 1))
	m.SetArpSha(net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02})
	pctx := simctx.New(m, nil, false)

	emitter := &recordingEmitter{}
	a, err := rt.Process(context.Background(), pctx, router, nil, config.Defaults(), emitter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindConsumed {
		t.Fatalf("an answered arp request must be consumed, got %+v", a)
	}
	if len(emitter.emitted) != 1 || emitter.emitted[0].port != 1 {
		t.Fatalf("expected exactly one reply emitted back out port 1, got %+v", emitter.emitted)
	}
	if _, resolved := rt.ARP.Lookup("r1", net.IPv4(10, 0, 0, 2)); !resolved {
		t.Fatalf("expected the requester's address to be opportunistically resolved")
	}
}

func TestRouterDropsARPForUnknownTarget(t *testing.T) {
	rt := &Router{ARP: cache.NewARPCache()}
	router := &topology.Router{ID: "r1", PortAddresses: map[uint32]topology.PortAddress{
		1: {IPv4: net.IPv4(10, 0, 0, 1), MAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xaa}},
	}}

	m := match.New()
	m.SetInPort(1)
	m.SetEthType(0x0806)
	m.SetArpOp(1)
	m.SetArpTpa(net.IPv4(10, 0, 0, 99))
	pctx := simctx.New(m, nil, false)

	a, err := rt.Process(context.Background(), pctx, router, nil, config.Defaults(), &recordingEmitter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindDrop {
		t.Fatalf("an arp request for an address the router doesn't own must drop, got %+v", a)
	}
}

func TestRouterYieldsNotIPv4ForOtherEtherTypes(t *testing.T) {
	rt := &Router{ARP: cache.NewARPCache()}
	router := &topology.Router{ID: "r1"}

	m := match.New()
	m.SetInPort(1)
	m.SetEthType(0x88cc)
	pctx := simctx.New(m, nil, false)

	a, err := rt.Process(context.Background(), pctx, router, nil, config.Defaults(), &recordingEmitter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindNotIPv4 {
		t.Fatalf("expected NotIPv4 for a non-IP ethertype, got %+v", a)
	}
}

func TestRouterEmitsTimeExceededWhenTTLExpires(t *testing.T) {
	rt := &Router{ARP: cache.NewARPCache()}
	router := &topology.Router{
		ID: "r1",
		PortAddresses: map[uint32]topology.PortAddress{
			1: {IPv4: net.IPv4(10, 0, 0, 1), MAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xaa}},
		},
	}
	pctx := routerIPv4Ctx(1, net.IPv4(10, 0, 0, 2), net.IPv4(10, 0, 1, 2), 1)

	emitter := &recordingEmitter{}
	a, err := rt.Process(context.Background(), pctx, router, nil, config.Defaults(), emitter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindDrop || a.Temporary {
		t.Fatalf("ttl exceeded must be a permanent drop, got %+v", a)
	}
	if len(emitter.emitted) != 1 {
		t.Fatalf("expected a time-exceeded icmp message to be emitted, got %+v", emitter.emitted)
	}
}

func TestRouterDropsWithoutRouteMatch(t *testing.T) {
	rt := &Router{ARP: cache.NewARPCache()}
	router := &topology.Router{
		ID: "r1",
		PortAddresses: map[uint32]topology.PortAddress{
			1: {IPv4: net.IPv4(10, 0, 0, 1), MAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xaa}},
		},
	}
	pctx := routerIPv4Ctx(1, net.IPv4(10, 0, 0, 2), net.IPv4(192, 168, 1, 5), 64)

	emitter := &recordingEmitter{}
	a, err := rt.Process(context.Background(), pctx, router, nil, config.Defaults(), emitter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindDrop || a.Temporary {
		t.Fatalf("an unroutable destination must be a permanent drop, got %+v", a)
	}
	if len(emitter.emitted) != 1 {
		t.Fatalf("expected a net-unreachable icmp message to be emitted, got %+v", emitter.emitted)
	}
}

func TestRouterTriggersResolutionAndTemporaryDropsOnUnresolvedNextHop(t *testing.T) {
	rt := &Router{ARP: cache.NewARPCache()}
	_, destNet, _ := net.ParseCIDR("192.168.1.0/24")
	router := &topology.Router{
		ID: "r1",
		Routes: []topology.Route{
			{Destination: *destNet, OutPort: 2},
		},
		PortAddresses: map[uint32]topology.PortAddress{
			1: {IPv4: net.IPv4(10, 0, 0, 1), MAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xaa}},
			2: {IPv4: net.IPv4(192, 168, 1, 1), MAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xbb}},
		},
	}
	pctx := routerIPv4Ctx(1, net.IPv4(10, 0, 0, 2), net.IPv4(192, 168, 1, 5), 64)

	emitter := &recordingEmitter{}
	a, err := rt.Process(context.Background(), pctx, router, nil, config.Defaults(), emitter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindDrop || !a.Temporary {
		t.Fatalf("an unresolved next hop must be a temporary drop, got %+v", a)
	}
	if len(emitter.emitted) != 1 || emitter.emitted[0].port != 2 {
		t.Fatalf("expected an arp request emitted out the route's egress port, got %+v", emitter.emitted)
	}
	if _, pending := rt.ARP.Lookup("r1", net.IPv4(192, 168, 1, 5)); !pending {
		t.Fatalf("expected the next hop to be marked pending")
	}
}

func TestRouterForwardsOnceNextHopResolved(t *testing.T) {
	rt := &Router{ARP: cache.NewARPCache()}
	_, destNet, _ := net.ParseCIDR("192.168.1.0/24")
	router := &topology.Router{
		ID: "r1",
		Routes: []topology.Route{
			{Destination: *destNet, OutPort: 2},
		},
		PortAddresses: map[uint32]topology.PortAddress{
			1: {IPv4: net.IPv4(10, 0, 0, 1), MAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xaa}},
			2: {IPv4: net.IPv4(192, 168, 1, 1), MAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xbb}},
		},
	}
	nextHopMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0xcc}
	rt.ARP.Resolve("r1", net.IPv4(192, 168, 1, 5), nextHopMAC)

	pctx := routerIPv4Ctx(1, net.IPv4(10, 0, 0, 2), net.IPv4(192, 168, 1, 5), 64)

	a, err := rt.Process(context.Background(), pctx, router, nil, config.Defaults(), &recordingEmitter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindToPort || a.PortID != 2 {
		t.Fatalf("expected forwarding out port 2, got %+v", a)
	}
	if dst, _ := pctx.Current().EthDst(); dst.String() != nextHopMAC.String() {
		t.Fatalf("expected the ethernet destination to be rewritten to the next hop's mac, got %v", dst)
	}
	if ttl, _ := pctx.Current().IPTTL(); ttl != 63 {
		t.Fatalf("expected the ttl to be decremented, got %v", ttl)
	}
}

func TestRouterDropsDestinationLocalToItself(t *testing.T) {
	rt := &Router{ARP: cache.NewARPCache()}
	_, destNet, _ := net.ParseCIDR("10.0.0.0/24")
	router := &topology.Router{
		ID:     "r1",
		Routes: []topology.Route{{Destination: *destNet, Local: true}},
		PortAddresses: map[uint32]topology.PortAddress{
			1: {IPv4: net.IPv4(10, 0, 0, 1), MAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xaa}},
		},
	}
	pctx := routerIPv4Ctx(1, net.IPv4(10, 0, 0, 2), net.IPv4(10, 0, 0, 1), 64)

	a, err := rt.Process(context.Background(), pctx, router, nil, config.Defaults(), &recordingEmitter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindDrop || a.Temporary {
		t.Fatalf("a locally-destined packet must be a permanent drop, got %+v", a)
	}
}

func TestRouterAnswersDHCPDiscoverWithOffer(t *testing.T) {
	rt := &Router{ARP: cache.NewARPCache()}
	clientMAC := net.HardwareAddr{0x02, 0xdd, 0xaa, 0xdd, 0xaa, 0x03}
	router := &topology.Router{
		ID: "r1",
		DHCPLeases: map[string]dhcpreply.Lease{
			clientMAC.String(): {
				ClientIP:  net.IPv4(192, 168, 222, 2),
				Mask:      net.IPv4Mask(255, 255, 255, 0),
				Gateway:   net.IPv4(192, 168, 222, 1),
				DNS:       []net.IP{net.IPv4(192, 168, 222, 1)},
				ServerIP:  net.IPv4(192, 168, 222, 1),
				ServerMAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xaa},
			},
		},
	}

	m := match.New()
	m.SetInPort(1)
	m.SetEthSrc(clientMAC)
	m.SetEthDst(net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	m.SetEthType(0x0800)
	m.SetIPv4Src(net.IPv4(0, 0, 0, 0))
	m.SetIPv4Dst(net.IPv4(255, 255, 255, 255))
	m.SetIPProto(17)
	m.SetTpSrc(protocol.DHCPClientPort)
	m.SetTpDst(protocol.DHCPServerPort)
	m.SetDHCPMsgType(protocol.DHCPMsgTypeDiscover)
	pctx := simctx.New(m, nil, false)

	emitter := &recordingEmitter{}
	a, err := rt.Process(context.Background(), pctx, router, nil, config.Defaults(), emitter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindConsumed {
		t.Fatalf("an answered dhcp discover must be consumed, got %+v", a)
	}
	if len(emitter.emitted) != 1 || emitter.emitted[0].port != 1 {
		t.Fatalf("expected exactly one offer emitted back out the ingress port, got %+v", emitter.emitted)
	}

	var ip protocol.IPv4
	if err := ip.UnmarshalBinary(emitter.emitted[0].eth.Payload); err != nil {
		t.Fatalf("unmarshaling ipv4 packet: %v", err)
	}
	var udp protocol.UDP
	if err := udp.UnmarshalBinary(ip.Payload); err != nil {
		t.Fatalf("unmarshaling udp datagram: %v", err)
	}
	var dhcp protocol.DHCP
	if err := dhcp.UnmarshalBinary(udp.Payload); err != nil {
		t.Fatalf("unmarshaling dhcp message: %v", err)
	}

	if !dhcp.YIAddr.Equal(net.IPv4(192, 168, 222, 2)) {
		t.Fatalf("expected yiaddr=192.168.222.2, got %v", dhcp.YIAddr)
	}
	if !dhcp.SIAddr.Equal(net.IPv4(192, 168, 222, 1)) {
		t.Fatalf("expected siaddr=192.168.222.1, got %v", dhcp.SIAddr)
	}
	msgType, ok := dhcp.MessageType()
	if !ok || msgType != protocol.DHCPMsgTypeOffer {
		t.Fatalf("expected message type OFFER, got %v ok=%v", msgType, ok)
	}
}

func TestRouterAnswersNeighborSolicitation(t *testing.T) {
	rt := &Router{ARP: cache.NewARPCache()}
	ownIP := net.ParseIP("fe80::1")
	router := &topology.Router{
		ID: "r1",
		PortAddresses: map[uint32]topology.PortAddress{
			1: {IPv6: ownIP, MAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xaa}},
		},
	}

	solicitorIP := net.ParseIP("fe80::2")
	solicitorMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02}
	m := match.New()
	m.SetInPort(1)
	m.SetEthType(0x86DD)
	m.SetEthSrc(solicitorMAC)
	m.SetIPv6Src(solicitorIP)
	m.SetIcmpType(135)
	m.SetIcmpData(append(net.IP(nil), ownIP...))
	pctx := simctx.New(m, nil, false)

	emitter := &recordingEmitter{}
	a, err := rt.Process(context.Background(), pctx, router, nil, config.Defaults(), emitter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindConsumed {
		t.Fatalf("an answered solicitation must be consumed, got %+v", a)
	}
	if len(emitter.emitted) != 1 || emitter.emitted[0].port != 1 {
		t.Fatalf("expected one advertisement emitted back out port 1, got %+v", emitter.emitted)
	}
	if _, resolved := rt.ARP.Lookup("r1", solicitorIP); !resolved {
		t.Fatalf("expected the solicitor's address to be opportunistically resolved")
	}
}
