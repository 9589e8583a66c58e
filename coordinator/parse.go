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

package coordinator

import (
	"fmt"

	"github.com/superkkt/midonet-sim/match"
	"github.com/superkkt/midonet-sim/protocol"
)

const (
	ethTypeARP  = 0x0806
	ethTypeIPv4 = 0x0800
	ethTypeIPv6 = 0x86DD

	ipProtoICMPv4 = 1
	ipProtoTCP    = 6
	ipProtoUDP    = 17
	ipProtoICMPv6 = 58
)

// matchFromEthernet builds the match key a generated packet would have
// carried had it arrived from the datapath, so Emit can queue it
// through the same egress_port path a real packet uses. Mirrors
// device/router.go's own simplification: an ICMPv6 neighbor
// solicitation/advertisement's target address travels in IcmpData
// rather than a parsed NDP option.
func matchFromEthernet(eth *protocol.Ethernet) (*match.Match, error) {
	m := match.New()
	m.SetEthSrc(eth.SrcMAC)
	m.SetEthDst(eth.DstMAC)
	m.SetEthType(eth.Type)

	for _, tag := range eth.Tags {
		m.PushVlan(match.VlanTag{ID: tag.TCI & 0x0FFF, Present: tag.TCI&0x1000 != 0})
	}

	switch eth.Type {
	case ethTypeARP:
		return parseARP(m, eth.Payload)
	case ethTypeIPv4:
		return parseIPv4(m, eth.Payload)
	case ethTypeIPv6:
		return parseIPv6(m, eth.Payload)
	default:
		return m, nil
	}
}

func parseARP(m *match.Match, payload []byte) (*match.Match, error) {
	var a protocol.ARP
	if err := a.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("parsing generated ARP packet: %w", err)
	}

	m.SetArpOp(a.Operation)
	m.SetArpSpa(a.SPA)
	m.SetArpTpa(a.TPA)
	m.SetArpSha(a.SHA)
	m.SetArpTha(a.THA)
	return m, nil
}

func parseIPv4(m *match.Match, payload []byte) (*match.Match, error) {
	var ip protocol.IPv4
	if err := ip.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("parsing generated IPv4 packet: %w", err)
	}

	m.SetIPv4Src(ip.SrcIP)
	m.SetIPv4Dst(ip.DstIP)
	m.SetIPProto(ip.Protocol)
	m.SetIPTOS(ip.DSCP<<2 | ip.ECN)
	m.SetIPTTL(ip.TTL)
	m.SetFragType(fragTypeOf(ip.Flags, ip.Offset))

	switch ip.Protocol {
	case ipProtoTCP:
		var tcp protocol.TCP
		if err := tcp.UnmarshalBinary(ip.Payload); err != nil {
			return nil, fmt.Errorf("parsing generated TCP segment: %w", err)
		}
		m.SetTpSrc(tcp.SrcPort)
		m.SetTpDst(tcp.DstPort)
	case ipProtoUDP:
		var udp protocol.UDP
		if err := udp.UnmarshalBinary(ip.Payload); err != nil {
			return nil, fmt.Errorf("parsing generated UDP datagram: %w", err)
		}
		m.SetTpSrc(udp.SrcPort)
		m.SetTpDst(udp.DstPort)
		if udp.IsDHCP() {
			var dhcp protocol.DHCP
			if err := dhcp.UnmarshalBinary(udp.Payload); err == nil {
				if t, ok := dhcp.MessageType(); ok {
					m.SetDHCPMsgType(t)
				}
			}
		}
	case ipProtoICMPv4:
		if len(ip.Payload) < 2 {
			return nil, fmt.Errorf("parsing generated ICMP message: short packet")
		}
		m.SetIcmpType(ip.Payload[0])
		m.SetIcmpCode(ip.Payload[1])
	}

	return m, nil
}

func parseIPv6(m *match.Match, payload []byte) (*match.Match, error) {
	var ip protocol.IPv6
	if err := ip.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("parsing generated IPv6 packet: %w", err)
	}

	m.SetIPv6Src(ip.SrcIP)
	m.SetIPv6Dst(ip.DstIP)
	m.SetIPProto(ip.NextHeader)
	m.SetIPTTL(ip.HopLimit)

	if ip.NextHeader != ipProtoICMPv6 {
		return m, nil
	}

	var icmp protocol.ICMPv6Error
	if err := icmp.UnmarshalBinary(ip.Payload); err != nil {
		return nil, fmt.Errorf("parsing generated ICMPv6 message: %w", err)
	}
	m.SetIcmpType(icmp.Type)
	m.SetIcmpCode(icmp.Code)
	m.SetIcmpData(icmp.Original)

	return m, nil
}

// fragTypeOf derives the fragmentation state the teacher's IPv4 codec
// exposes as raw Flags/Offset bits: offset 0 and more-fragments unset
// means an unfragmented or last-fragment-consumed datagram, offset 0
// with more-fragments set is the first fragment, any nonzero offset is
// a later fragment.
func fragTypeOf(flags uint8, offset uint16) match.FragType {
	const moreFragments = 0x1
	switch {
	case offset != 0:
		return match.FragLater
	case flags&moreFragments != 0:
		return match.FragFirst
	default:
		return match.FragNone
	}
}
