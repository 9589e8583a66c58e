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

package action

import "net"

// DatapathActionKind tags the variant of a DatapathAction (spec §6's
// wire shape). The netlink attribute encoding of these is a collaborator
// -- this package only defines the shape the coordinator hands off.
type DatapathActionKind uint8

const (
	DPOutput DatapathActionKind = iota
	DPPopVlan
	DPPushVlan
	DPSetKey
)

// SetKeyKind tags which key variant a DPSetKey action carries.
type SetKeyKind uint8

const (
	KeyEthernet SetKeyKind = iota
	KeyIPv4
	KeyIPv6
	KeyTcp
	KeyUdp
	KeyIcmpError
	KeyTunnel
)

type EthernetKey struct {
	Src, Dst net.HardwareAddr
}

type IPv4Key struct {
	Src, Dst net.IP
	Proto    uint8
	TOS      uint8
	TTL      uint8
}

type IPv6Key struct {
	Src, Dst net.IP
	Proto    uint8
	HopLimit uint8
}

type TcpKey struct {
	Src, Dst uint16
}

type UdpKey struct {
	Src, Dst uint16
}

// IcmpErrorKey carries a rewritten ICMP error header; only emitted for
// the type allow-list in spec §4.6 step 4.
type IcmpErrorKey struct {
	Type uint8
	Code uint8
	Data []byte
}

// TunnelKey carries VTEP/VXLAN egress parameters; VTEP ownership election
// itself is out of scope, but the wire shape still needs a home since the
// translator's SetKey union covers it (spec §6).
type TunnelKey struct {
	VNI      uint32
	Src, Dst net.IP
}

// DatapathAction is one entry of the ordered action list the coordinator
// returns in a SimulationResult.
type DatapathAction struct {
	Kind DatapathActionKind

	// DPOutput
	PortNo     uint32
	ToPortSet  bool

	// DPPushVlan
	TPID uint16
	TCI  uint16

	// DPSetKey
	SetKeyKind SetKeyKind
	Ethernet   EthernetKey
	IPv4       IPv4Key
	IPv6       IPv6Key
	Tcp        TcpKey
	Udp        UdpKey
	IcmpError  IcmpErrorKey
	Tunnel     TunnelKey
}

func Output(portNo uint32, toPortSet bool) DatapathAction {
	return DatapathAction{Kind: DPOutput, PortNo: portNo, ToPortSet: toPortSet}
}

func PopVlan() DatapathAction { return DatapathAction{Kind: DPPopVlan} }

func PushVlan(tpid, tci uint16) DatapathAction {
	return DatapathAction{Kind: DPPushVlan, TPID: tpid, TCI: tci}
}

func SetEthernet(src, dst net.HardwareAddr) DatapathAction {
	return DatapathAction{Kind: DPSetKey, SetKeyKind: KeyEthernet, Ethernet: EthernetKey{Src: src, Dst: dst}}
}

func SetIPv4(k IPv4Key) DatapathAction {
	return DatapathAction{Kind: DPSetKey, SetKeyKind: KeyIPv4, IPv4: k}
}

func SetIPv6(k IPv6Key) DatapathAction {
	return DatapathAction{Kind: DPSetKey, SetKeyKind: KeyIPv6, IPv6: k}
}

func SetTcp(k TcpKey) DatapathAction {
	return DatapathAction{Kind: DPSetKey, SetKeyKind: KeyTcp, Tcp: k}
}

func SetUdp(k UdpKey) DatapathAction {
	return DatapathAction{Kind: DPSetKey, SetKeyKind: KeyUdp, Udp: k}
}

func SetIcmpError(k IcmpErrorKey) DatapathAction {
	return DatapathAction{Kind: DPSetKey, SetKeyKind: KeyIcmpError, IcmpError: k}
}

func SetTunnel(k TunnelKey) DatapathAction {
	return DatapathAction{Kind: DPSetKey, SetKeyKind: KeyTunnel, Tunnel: k}
}

// ProviderBridgingTPID and StandardDot1QTPID are the two tag protocol ids
// the translator chooses between when pushing a VLAN tag (spec §4.6
// step 3): every push but the innermost uses the provider-bridging
// (802.1ad / Q-in-Q) TPID, the innermost uses the standard 802.1Q TPID.
const (
	ProviderBridgingTPID uint16 = 0x88A8
	StandardDot1QTPID    uint16 = 0x8100
)
