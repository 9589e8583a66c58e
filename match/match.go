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

// Package match implements the wildcard match key that flows through a
// simulation: a mutable set of header fields where each field tracks its
// own presence independently of its value.
package match

import (
	"bytes"
	"net"
)

// FragType is the IP fragmentation state of a packet.
type FragType uint8

const (
	FragNone FragType = iota
	FragFirst
	FragLater
)

// VlanTag is one entry of an ordered 802.1Q/802.1ad tag stack. ID is the
// low 12 bits of the TCI; Present mirrors bit 0x1000 of the wire value.
type VlanTag struct {
	ID      uint16
	Present bool
}

// TCI returns the wire representation of the tag: the 12-bit VLAN ID
// OR'd with the presence bit, per the translator's encoding in spec §4.6.
func (t VlanTag) TCI() uint16 {
	v := t.ID & 0x0FFF
	if t.Present {
		v |= 0x1000
	}
	return v
}

// Match is the per-simulation wildcard match key. Every field has an
// independent has* flag: an unset field is not the same as a zero-valued
// one. Match is never safe for concurrent mutation; callers that must
// keep a stable copy (e.g. around a mutation that must be preserved for
// diff computation) call Clone first.
type Match struct {
	hasInPort bool
	inPort    uint32

	hasEthSrc bool
	ethSrc    net.HardwareAddr
	hasEthDst bool
	ethDst    net.HardwareAddr

	hasEthType bool
	ethType    uint16

	vlans []VlanTag

	hasIPv4Src bool
	ipv4Src    net.IP
	hasIPv4Dst bool
	ipv4Dst    net.IP

	hasIPv6Src bool
	ipv6Src    net.IP
	hasIPv6Dst bool
	ipv6Dst    net.IP

	hasIPProto bool
	ipProto    uint8
	hasIPTOS   bool
	ipTOS      uint8
	hasIPTTL   bool
	ipTTL      uint8
	hasFrag    bool
	fragType   FragType

	hasTpSrc bool
	tpSrc    uint16
	hasTpDst bool
	tpDst    uint16

	hasIcmpType bool
	icmpType    uint8
	hasIcmpCode bool
	icmpCode    uint8
	icmpData    []byte

	hasArpOp bool
	arpOp    uint16
	arpSpa   net.IP
	arpTpa   net.IP
	arpSha   net.HardwareAddr
	arpTha   net.HardwareAddr

	// hasDHCPMsgType carries DHCP option 53 the same way the ARP fields
	// above carry an ARP packet's opcode: the router processor needs to
	// tell a DISCOVER from a REQUEST to pick OFFER vs ACK, and that bit
	// of the DHCP payload isn't part of any other wildcard field.
	hasDHCPMsgType bool
	dhcpMsgType    uint8

	portGroups map[uint32]bool
}

// New returns an empty match with no fields present.
func New() *Match {
	return &Match{}
}

// Clone performs an O(fields) deep copy so the receiver's later mutations
// never leak into the copy.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.ethSrc = cloneMAC(m.ethSrc)
	c.ethDst = cloneMAC(m.ethDst)
	c.ipv4Src = cloneIP(m.ipv4Src)
	c.ipv4Dst = cloneIP(m.ipv4Dst)
	c.ipv6Src = cloneIP(m.ipv6Src)
	c.ipv6Dst = cloneIP(m.ipv6Dst)
	if m.vlans != nil {
		c.vlans = append([]VlanTag(nil), m.vlans...)
	}
	if m.icmpData != nil {
		c.icmpData = append([]byte(nil), m.icmpData...)
	}
	c.arpSpa = cloneIP(m.arpSpa)
	c.arpTpa = cloneIP(m.arpTpa)
	c.arpSha = cloneMAC(m.arpSha)
	c.arpTha = cloneMAC(m.arpTha)
	if m.portGroups != nil {
		c.portGroups = make(map[uint32]bool, len(m.portGroups))
		for k, v := range m.portGroups {
			c.portGroups[k] = v
		}
	}
	return &c
}

func cloneMAC(v net.HardwareAddr) net.HardwareAddr {
	if v == nil {
		return nil
	}
	return append(net.HardwareAddr(nil), v...)
}

func cloneIP(v net.IP) net.IP {
	if v == nil {
		return nil
	}
	return append(net.IP(nil), v...)
}

// Equals reports whether the set of present fields and their values
// coincide between m and other.
func (m *Match) Equals(other *Match) bool {
	if m == nil || other == nil {
		return m == other
	}

	if m.hasInPort != other.hasInPort || (m.hasInPort && m.inPort != other.inPort) {
		return false
	}
	if m.hasEthSrc != other.hasEthSrc || (m.hasEthSrc && !bytes.Equal(m.ethSrc, other.ethSrc)) {
		return false
	}
	if m.hasEthDst != other.hasEthDst || (m.hasEthDst && !bytes.Equal(m.ethDst, other.ethDst)) {
		return false
	}
	if m.hasEthType != other.hasEthType || (m.hasEthType && m.ethType != other.ethType) {
		return false
	}
	if !vlansEqual(m.vlans, other.vlans) {
		return false
	}
	if m.hasIPv4Src != other.hasIPv4Src || (m.hasIPv4Src && !m.ipv4Src.Equal(other.ipv4Src)) {
		return false
	}
	if m.hasIPv4Dst != other.hasIPv4Dst || (m.hasIPv4Dst && !m.ipv4Dst.Equal(other.ipv4Dst)) {
		return false
	}
	if m.hasIPv6Src != other.hasIPv6Src || (m.hasIPv6Src && !m.ipv6Src.Equal(other.ipv6Src)) {
		return false
	}
	if m.hasIPv6Dst != other.hasIPv6Dst || (m.hasIPv6Dst && !m.ipv6Dst.Equal(other.ipv6Dst)) {
		return false
	}
	if m.hasIPProto != other.hasIPProto || (m.hasIPProto && m.ipProto != other.ipProto) {
		return false
	}
	if m.hasIPTOS != other.hasIPTOS || (m.hasIPTOS && m.ipTOS != other.ipTOS) {
		return false
	}
	if m.hasIPTTL != other.hasIPTTL || (m.hasIPTTL && m.ipTTL != other.ipTTL) {
		return false
	}
	if m.hasFrag != other.hasFrag || (m.hasFrag && m.fragType != other.fragType) {
		return false
	}
	if m.hasTpSrc != other.hasTpSrc || (m.hasTpSrc && m.tpSrc != other.tpSrc) {
		return false
	}
	if m.hasTpDst != other.hasTpDst || (m.hasTpDst && m.tpDst != other.tpDst) {
		return false
	}
	if m.hasIcmpType != other.hasIcmpType || (m.hasIcmpType && m.icmpType != other.icmpType) {
		return false
	}
	if m.hasIcmpCode != other.hasIcmpCode || (m.hasIcmpCode && m.icmpCode != other.icmpCode) {
		return false
	}
	if !bytes.Equal(m.icmpData, other.icmpData) {
		return false
	}
	if m.hasArpOp != other.hasArpOp || (m.hasArpOp && m.arpOp != other.arpOp) {
		return false
	}
	if m.hasDHCPMsgType != other.hasDHCPMsgType || (m.hasDHCPMsgType && m.dhcpMsgType != other.dhcpMsgType) {
		return false
	}
	if !m.arpSpa.Equal(other.arpSpa) || !m.arpTpa.Equal(other.arpTpa) {
		return false
	}
	if !bytes.Equal(m.arpSha, other.arpSha) || !bytes.Equal(m.arpTha, other.arpTha) {
		return false
	}
	if !portGroupsEqual(m.portGroups, other.portGroups) {
		return false
	}

	return true
}

func vlansEqual(a, b []VlanTag) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func portGroupsEqual(a, b map[uint32]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// --- InPort ---

func (m *Match) InPort() (uint32, bool) { return m.inPort, m.hasInPort }
func (m *Match) SetInPort(v uint32)     { m.inPort, m.hasInPort = v, true }
func (m *Match) UnsetInPort()           { m.hasInPort = false }

// --- Ethernet ---

func (m *Match) EthSrc() (net.HardwareAddr, bool) { return m.ethSrc, m.hasEthSrc }
func (m *Match) SetEthSrc(v net.HardwareAddr)      { m.ethSrc, m.hasEthSrc = v, true }
func (m *Match) EthDst() (net.HardwareAddr, bool)  { return m.ethDst, m.hasEthDst }
func (m *Match) SetEthDst(v net.HardwareAddr)      { m.ethDst, m.hasEthDst = v, true }
func (m *Match) EthType() (uint16, bool)           { return m.ethType, m.hasEthType }
func (m *Match) SetEthType(v uint16)               { m.ethType, m.hasEthType = v, true }

// --- VLAN stack ---

// Vlans returns the ordered VLAN tag stack, outermost first.
func (m *Match) Vlans() []VlanTag { return m.vlans }

// SetVlans replaces the VLAN tag stack wholesale.
func (m *Match) SetVlans(v []VlanTag) { m.vlans = v }

// PushVlan pushes a new innermost tag (appends to the stack).
func (m *Match) PushVlan(t VlanTag) { m.vlans = append(m.vlans, t) }

// PopVlan removes and returns the innermost tag, if any.
func (m *Match) PopVlan() (VlanTag, bool) {
	if len(m.vlans) == 0 {
		return VlanTag{}, false
	}
	t := m.vlans[len(m.vlans)-1]
	m.vlans = m.vlans[:len(m.vlans)-1]
	return t, true
}

// --- IPv4 / IPv6 ---

func (m *Match) IPv4Src() (net.IP, bool) { return m.ipv4Src, m.hasIPv4Src }
func (m *Match) SetIPv4Src(v net.IP)     { m.ipv4Src, m.hasIPv4Src = v, true }
func (m *Match) IPv4Dst() (net.IP, bool) { return m.ipv4Dst, m.hasIPv4Dst }
func (m *Match) SetIPv4Dst(v net.IP)     { m.ipv4Dst, m.hasIPv4Dst = v, true }
func (m *Match) IPv6Src() (net.IP, bool) { return m.ipv6Src, m.hasIPv6Src }
func (m *Match) SetIPv6Src(v net.IP)     { m.ipv6Src, m.hasIPv6Src = v, true }
func (m *Match) IPv6Dst() (net.IP, bool) { return m.ipv6Dst, m.hasIPv6Dst }
func (m *Match) SetIPv6Dst(v net.IP)     { m.ipv6Dst, m.hasIPv6Dst = v, true }

// IsIPv6 reports whether the current ether type is the IPv6 ether type.
func (m *Match) IsIPv6() bool { return m.hasEthType && m.ethType == 0x86DD }

// IsIPv4 reports whether the current ether type is the IPv4 ether type.
func (m *Match) IsIPv4() bool { return m.hasEthType && m.ethType == 0x0800 }

// IsARP reports whether the current ether type is the ARP ether type.
func (m *Match) IsARP() bool { return m.hasEthType && m.ethType == 0x0806 }

func (m *Match) IPProto() (uint8, bool) { return m.ipProto, m.hasIPProto }
func (m *Match) SetIPProto(v uint8)     { m.ipProto, m.hasIPProto = v, true }
func (m *Match) IPTOS() (uint8, bool)   { return m.ipTOS, m.hasIPTOS }
func (m *Match) SetIPTOS(v uint8)       { m.ipTOS, m.hasIPTOS = v, true }
func (m *Match) IPTTL() (uint8, bool)   { return m.ipTTL, m.hasIPTTL }
func (m *Match) SetIPTTL(v uint8)       { m.ipTTL, m.hasIPTTL = v, true }

func (m *Match) FragType() (FragType, bool) { return m.fragType, m.hasFrag }
func (m *Match) SetFragType(v FragType)     { m.fragType, m.hasFrag = v, true }

// --- Transport ---

func (m *Match) TpSrc() (uint16, bool) { return m.tpSrc, m.hasTpSrc }
func (m *Match) SetTpSrc(v uint16)     { m.tpSrc, m.hasTpSrc = v, true }
func (m *Match) TpDst() (uint16, bool) { return m.tpDst, m.hasTpDst }
func (m *Match) SetTpDst(v uint16)     { m.tpDst, m.hasTpDst = v, true }

func (m *Match) IcmpType() (uint8, bool) { return m.icmpType, m.hasIcmpType }
func (m *Match) SetIcmpType(v uint8)     { m.icmpType, m.hasIcmpType = v, true }
func (m *Match) IcmpCode() (uint8, bool) { return m.icmpCode, m.hasIcmpCode }
func (m *Match) SetIcmpCode(v uint8)     { m.icmpCode, m.hasIcmpCode = v, true }
func (m *Match) IcmpData() []byte        { return m.icmpData }
func (m *Match) SetIcmpData(v []byte)    { m.icmpData = v }

// --- ARP ---

// ArpOp is the ARP opcode (1=request, 2=reply); Router.processARP only
// ever acts on requests.
func (m *Match) ArpOp() (uint16, bool)      { return m.arpOp, m.hasArpOp }
func (m *Match) SetArpOp(v uint16)          { m.arpOp, m.hasArpOp = v, true }
func (m *Match) ArpSpa() net.IP             { return m.arpSpa }
func (m *Match) SetArpSpa(v net.IP)         { m.arpSpa = v }
func (m *Match) ArpTpa() net.IP             { return m.arpTpa }
func (m *Match) SetArpTpa(v net.IP)         { m.arpTpa = v }
func (m *Match) ArpSha() net.HardwareAddr   { return m.arpSha }
func (m *Match) SetArpSha(v net.HardwareAddr) { m.arpSha = v }
func (m *Match) ArpTha() net.HardwareAddr   { return m.arpTha }
func (m *Match) SetArpTha(v net.HardwareAddr) { m.arpTha = v }

// --- DHCP ---

// DHCPMsgType is DHCP option 53 (1=DISCOVER, 3=REQUEST, ...); see
// protocol.DHCPMsgType* for the full RFC 2131 table.
func (m *Match) DHCPMsgType() (uint8, bool)  { return m.dhcpMsgType, m.hasDHCPMsgType }
func (m *Match) SetDHCPMsgType(v uint8)      { m.dhcpMsgType, m.hasDHCPMsgType = v, true }

// --- Port groups ---

func (m *Match) PortGroups() map[uint32]bool { return m.portGroups }

func (m *Match) AddPortGroup(id uint32) {
	if m.portGroups == nil {
		m.portGroups = make(map[uint32]bool)
	}
	m.portGroups[id] = true
}

func (m *Match) InPortGroup(id uint32) bool {
	return m.portGroups != nil && m.portGroups[id]
}
