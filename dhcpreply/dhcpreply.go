/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015-2019 Samjung Data Service, Inc. All rights reserved.
 *  Kitae Kim <superkkt@sds.co.kr>
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

// Package dhcpreply builds DHCP OFFER/ACK replies from a static lease
// configuration, the router device processor's "emit generated
// packet" hook for a DISCOVER or REQUEST (spec §4.4's ARP-reply path
// has a DHCP counterpart per SPEC_FULL §7), grounded on the teacher's
// northbound/app/dhcp/dhcp.go.
package dhcpreply

import (
	"fmt"
	"net"

	"github.com/superkkt/go-logging"

	"github.com/superkkt/midonet-sim/protocol"
)

var logger = logging.MustGetLogger("dhcpreply")

var (
	broadcastMAC = net.HardwareAddr([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	broadcastIP  = net.IPv4(255, 255, 255, 255)
	leaseTimeSec = []byte{0x00, 0x01, 0x51, 0x80} // 86400 seconds.
)

// Lease is the static network configuration handed out to one client
// hardware address; lease storage itself is out of scope (spec.md §1
// excludes a persistent DHCP replier subsystem), so this is plain
// config data rather than a database row.
type Lease struct {
	ClientIP net.IP
	Mask     net.IPMask
	Gateway  net.IP
	DNS      []net.IP
	ServerIP net.IP
	ServerMAC net.HardwareAddr
}

// ErrUnsupportedMessageType is returned for any DHCP message type
// other than DISCOVER or REQUEST; the router processor treats it as a
// drop rather than forwarding the packet further, since there is no
// "bypass to another app" concept in this core.
type ErrUnsupportedMessageType struct {
	Type uint8
}

func (e ErrUnsupportedMessageType) Error() string {
	return fmt.Sprintf("unsupported DHCP message type: %v", e.Type)
}

// BuildReply inspects req's message type and returns the OFFER (for a
// DISCOVER) or ACK (for a REQUEST) as an ethernet frame ready to hand
// to the generated-packet emitter, addressed to the destination the
// reply should go to (broadcast, except a renewing client's own
// unicast address).
func BuildReply(req *protocol.DHCP, lease Lease) (*protocol.Ethernet, error) {
	t, ok := req.MessageType()
	if !ok {
		return nil, fmt.Errorf("dhcp request missing message-type option")
	}

	switch t {
	case protocol.DHCPMsgTypeDiscover:
		return buildOffer(req, lease)
	case protocol.DHCPMsgTypeRequest:
		return buildAck(req, lease)
	default:
		return nil, ErrUnsupportedMessageType{Type: t}
	}
}

func buildOffer(disc *protocol.DHCP, lease Lease) (*protocol.Ethernet, error) {
	reply := &protocol.DHCP{
		Op:      protocol.DHCPOpcodeReply,
		XID:     disc.XID,
		CIAddr:  net.IPv4zero,
		YIAddr:  lease.ClientIP,
		SIAddr:  lease.ServerIP,
		GIAddr:  net.IPv4zero,
		CHAddr:  disc.CHAddr,
		Options: offerOptions(protocol.DHCPMsgTypeOffer, lease),
	}
	logger.Debugf("building DHCPOFFER for %v", disc.CHAddr)
	return buildEthernetFrame(broadcastMAC, broadcastIP, lease, reply)
}

func buildAck(req *protocol.DHCP, lease Lease) (*protocol.Ethernet, error) {
	reply := &protocol.DHCP{
		Op:      protocol.DHCPOpcodeReply,
		XID:     req.XID,
		CIAddr:  req.CIAddr,
		YIAddr:  lease.ClientIP,
		SIAddr:  lease.ServerIP,
		GIAddr:  net.IPv4zero,
		CHAddr:  req.CHAddr,
		Options: offerOptions(protocol.DHCPMsgTypeAck, lease),
	}

	dstMAC, dstIP := broadcastMAC, broadcastIP
	if !req.CIAddr.Equal(net.IPv4zero) {
		dstMAC, dstIP = req.CHAddr, req.CIAddr
	}

	logger.Debugf("building DHCPACK for %v", req.CHAddr)
	return buildEthernetFrame(dstMAC, dstIP, lease, reply)
}

func offerOptions(msgType byte, lease Lease) []protocol.DHCPOption {
	dns := make([]byte, 0, 4*len(lease.DNS))
	for _, ip := range lease.DNS {
		dns = append(dns, ip.To4()...)
	}

	return []protocol.DHCPOption{
		{Code: protocol.DHCPOptionMessageType, Value: []byte{msgType}},
		{Code: protocol.DHCPOptionSubnetMask, Value: lease.Mask},
		{Code: protocol.DHCPOptionRouter, Value: lease.Gateway.To4()},
		{Code: protocol.DHCPOptionDNSServer, Value: dns},
		{Code: protocol.DHCPOptionLeaseTime, Value: leaseTimeSec},
		{Code: protocol.DHCPOptionServerID, Value: lease.ServerIP.To4()},
	}
}

func buildEthernetFrame(dstMAC net.HardwareAddr, dstIP net.IP, lease Lease, dhcp *protocol.DHCP) (*protocol.Ethernet, error) {
	payload, err := dhcp.MarshalBinary()
	if err != nil {
		return nil, err
	}

	udp := &protocol.UDP{SrcPort: protocol.DHCPServerPort, DstPort: protocol.DHCPClientPort, Length: uint16(len(payload)), Payload: payload}
	udp.SetPseudoHeader(lease.ServerIP, dstIP)
	datagram, err := udp.MarshalBinary()
	if err != nil {
		return nil, err
	}

	ip := protocol.NewIPv4(lease.ServerIP, dstIP, 64, 0x11, datagram)
	packet, err := ip.MarshalBinary()
	if err != nil {
		return nil, err
	}

	return &protocol.Ethernet{SrcMAC: lease.ServerMAC, DstMAC: dstMAC, Type: 0x0800, Payload: packet}, nil
}
