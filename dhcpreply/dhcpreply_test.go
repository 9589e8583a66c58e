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

package dhcpreply

import (
	"net"
	"testing"

	"github.com/superkkt/midonet-sim/protocol"
)

func testLease() Lease {
	return Lease{
		ClientIP:  net.IPv4(10, 0, 0, 50),
		Mask:      net.IPv4Mask(255, 255, 255, 0),
		Gateway:   net.IPv4(10, 0, 0, 1),
		DNS:       []net.IP{net.IPv4(8, 8, 8, 8)},
		ServerIP:  net.IPv4(10, 0, 0, 1),
		ServerMAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 0xaa},
	}
}

func decodeReplyDHCP(t *testing.T, eth *protocol.Ethernet) (*protocol.Ethernet, *protocol.DHCP) {
	t.Helper()

	var ip protocol.IPv4
	if err := ip.UnmarshalBinary(eth.Payload); err != nil {
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

	return eth, &dhcp
}

func TestBuildReplyOffersInResponseToDiscover(t *testing.T) {
	clientMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	discover := &protocol.DHCP{
		Op:     protocol.DHCPOpcodeRequest,
		XID:    0x1234,
		CIAddr: net.IPv4zero,
		CHAddr: clientMAC,
		Options: []protocol.DHCPOption{
			{Code: 0x35, Value: []byte{1}},
		},
	}

	frame, err := BuildReply(discover, testLease())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eth, dhcp := decodeReplyDHCP(t, frame)
	broadcast := net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	if eth.DstMAC.String() != broadcast.String() {
		t.Fatalf("a DISCOVER reply must be broadcast, got dst=%v", eth.DstMAC)
	}
	if dhcp.Op != protocol.DHCPOpcodeReply {
		t.Fatalf("expected a reply opcode, got %v", dhcp.Op)
	}
	if dhcp.XID != 0x1234 {
		t.Fatalf("expected the transaction id to be echoed, got %v", dhcp.XID)
	}
	if !dhcp.YIAddr.Equal(net.IPv4(10, 0, 0, 50)) {
		t.Fatalf("expected the offered client ip to be assigned, got %v", dhcp.YIAddr)
	}
	msgType, ok := dhcp.Option(0x35)
	if !ok || len(msgType.Value) != 1 || msgType.Value[0] != 2 {
		t.Fatalf("expected message-type option DHCPOFFER(2), got %+v ok=%v", msgType, ok)
	}
}

func TestBuildReplyAcksInResponseToRequest(t *testing.T) {
	clientMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	request := &protocol.DHCP{
		Op:     protocol.DHCPOpcodeRequest,
		XID:    0x5678,
		CIAddr: net.IPv4zero,
		CHAddr: clientMAC,
		Options: []protocol.DHCPOption{
			{Code: 0x35, Value: []byte{3}},
		},
	}

	frame, err := BuildReply(request, testLease())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, dhcp := decodeReplyDHCP(t, frame)
	msgType, ok := dhcp.Option(0x35)
	if !ok || len(msgType.Value) != 1 || msgType.Value[0] != 5 {
		t.Fatalf("expected message-type option DHCPACK(5), got %+v ok=%v", msgType, ok)
	}
}

func TestBuildReplyAcksRenewalUnicast(t *testing.T) {
	clientMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	clientIP := net.IPv4(10, 0, 0, 50)
	request := &protocol.DHCP{
		Op:     protocol.DHCPOpcodeRequest,
		XID:    0x5678,
		CIAddr: clientIP,
		CHAddr: clientMAC,
		Options: []protocol.DHCPOption{
			{Code: 0x35, Value: []byte{3}},
		},
	}

	frame, err := BuildReply(request, testLease())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eth, _ := decodeReplyDHCP(t, frame)
	if eth.DstMAC.String() != clientMAC.String() {
		t.Fatalf("a renewal ack must unicast back to the client's own mac, got %v", eth.DstMAC)
	}
}

func TestBuildReplyRejectsUnsupportedMessageType(t *testing.T) {
	req := &protocol.DHCP{
		Op: protocol.DHCPOpcodeRequest,
		Options: []protocol.DHCPOption{
			{Code: 0x35, Value: []byte{7}},
		},
	}

	_, err := BuildReply(req, testLease())
	if _, ok := err.(ErrUnsupportedMessageType); !ok {
		t.Fatalf("expected ErrUnsupportedMessageType, got %v (%T)", err, err)
	}
}

func TestBuildReplyRejectsMissingMessageTypeOption(t *testing.T) {
	req := &protocol.DHCP{Op: protocol.DHCPOpcodeRequest}

	if _, err := BuildReply(req, testLease()); err == nil {
		t.Fatalf("expected an error for a request with no message-type option")
	}
}
