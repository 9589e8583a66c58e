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

package protocol

import (
	"encoding/binary"
	"errors"
	"net"
)

const (
	dot1QTPID          = 0x8100
	providerBridgeTPID = 0x88A8
)

// Ethernet is a frame header plus an ordered VLAN tag stack, so a
// generated packet (ARP reply, ICMP error, DHCP offer) can be replayed
// back out through the same 802.1Q/802.1ad trunk it arrived on.
type Ethernet struct {
	SrcMAC, DstMAC net.HardwareAddr
	// Tags is the VLAN tag stack, outermost first. Each entry's TPID
	// selects 802.1Q (0x8100) vs. provider-bridging (0x88A8) framing.
	Tags    []EthernetTag
	Type    uint16
	Payload []byte
}

type EthernetTag struct {
	TPID uint16
	TCI  uint16
}

func (r Ethernet) MarshalBinary() ([]byte, error) {
	if r.SrcMAC == nil || r.DstMAC == nil {
		return nil, errors.New("invalid MAC address")
	}
	if r.Payload == nil {
		return nil, errors.New("nil payload")
	}

	v := make([]byte, 12)
	copy(v[0:6], r.DstMAC)
	copy(v[6:12], r.SrcMAC)

	for _, tag := range r.Tags {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint16(buf[0:2], tag.TPID)
		binary.BigEndian.PutUint16(buf[2:4], tag.TCI)
		v = append(v, buf...)
	}

	typ := make([]byte, 2)
	binary.BigEndian.PutUint16(typ, r.Type)
	v = append(v, typ...)
	v = append(v, r.Payload...)

	return v, nil
}

func (r *Ethernet) UnmarshalBinary(data []byte) error {
	if len(data) < 14 {
		return errors.New("invalid ethernet frame length")
	}

	r.DstMAC = data[0:6]
	r.SrcMAC = data[6:12]

	offset := 12
	r.Tags = nil
	for {
		if len(data) < offset+4 {
			return errors.New("truncated ethernet frame")
		}
		tpid := binary.BigEndian.Uint16(data[offset : offset+2])
		if tpid != dot1QTPID && tpid != providerBridgeTPID {
			break
		}
		tci := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		r.Tags = append(r.Tags, EthernetTag{TPID: tpid, TCI: tci})
		offset += 4
	}

	if len(data) < offset+2 {
		return errors.New("truncated ethernet frame")
	}
	r.Type = binary.BigEndian.Uint16(data[offset : offset+2])
	r.Payload = data[offset+2:]

	return nil
}
