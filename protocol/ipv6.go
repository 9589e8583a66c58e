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

// IPv6 mirrors IPv4's codec shape (spec.md's match key is dual-stack;
// SPEC_FULL §7 asks for the IPv6 router path this fleshes out).
package protocol

import (
	"encoding/binary"
	"errors"
	"net"
)

type IPv6 struct {
	TrafficClass uint8
	FlowLabel    uint32
	Length       uint16
	NextHeader   uint8
	HopLimit     uint8
	SrcIP        net.IP
	DstIP        net.IP
	Payload      []byte
}

func NewIPv6(src, dst net.IP, hopLimit, nextHeader uint8, payload []byte) *IPv6 {
	return &IPv6{
		Length:     uint16(len(payload)),
		NextHeader: nextHeader,
		HopLimit:   hopLimit,
		SrcIP:      src,
		DstIP:      dst,
		Payload:    payload,
	}
}

func (r IPv6) MarshalBinary() ([]byte, error) {
	if r.SrcIP == nil || r.DstIP == nil {
		return nil, errors.New("nil IP address")
	}
	src, dst := r.SrcIP.To16(), r.DstIP.To16()
	if src == nil || dst == nil {
		return nil, errors.New("not an IPv6 address")
	}

	header := make([]byte, 40)
	header[0] = 0x60 | (r.TrafficClass >> 4)
	header[1] = (r.TrafficClass&0xF)<<4 | byte(r.FlowLabel>>16)&0xF
	binary.BigEndian.PutUint16(header[2:4], uint16(r.FlowLabel))
	binary.BigEndian.PutUint16(header[4:6], uint16(len(r.Payload)))
	header[6] = r.NextHeader
	header[7] = r.HopLimit
	copy(header[8:24], src)
	copy(header[24:40], dst)

	return append(header, r.Payload...), nil
}

func (r *IPv6) UnmarshalBinary(data []byte) error {
	if len(data) < 40 {
		return errors.New("invalid IPv6 packet length")
	}

	r.TrafficClass = (data[0]&0xF)<<4 | (data[1] >> 4)
	r.FlowLabel = uint32(data[1]&0xF)<<16 | uint32(data[2])<<8 | uint32(data[3])
	r.Length = binary.BigEndian.Uint16(data[4:6])
	r.NextHeader = data[6]
	r.HopLimit = data[7]
	r.SrcIP = net.IP(data[8:24])
	r.DstIP = net.IP(data[24:40])
	if len(data) > 40 {
		r.Payload = data[40:]
	}

	return nil
}

// pseudoHeaderIPv6 builds the 40-byte pseudo header RFC 2460 §8.1
// requires to compute an ICMPv6/TCP/UDP checksum over IPv6.
func pseudoHeaderIPv6(src, dst net.IP, length uint32, nextHeader uint8) []byte {
	v := make([]byte, 40)
	copy(v[0:16], src.To16())
	copy(v[16:32], dst.To16())
	binary.BigEndian.PutUint32(v[32:36], length)
	v[39] = nextHeader
	return v
}
