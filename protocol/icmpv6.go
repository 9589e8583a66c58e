/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service Co., Ltd.,
 * Kitae Kim <superkkt@sds.co.kr>
 */

// ICMPv6 mirrors ICMP's error-message shape for the dual-stack router
// path SPEC_FULL §7 adds: Unreachable/Time-Exceeded/Parameter-Problem
// look the same as ICMPv4's, but the checksum is computed over the
// IPv6 pseudo header (RFC 4443 §2.3) rather than over the message
// alone as ICMPv4's is.
package protocol

import (
	"encoding/binary"
	"errors"
	"net"
)

const icmpv6NextHeader uint8 = 58

const (
	ICMPv6TypeUnreachable  uint8 = 1
	ICMPv6TypeTimeExceeded uint8 = 3
	ICMPv6TypeParamProblem uint8 = 4
)

type ICMPv6Error struct {
	ICMP
	Unused   uint32
	Original []byte
}

func NewICMPv6Error(typ, code uint8, original []byte) *ICMPv6Error {
	return &ICMPv6Error{ICMP: ICMP{Type: typ, Code: code}, Original: original}
}

// MarshalBinary needs the enclosing IPv6 src/dst to compute the
// checksum pseudo header, unlike ICMPv4 whose checksum is self-contained.
func (r ICMPv6Error) MarshalBinary(src, dst net.IP) ([]byte, error) {
	v := make([]byte, 8)
	v[0] = r.Type
	v[1] = r.Code
	binary.BigEndian.PutUint32(v[4:8], r.Unused)
	v = append(v, r.Original...)

	pseudo := pseudoHeaderIPv6(src, dst, uint32(len(v)), icmpv6NextHeader)
	checksum := calculateChecksum(append(pseudo, v...))
	binary.BigEndian.PutUint16(v[2:4], checksum)

	return v, nil
}

func (r *ICMPv6Error) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return errors.New("invalid ICMPv6 error packet length")
	}
	r.Type = data[0]
	r.Code = data[1]
	r.Checksum = binary.BigEndian.Uint16(data[2:4])
	r.Unused = binary.BigEndian.Uint32(data[4:8])
	if len(data) > 8 {
		r.Original = data[8:]
	}
	return nil
}
