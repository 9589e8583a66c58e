/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service Co., Ltd.,
 * Kitae Kim <superkkt@sds.co.kr>
 */

package protocol

import (
	"encoding/binary"
	"errors"
)

// ICMP error types the translator and router processor are allowed to
// synthesize (spec.md §4.6 step 4's allow-list).
const (
	ICMPTypeUnreachable  uint8 = 3
	ICMPTypeTimeExceeded uint8 = 11
	ICMPTypeParamProblem uint8 = 12
)

const (
	ICMPCodeNetUnreachable  uint8 = 0
	ICMPCodeFragNeeded      uint8 = 4
	ICMPCodeTTLExceeded     uint8 = 0
)

type ICMP struct {
	Type     uint8
	Code     uint8
	Checksum uint16
}

type ICMPEcho struct {
	ICMP
	ID       uint16
	Sequence uint16
	Payload  []byte
}

func NewICMPEchoReply(id, seq uint16, payload []byte) *ICMPEcho {
	return &ICMPEcho{ID: id, Sequence: seq, Payload: payload}
}

func (r ICMPEcho) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	v[0] = r.Type
	v[1] = r.Code
	binary.BigEndian.PutUint16(v[4:6], r.ID)
	binary.BigEndian.PutUint16(v[6:8], r.Sequence)
	if r.Payload != nil {
		v = append(v, r.Payload...)
	}

	checksum := calculateChecksum(v)
	binary.BigEndian.PutUint16(v[2:4], checksum)

	return v, nil
}

func (r *ICMPEcho) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return errors.New("invalid ICMP packet length")
	}
	r.Type = data[0]
	r.Code = data[1]
	r.Checksum = binary.BigEndian.Uint16(data[2:4])
	r.ID = binary.BigEndian.Uint16(data[4:6])
	r.Sequence = binary.BigEndian.Uint16(data[6:8])
	if len(data) > 8 {
		r.Payload = data[8:]
	}
	return nil
}

// ICMPError is an Unreachable / Time-Exceeded / Parameter-Problem
// message: type+code, a 4-byte unused/pointer field, and as much of
// the original IP datagram as fits (conventionally header + 8 bytes).
type ICMPError struct {
	ICMP
	Unused   uint32
	Original []byte
}

func NewICMPError(typ, code uint8, original []byte) *ICMPError {
	return &ICMPError{ICMP: ICMP{Type: typ, Code: code}, Original: original}
}

func (r ICMPError) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	v[0] = r.Type
	v[1] = r.Code
	binary.BigEndian.PutUint32(v[4:8], r.Unused)
	v = append(v, r.Original...)

	checksum := calculateChecksum(v)
	binary.BigEndian.PutUint16(v[2:4], checksum)

	return v, nil
}

func (r *ICMPError) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return errors.New("invalid ICMP error packet length")
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
