/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service Co., Ltd.,
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
)

type TCP struct {
	SrcPort        uint16
	DstPort        uint16
	Sequence       uint32
	Acknowledgment uint32
	Flags          uint16
	WindowSize     uint16
	Checksum       uint16
	Urgent         uint16
	Payload        []byte
}

func (r *TCP) UnmarshalBinary(data []byte) error {
	if len(data) < 20 {
		return errors.New("invalid TCP packet length")
	}

	r.SrcPort = binary.BigEndian.Uint16(data[0:2])
	r.DstPort = binary.BigEndian.Uint16(data[2:4])
	r.Sequence = binary.BigEndian.Uint32(data[4:8])
	r.Acknowledgment = binary.BigEndian.Uint32(data[8:12])
	offset := int(data[12]>>4) * 4
	r.Flags = uint16((data[12]&0x1)<<8 | data[13])
	r.WindowSize = binary.BigEndian.Uint16(data[14:16])
	r.Checksum = binary.BigEndian.Uint16(data[16:18])
	r.Urgent = binary.BigEndian.Uint16(data[18:20])
	if len(data) > offset {
		r.Payload = data[offset:]
	}

	return nil
}
