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

// Package translate implements the match-diff to datapath-action
// translator (spec §4.6): given the match the packet arrived with and
// the match the simulation produced, emit the minimal ordered action
// list that rewrites one into the other.
package translate

import (
	"bytes"
	"net"

	"github.com/superkkt/midonet-sim/action"
	"github.com/superkkt/midonet-sim/match"
)

// ICMP error types eligible for SetKey(IcmpError) translation (spec
// §4.6 step 4). Values are the ICMPv4 wire types; ICMPv6 equivalents
// (Destination Unreachable=1, Time Exceeded=3, Parameter Problem=4) are
// included too since the match model is dual-stack.
const (
	icmpv4Unreachable   = 3
	icmpv4TimeExceeded  = 11
	icmpv4ParamProblem  = 12
	icmpv6Unreachable   = 1
	icmpv6TimeExceeded  = 3
	icmpv6ParamProblem  = 4
)

func icmpErrorEligible(icmpType uint8, isV6 bool) bool {
	if isV6 {
		switch icmpType {
		case icmpv6Unreachable, icmpv6TimeExceeded, icmpv6ParamProblem:
			return true
		}
		return false
	}
	switch icmpType {
	case icmpv4Unreachable, icmpv4TimeExceeded, icmpv4ParamProblem:
		return true
	}
	return false
}

// Diff emits, in the fixed order mandated by spec §4.6, the datapath
// action list that rewrites orig into modif. Neither match is mutated.
// Action de-duplication is deliberately not performed (spec: "action
// equality/deduplication is not performed").
func Diff(orig, modif *match.Match) []action.DatapathAction {
	var actions []action.DatapathAction

	actions = appendEthernetDiff(actions, orig, modif)
	actions = appendNetworkDiff(actions, orig, modif)
	actions = appendVlanDiff(actions, orig, modif)
	actions = appendIcmpErrorDiff(actions, orig, modif)
	actions = appendTransportDiff(actions, orig, modif)

	return actions
}

func appendEthernetDiff(actions []action.DatapathAction, orig, modif *match.Match) []action.DatapathAction {
	oSrc, _ := orig.EthSrc()
	mSrc, _ := modif.EthSrc()
	oDst, _ := orig.EthDst()
	mDst, _ := modif.EthDst()

	if macEqual(oSrc, mSrc) && macEqual(oDst, mDst) {
		return actions
	}
	return append(actions, action.SetEthernet(mSrc, mDst))
}

func appendNetworkDiff(actions []action.DatapathAction, orig, modif *match.Match) []action.DatapathAction {
	if modif.IsIPv6() {
		oSrc, _ := orig.IPv6Src()
		mSrc, _ := modif.IPv6Src()
		oDst, _ := orig.IPv6Dst()
		mDst, _ := modif.IPv6Dst()
		oTTL, _ := orig.IPTTL()
		mTTL, _ := modif.IPTTL()

		if ipEqual(oSrc, mSrc) && ipEqual(oDst, mDst) && oTTL == mTTL {
			return actions
		}
		proto, _ := modif.IPProto()
		return append(actions, action.SetIPv6(action.IPv6Key{Src: mSrc, Dst: mDst, Proto: proto, HopLimit: mTTL}))
	}

	oSrc, _ := orig.IPv4Src()
	mSrc, _ := modif.IPv4Src()
	oDst, _ := orig.IPv4Dst()
	mDst, _ := modif.IPv4Dst()
	oTTL, _ := orig.IPTTL()
	mTTL, _ := modif.IPTTL()

	if ipEqual(oSrc, mSrc) && ipEqual(oDst, mDst) && oTTL == mTTL {
		return actions
	}
	proto, _ := modif.IPProto()
	tos, _ := modif.IPTOS()
	return append(actions, action.SetIPv4(action.IPv4Key{Src: mSrc, Dst: mDst, Proto: proto, TOS: tos, TTL: mTTL}))
}

func appendVlanDiff(actions []action.DatapathAction, orig, modif *match.Match) []action.DatapathAction {
	toPop, toPush := vlanSetDiff(orig.Vlans(), modif.Vlans())

	for range toPop {
		actions = append(actions, action.PopVlan())
	}
	for i, tag := range toPush {
		tpid := action.ProviderBridgingTPID
		if i == len(toPush)-1 {
			tpid = action.StandardDot1QTPID
		}
		actions = append(actions, action.PushVlan(tpid, tag.TCI()))
	}
	return actions
}

// vlanSetDiff computes orig\modif and modif\orig as multisets, per spec
// §4.6 step 3.
func vlanSetDiff(orig, modif []match.VlanTag) (removed, added []match.VlanTag) {
	modifCount := map[match.VlanTag]int{}
	for _, v := range modif {
		modifCount[v]++
	}
	for _, v := range orig {
		if modifCount[v] > 0 {
			modifCount[v]--
			continue
		}
		removed = append(removed, v)
	}

	origCount := map[match.VlanTag]int{}
	for _, v := range orig {
		origCount[v]++
	}
	for _, v := range modif {
		if origCount[v] > 0 {
			origCount[v]--
			continue
		}
		added = append(added, v)
	}

	return removed, added
}

func appendIcmpErrorDiff(actions []action.DatapathAction, orig, modif *match.Match) []action.DatapathAction {
	if bytes.Equal(orig.IcmpData(), modif.IcmpData()) {
		return actions
	}
	icmpType, ok := modif.IcmpType()
	if !ok || !icmpErrorEligible(icmpType, modif.IsIPv6()) {
		return actions
	}
	code, _ := modif.IcmpCode()
	return append(actions, action.SetIcmpError(action.IcmpErrorKey{Type: icmpType, Code: code, Data: modif.IcmpData()}))
}

func appendTransportDiff(actions []action.DatapathAction, orig, modif *match.Match) []action.DatapathAction {
	oSrc, _ := orig.TpSrc()
	mSrc, _ := modif.TpSrc()
	oDst, _ := orig.TpDst()
	mDst, _ := modif.TpDst()

	if oSrc == mSrc && oDst == mDst {
		return actions
	}

	proto, _ := modif.IPProto()
	switch proto {
	case 6: // TCP
		return append(actions, action.SetTcp(action.TcpKey{Src: mSrc, Dst: mDst}))
	case 17: // UDP
		return append(actions, action.SetUdp(action.UdpKey{Src: mSrc, Dst: mDst}))
	default:
		// ICMP (and anything else) transport fields are never
		// synthesized as a SetKey action (spec §4.6 step 5).
		return actions
	}
}

func macEqual(a, b net.HardwareAddr) bool { return bytes.Equal(a, b) }

func ipEqual(a, b net.IP) bool { return a.Equal(b) }
