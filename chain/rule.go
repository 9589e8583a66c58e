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

// Package chain implements the rule-chain evaluator: an ordered list of
// condition+action rules, jumpable between by id (spec §4.3). The rule
// and chain data types themselves live in package topology, since a
// chain is fetched out of the same cache as any other device.
package chain

import (
	"net"

	"github.com/superkkt/midonet-sim/match"
	"github.com/superkkt/midonet-sim/topology"
)

// Condition, RuleAction, NATTransform, Rule and Chain, and the action
// tag constants, are aliases onto package topology so callers that only
// ever touch rule chains through package chain don't need to import
// topology directly.
type (
	Condition    = topology.Condition
	RuleAction   = topology.RuleAction
	NATTransform = topology.NATTransform
	Rule         = topology.Rule
	Chain        = topology.Chain
)

const (
	Accept   = topology.Accept
	Drop     = topology.Drop
	Reject   = topology.Reject
	Jump     = topology.Jump
	Return   = topology.Return
	Continue = topology.Continue
)

// --- condition builders, mirroring the match-field predicates a real
// filter chain is composed from ---

func MatchEthSrc(mac net.HardwareAddr) Condition {
	return func(m *match.Match) bool {
		v, ok := m.EthSrc()
		return ok && macEqual(v, mac)
	}
}

func MatchEthDst(mac net.HardwareAddr) Condition {
	return func(m *match.Match) bool {
		v, ok := m.EthDst()
		return ok && macEqual(v, mac)
	}
}

func MatchIPv4Src(n *net.IPNet) Condition {
	return func(m *match.Match) bool {
		v, ok := m.IPv4Src()
		return ok && n.Contains(v)
	}
}

func MatchIPv4Dst(n *net.IPNet) Condition {
	return func(m *match.Match) bool {
		v, ok := m.IPv4Dst()
		return ok && n.Contains(v)
	}
}

func MatchIPProto(proto uint8) Condition {
	return func(m *match.Match) bool {
		v, ok := m.IPProto()
		return ok && v == proto
	}
}

func MatchTpDst(port uint16) Condition {
	return func(m *match.Match) bool {
		v, ok := m.TpDst()
		return ok && v == port
	}
}

func MatchPortGroup(id uint32) Condition {
	return func(m *match.Match) bool {
		return m.InPortGroup(id)
	}
}

// And combines conditions with logical AND; an empty list always matches.
func And(conds ...Condition) Condition {
	return func(m *match.Match) bool {
		for _, c := range conds {
			if !c(m) {
				return false
			}
		}
		return true
	}
}

// Not negates a condition.
func Not(c Condition) Condition {
	return func(m *match.Match) bool { return !c(m) }
}

func macEqual(a, b net.HardwareAddr) bool {
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
