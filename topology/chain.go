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

package topology

import (
	"net"

	"github.com/superkkt/midonet-sim/match"
)

// Condition is a pure predicate over the current match. It must never
// mutate m. Rule chains live here, rather than in package chain, since
// a Chain is itself a piece of topology the cache fetches by id.
type Condition func(m *match.Match) bool

// RuleAction is the action tag a rule can carry (spec §4.3).
type RuleAction uint8

const (
	Accept RuleAction = iota
	Drop
	Reject
	Jump
	Return
	Continue
)

// NATTransform rewrites source/destination (and, for port NAT,
// transport ports) in place when a rule matches.
type NATTransform struct {
	RewriteSrc bool
	NewSrcIP   net.IP
	NewSrcPort uint16

	RewriteDst bool
	NewDstIP   net.IP
	NewDstPort uint16
}

// Apply mutates m according to the transform. It is a no-op for any
// field not requested.
func (t *NATTransform) Apply(m *match.Match) {
	if t == nil {
		return
	}
	if t.RewriteSrc {
		if t.NewSrcIP.To4() != nil || (t.NewSrcIP != nil && m.IsIPv4()) {
			m.SetIPv4Src(t.NewSrcIP)
		} else if t.NewSrcIP != nil {
			m.SetIPv6Src(t.NewSrcIP)
		}
		if t.NewSrcPort != 0 {
			m.SetTpSrc(t.NewSrcPort)
		}
	}
	if t.RewriteDst {
		if t.NewDstIP.To4() != nil || (t.NewDstIP != nil && m.IsIPv4()) {
			m.SetIPv4Dst(t.NewDstIP)
		} else if t.NewDstIP != nil {
			m.SetIPv6Dst(t.NewDstIP)
		}
		if t.NewDstPort != 0 {
			m.SetTpDst(t.NewDstPort)
		}
	}
}

// Rule is one entry of a Chain: a condition plus the action to take when
// it matches.
type Rule struct {
	Condition   Condition
	Action      RuleAction
	JumpChainID string
	NAT         *NATTransform
}

// Chain is an ordered, id-addressable list of rules (spec glossary).
type Chain struct {
	ID    string
	Rules []Rule
}
