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

package device

import (
	"context"
	"time"

	"github.com/superkkt/midonet-sim/action"
	"github.com/superkkt/midonet-sim/chain"
	"github.com/superkkt/midonet-sim/match"
	"github.com/superkkt/midonet-sim/simctx"
	"github.com/superkkt/midonet-sim/topology"
)

// PortFilter wraps a device's entry or exit chain application: it
// dispatches to the rule chain evaluator and converts any non-ACCEPT
// outcome per spec §4.4's "Port Filter wrapper" contract. It is
// invoked directly by the coordinator at ingress_port/egress_port, not
// through the Processor dispatch table, since a filter chain id may be
// empty (no filter configured).
type PortFilter struct {
	Evaluator chain.Evaluator
}

// Apply evaluates chainID (a no-op if empty) against m and reports
// whether the packet should continue, converting DROP/REJECT to a
// permanent Drop and any evaluator error to ErrorDrop.
func (f PortFilter) Apply(ctx context.Context, cache topology.Cache, chainID string, m *match.Match, ownerID string, deadline time.Time) (action.Action, bool) {
	if chainID == "" {
		return action.Action{}, true
	}

	c, ok, err := cache.FetchChain(ctx, chainID, deadline)
	if err != nil {
		return action.ErrorDrop("filter chain fetch error"), false
	}
	if !ok {
		return action.ErrorDrop("missing filter chain " + chainID), false
	}

	result := f.Evaluator.Apply(ctx, cache, c, m, ownerID, true, deadline)
	switch result.Outcome {
	case chain.OutcomeAccept:
		return action.Action{}, true
	case chain.OutcomeDrop, chain.OutcomeReject:
		return action.Drop(false), false
	default:
		return action.ErrorDrop(result.Trace), false
	}
}

// CheckFragmentation implements the "later fragment" half of spec
// §4.4's fragmentation policy, applied by the coordinator before a
// packet from an exterior ingress enters any device -- before the
// device (and hence whether it's even a router) is known. A later
// fragment never carries enough of the original transport header to
// be usefully filtered or routed, so it gets an unconditional wide,
// ether-type+fragment-type-only wildcard drop regardless of device
// kind. The "first fragment" half (an ICMP Frag-Needed reply) needs a
// device address to source the reply from, so it is handled by the
// router processor once the device is known.
func CheckFragmentation(pctx *simctx.Context) (action.Action, bool) {
	m := pctx.Current()
	frag, ok := m.FragType()
	if !ok || frag != match.FragLater {
		return action.Action{}, false
	}

	pctx.Trace("fragmentation", "later fragment, wide wildcard drop")
	return action.Drop(false), true
}
