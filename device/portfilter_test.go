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
	"testing"
	"time"

	"github.com/superkkt/midonet-sim/action"
	"github.com/superkkt/midonet-sim/chain"
	"github.com/superkkt/midonet-sim/match"
	"github.com/superkkt/midonet-sim/simctx"
	"github.com/superkkt/midonet-sim/topology"
)

func always(v bool) topology.Condition { return func(*match.Match) bool { return v } }

func TestPortFilterNoopWhenChainIDEmpty(t *testing.T) {
	f := PortFilter{Evaluator: chain.Evaluator{}}
	topo := topology.NewMemCache()

	a, ok := f.Apply(context.Background(), topo, "", match.New(), "port1", time.Time{})
	if !ok {
		t.Fatalf("an empty chain id must always continue")
	}
	if a.Kind != action.KindToPort {
		t.Fatalf("expected the zero-value action for the noop case, got %+v", a)
	}
}

func TestPortFilterAcceptContinues(t *testing.T) {
	f := PortFilter{Evaluator: chain.Evaluator{}}
	topo := topology.NewMemCache()
	topo.PutChain(&topology.Chain{ID: "c1", Rules: []topology.Rule{{Condition: always(true), Action: topology.Accept}}})

	_, ok := f.Apply(context.Background(), topo, "c1", match.New(), "port1", time.Time{})
	if !ok {
		t.Fatalf("an accepting chain must continue, got ok=false")
	}
}

func TestPortFilterDropBecomesPermanentDrop(t *testing.T) {
	f := PortFilter{Evaluator: chain.Evaluator{}}
	topo := topology.NewMemCache()
	topo.PutChain(&topology.Chain{ID: "c1", Rules: []topology.Rule{{Condition: always(true), Action: topology.Drop}}})

	a, ok := f.Apply(context.Background(), topo, "c1", match.New(), "port1", time.Time{})
	if ok {
		t.Fatalf("a dropping chain must not continue")
	}
	if a.Kind != action.KindDrop || a.Temporary {
		t.Fatalf("expected a permanent drop action, got %+v", a)
	}
}

func TestPortFilterRejectBecomesPermanentDrop(t *testing.T) {
	f := PortFilter{Evaluator: chain.Evaluator{}}
	topo := topology.NewMemCache()
	topo.PutChain(&topology.Chain{ID: "c1", Rules: []topology.Rule{{Condition: always(true), Action: topology.Reject}}})

	a, ok := f.Apply(context.Background(), topo, "c1", match.New(), "port1", time.Time{})
	if ok {
		t.Fatalf("a rejecting chain must not continue")
	}
	if a.Kind != action.KindDrop {
		t.Fatalf("expected a drop action, got %+v", a)
	}
}

func TestPortFilterMissingChainIsErrorDrop(t *testing.T) {
	f := PortFilter{Evaluator: chain.Evaluator{}}
	topo := topology.NewMemCache()

	a, ok := f.Apply(context.Background(), topo, "missing", match.New(), "port1", time.Time{})
	if ok {
		t.Fatalf("a missing chain must not continue")
	}
	if a.Kind != action.KindErrorDrop {
		t.Fatalf("expected an error drop for a missing chain, got %+v", a)
	}
}

func TestCheckFragmentationDropsLaterFragmentOnly(t *testing.T) {
	m := match.New()
	m.SetFragType(match.FragLater)
	pctx := simctx.New(m, nil, false)

	a, drop := CheckFragmentation(pctx)
	if !drop {
		t.Fatalf("a later fragment must drop")
	}
	if a.Kind != action.KindDrop || a.Temporary {
		t.Fatalf("expected a permanent wide wildcard drop, got %+v", a)
	}
}

func TestCheckFragmentationIgnoresNonLaterFragments(t *testing.T) {
	cases := []match.FragType{match.FragNone, match.FragFirst}
	for _, frag := range cases {
		m := match.New()
		m.SetFragType(frag)
		pctx := simctx.New(m, nil, false)

		_, drop := CheckFragmentation(pctx)
		if drop {
			t.Fatalf("frag type %v must not be handled by CheckFragmentation", frag)
		}
	}
}

func TestCheckFragmentationIgnoresUnsetFragType(t *testing.T) {
	pctx := simctx.New(match.New(), nil, false)
	_, drop := CheckFragmentation(pctx)
	if drop {
		t.Fatalf("an unset frag type must not be handled by CheckFragmentation")
	}
}
