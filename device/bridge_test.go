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
	"net"
	"testing"

	"github.com/superkkt/midonet-sim/action"
	"github.com/superkkt/midonet-sim/cache"
	"github.com/superkkt/midonet-sim/config"
	"github.com/superkkt/midonet-sim/match"
	"github.com/superkkt/midonet-sim/protocol"
	"github.com/superkkt/midonet-sim/simctx"
	"github.com/superkkt/midonet-sim/topology"
)

type noEmitter struct{}

func (noEmitter) Emit(ctx context.Context, eth *protocol.Ethernet, egressPortID uint32) error {
	return nil
}

func ethCtx(inPort uint32, src, dst net.HardwareAddr) *simctx.Context {
	m := match.New()
	m.SetInPort(inPort)
	m.SetEthSrc(src)
	m.SetEthDst(dst)
	m.SetEthType(0x0800)
	return simctx.New(m, nil, false)
}

func TestBridgeLearnsSourceAndFloodsUnknownDestination(t *testing.T) {
	br := &Bridge{MAC: cache.NewMACTable()}
	bridge := &topology.Bridge{ID: "br1", FloodPortSetID: "flood-br1"}

	srcMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	dstMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02}
	pctx := ethCtx(1, srcMAC, dstMAC)

	a, err := br.Process(context.Background(), pctx, bridge, nil, config.Defaults(), noEmitter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindToPortSet || a.PortSetID != "flood-br1" {
		t.Fatalf("expected a flood to the bridge's port set, got %+v", a)
	}
	if port, ok := br.MAC.Lookup("br1", srcMAC); !ok || port != 1 {
		t.Fatalf("expected the source mac to be learned on port 1, got port=%v ok=%v", port, ok)
	}
}

func TestBridgeForwardsToLearnedPort(t *testing.T) {
	br := &Bridge{MAC: cache.NewMACTable()}
	bridge := &topology.Bridge{ID: "br1"}

	dstMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02}
	br.MAC.Learn("br1", dstMAC, 2)

	srcMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	pctx := ethCtx(1, srcMAC, dstMAC)

	a, err := br.Process(context.Background(), pctx, bridge, nil, config.Defaults(), noEmitter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindToPort || a.PortID != 2 {
		t.Fatalf("expected forward to learned port 2, got %+v", a)
	}
}

func TestBridgeSuppressesHairpin(t *testing.T) {
	br := &Bridge{MAC: cache.NewMACTable()}
	bridge := &topology.Bridge{ID: "br1"}

	dstMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02}
	br.MAC.Learn("br1", dstMAC, 1)

	srcMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	pctx := ethCtx(1, srcMAC, dstMAC)

	a, err := br.Process(context.Background(), pctx, bridge, nil, config.Defaults(), noEmitter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindDrop || a.Temporary {
		t.Fatalf("hairpin must be a permanent drop, got %+v", a)
	}
}

func TestBridgeFloodsBroadcastWithoutLearning(t *testing.T) {
	br := &Bridge{MAC: cache.NewMACTable()}
	bridge := &topology.Bridge{ID: "br1", FloodPortSetID: "flood-br1"}

	broadcast := net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	srcMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	pctx := ethCtx(1, srcMAC, broadcast)

	a, err := br.Process(context.Background(), pctx, bridge, nil, config.Defaults(), noEmitter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindToPortSet || a.PortSetID != "flood-br1" {
		t.Fatalf("expected broadcast flood, got %+v", a)
	}
}

func TestBridgeForksToVlanBridgeOnTrunkPort(t *testing.T) {
	br := &Bridge{MAC: cache.NewMACTable()}
	bridge := &topology.Bridge{
		ID:           "br1",
		VlanBridgeID: "vb1",
		VlanPortMap:  map[uint16]uint32{10: 2},
	}
	dstMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02}
	br.MAC.Learn("br1", dstMAC, 2)

	srcMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	pctx := ethCtx(1, srcMAC, dstMAC)
	pctx.Current().PushVlan(match.VlanTag{ID: 10, Present: true})

	a, err := br.Process(context.Background(), pctx, bridge, nil, config.Defaults(), noEmitter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindFork || len(a.Fork) != 2 {
		t.Fatalf("expected a fork to the trunk port and the vlan bridge, got %+v", a)
	}
	if a.Fork[0].Kind != action.KindToPortSet || a.Fork[0].PortSetID != "vb1" {
		t.Fatalf("expected the first branch to address the vlan bridge, got %+v", a.Fork[0])
	}
	if a.Fork[1].Kind != action.KindToPort || a.Fork[1].PortID != 2 {
		t.Fatalf("expected the second branch to forward to the trunk port, got %+v", a.Fork[1])
	}
}

func TestBridgeDoesNotForkWhenDestinationIsNotTheTrunkPort(t *testing.T) {
	br := &Bridge{MAC: cache.NewMACTable()}
	bridge := &topology.Bridge{
		ID:           "br1",
		VlanBridgeID: "vb1",
		VlanPortMap:  map[uint16]uint32{10: 2},
	}
	dstMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02}
	br.MAC.Learn("br1", dstMAC, 3)

	srcMAC := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	pctx := ethCtx(1, srcMAC, dstMAC)
	pctx.Current().PushVlan(match.VlanTag{ID: 10, Present: true})

	a, err := br.Process(context.Background(), pctx, bridge, nil, config.Defaults(), noEmitter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindToPort || a.PortID != 3 {
		t.Fatalf("forwarding to a non-trunk port must not fork, got %+v", a)
	}
}

func TestVlanBridgeFansOutByOuterTag(t *testing.T) {
	br := &Bridge{MAC: cache.NewMACTable()}
	vb := &topology.VlanBridge{ID: "vb1", VlanPortSets: map[uint16]string{10: "vlan10-set"}}

	pctx := simctx.New(match.New(), nil, false)
	pctx.Current().PushVlan(match.VlanTag{ID: 10, Present: true})

	a, err := br.Process(context.Background(), pctx, vb, nil, config.Defaults(), noEmitter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindToPortSet || a.PortSetID != "vlan10-set" {
		t.Fatalf("expected a fan-out to the vlan's port set, got %+v", a)
	}
}

func TestVlanBridgeDropsUntaggedFrame(t *testing.T) {
	br := &Bridge{MAC: cache.NewMACTable()}
	vb := &topology.VlanBridge{ID: "vb1", VlanPortSets: map[uint16]string{10: "vlan10-set"}}

	pctx := simctx.New(match.New(), nil, false)

	a, err := br.Process(context.Background(), pctx, vb, nil, config.Defaults(), noEmitter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != action.KindDrop {
		t.Fatalf("expected an untagged frame at a vlan bridge to drop, got %+v", a)
	}
}

func TestIsBroadcastOrMulticast(t *testing.T) {
	cases := []struct {
		mac  net.HardwareAddr
		want bool
	}{
		{net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, true},
		{net.HardwareAddr{0x01, 0, 0, 0, 0, 0x01}, true},
		{net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}, false},
		{nil, true},
	}
	for _, c := range cases {
		if got := isBroadcastOrMulticast(c.mac); got != c.want {
			t.Fatalf("isBroadcastOrMulticast(%v) = %v, want %v", c.mac, got, c.want)
		}
	}
}
