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

// Package coordinator is the nucleus described in spec.md §2: it wires
// the topology cache, the rule-chain evaluator, the device dispatcher
// and the match-diff translator into the ingress_port -> ingress_device
// -> egress_port -> emit loop, enforcing the traversal budget and
// producing the final SimulationResult. Grounded on the teacher's
// OnPacketIn orchestration in network/controller.go, generalized from
// a single OpenFlow event handler into the explicit per-packet state
// machine spec §4.5 describes.
package coordinator

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/superkkt/go-logging"

	"github.com/superkkt/midonet-sim/action"
	"github.com/superkkt/midonet-sim/config"
	"github.com/superkkt/midonet-sim/device"
	"github.com/superkkt/midonet-sim/match"
	"github.com/superkkt/midonet-sim/protocol"
	"github.com/superkkt/midonet-sim/simctx"
	"github.com/superkkt/midonet-sim/topology"
	"github.com/superkkt/midonet-sim/translate"
)

var logger = logging.MustGetLogger("coordinator")

// Input is what the datapath layer hands the coordinator for one
// simulation (spec §6's "Inputs into the core"). A datapath-originated
// packet carries an input port in Match; a packet redriven from the
// generated-packet queue carries GeneratedEgressPort instead and no
// input port.
type Input struct {
	Match               *match.Match
	GeneratedEgressPort *uint32
	Deadline            time.Time
}

// GeneratedPacket is one entry of the emit-generated-packet queue. Spec
// §5's reentrancy rule forbids simulating a generated packet inline
// during the simulation that produced it, so Emit only enqueues; the
// caller drains Pending at its own pace and feeds each entry back
// through Simulate as its own Input.
type GeneratedPacket struct {
	Match        *match.Match
	EgressPortID uint32
}

// Coordinator orchestrates the Packet Context, Topology Cache Client,
// Rule Chain Evaluator, Device Processors and Action Interpreter of
// spec §2 components 1-5.
type Coordinator struct {
	Cache     topology.Cache
	Devices   device.Dispatcher
	Filter    device.PortFilter
	ConnCache simctx.ConnCache
	Config    config.Tunables

	mu      sync.Mutex
	pending []GeneratedPacket
}

// Emit implements device.GeneratedPacketEmitter: it parses eth into a
// match and queues it rather than simulating it inline.
func (c *Coordinator) Emit(ctx context.Context, eth *protocol.Ethernet, egressPortID uint32) error {
	m, err := matchFromEthernet(eth)
	if err != nil {
		return fmt.Errorf("parsing generated packet: %w", err)
	}

	c.mu.Lock()
	c.pending = append(c.pending, GeneratedPacket{Match: m, EgressPortID: egressPortID})
	c.mu.Unlock()

	return nil
}

// Pending drains and returns every generated packet queued since the
// last call.
func (c *Coordinator) Pending() []GeneratedPacket {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pending
	c.pending = nil
	return p
}

// Simulate runs the top-level dispatch of spec §4.5: exactly one of
// "packet from datapath" or "packet generated by a virtual device" must
// hold, or the simulation fails closed with a temporary drop.
func (c *Coordinator) Simulate(ctx context.Context, in Input) (action.Result, error) {
	inPort, hasInPort := in.Match.InPort()
	generated := in.GeneratedEgressPort != nil

	switch {
	case hasInPort && !generated:
		pctx := simctx.New(in.Match, c.ConnCache, false)
		return c.ingressPort(ctx, pctx, inPort, in.Deadline)
	case generated && !hasInPort:
		pctx := simctx.New(in.Match, c.ConnCache, true)
		return c.egressPort(ctx, pctx, *in.GeneratedEgressPort, in.Deadline)
	default:
		pctx := simctx.New(in.Match, c.ConnCache, false)
		pctx.Trace("coordinator", "illegal start: hasInPort=%v generated=%v", hasInPort, generated)
		return c.dropResult(pctx, true, nil), nil
	}
}

func (c *Coordinator) ingressPort(ctx context.Context, pctx *simctx.Context, portID uint32, deadline time.Time) (action.Result, error) {
	port, ok, err := c.Cache.FetchPort(ctx, portID, deadline)
	if err != nil {
		return action.Result{}, err
	}
	if !ok {
		pctx.Trace("coordinator", "ingress port %v missing, temporary drop", portID)
		return c.dropResult(pctx, true, nil), nil
	}

	if err := pctx.SetInputPort(port); err != nil {
		return action.Result{}, err
	}
	if port.Exterior {
		for group := range port.PortGroups {
			pctx.Current().AddPortGroup(group)
		}
	}

	// Later fragments never carry enough of the transport header to be
	// usefully filtered or routed, so they short-circuit here with a
	// wide ether-type+fragment-type-only wildcard drop, before the
	// input filter chain or any device even runs (spec §4.4's
	// fragmentation policy). The First-fragment half needs a device
	// address to source its ICMP reply from and is handled by the
	// router processor once the device is known.
	if _, later := device.CheckFragmentation(pctx); later {
		pctx.Trace("coordinator", "later fragment, wide wildcard drop")
		return c.dropResult(pctx, false, fragWildcardMatch(pctx.Current())), nil
	}

	if filterAction, accept := c.Filter.Apply(ctx, c.Cache, port.InputFilterID, pctx.Current(), port.DeviceID, deadline); !accept {
		return c.interpret(ctx, pctx, port.DeviceID, filterAction, deadline)
	}

	return c.ingressDevice(ctx, pctx, port.DeviceID, deadline)
}

func (c *Coordinator) ingressDevice(ctx context.Context, pctx *simctx.Context, deviceID string, deadline time.Time) (action.Result, error) {
	traversed, visits := pctx.VisitDevice(deviceID)
	if traversed > c.maxDevicesTraversed() || visits > c.loopVisitThreshold() {
		pctx.Trace("coordinator", "traversal budget exceeded at %v (traversed=%v visits=%v)", deviceID, traversed, visits)
		return c.dropResult(pctx, true, nil), nil
	}

	dev, ok, err := c.Cache.FetchDevice(ctx, deviceID, deadline)
	if err != nil {
		return action.Result{}, err
	}
	if !ok {
		pctx.Trace("coordinator", "device %v missing, temporary drop", deviceID)
		return c.dropResult(pctx, true, nil), nil
	}

	a, err := c.Devices.For(dev).Process(ctx, pctx, dev, c.Cache, c.Config, c)
	if err != nil {
		return action.Result{}, err
	}

	return c.interpret(ctx, pctx, dev.DeviceID(), a, deadline)
}

func (c *Coordinator) egressPort(ctx context.Context, pctx *simctx.Context, portID uint32, deadline time.Time) (action.Result, error) {
	port, ok, err := c.Cache.FetchPort(ctx, portID, deadline)
	if err != nil {
		return action.Result{}, err
	}
	if !ok {
		pctx.Trace("coordinator", "egress port %v missing, temporary drop", portID)
		return c.dropResult(pctx, true, nil), nil
	}

	if filterAction, accept := c.Filter.Apply(ctx, c.Cache, port.OutputFilterID, pctx.Current(), port.DeviceID, deadline); !accept {
		return c.interpret(ctx, pctx, port.DeviceID, filterAction, deadline)
	}

	if port.Exterior {
		return c.emitResult(pctx, port.ID, false), nil
	}
	if port.PeerID == nil {
		pctx.Trace("coordinator", "interior port %v has no peer, temporary drop", portID)
		return c.dropResult(pctx, true, nil), nil
	}
	return c.ingressPort(ctx, pctx, *port.PeerID, deadline)
}

// interpret is the Action Interpreter of spec §4.5: it advances the
// simulation according to the Action a device processor (or a port
// filter) returned.
func (c *Coordinator) interpret(ctx context.Context, pctx *simctx.Context, deviceID string, a action.Action, deadline time.Time) (action.Result, error) {
	switch a.Kind {
	case action.KindToPort:
		return c.egressPort(ctx, pctx, a.PortID, deadline)
	case action.KindToPortSet:
		return c.emitResult(pctx, portSetNumber(a.PortSetID), true), nil
	case action.KindFork:
		return c.fork(ctx, pctx, deviceID, a.Fork, deadline)
	case action.KindConsumed:
		return c.noOpResult(pctx), nil
	case action.KindDrop:
		return c.dropResult(pctx, a.Temporary, nil), nil
	case action.KindErrorDrop:
		logger.Errorf("device %v produced an error: %v", deviceID, a.Trace)
		return c.dropResult(pctx, true, nil), nil
	case action.KindNotIPv4:
		pctx.Trace(deviceID, "non-IP traffic, wide wildcard flow")
		return c.dropResult(pctx, false, etherTypeOnlyMatch(pctx.Current())), nil
	case action.KindDoDatapathAction:
		pctx.FireCallbacksNow()
		return action.SendPacket([]action.DatapathAction{a.Datapath}), nil
	default:
		return action.Result{}, fmt.Errorf("device %v returned unknown action kind %v", deviceID, a.Kind)
	}
}

// fork evaluates each sub-action sequentially against the match as it
// stood at fork-start, per spec §4.5: between branches the context is
// unfrozen and the match rewound to that snapshot, then the branch
// results are merged pairwise.
func (c *Coordinator) fork(ctx context.Context, pctx *simctx.Context, deviceID string, children []action.Action, deadline time.Time) (action.Result, error) {
	if len(children) == 0 {
		return action.NoOp(), nil
	}

	snapshot := pctx.CloneMatch()

	merged, err := c.interpret(ctx, pctx, deviceID, children[0], deadline)
	if err != nil {
		return action.Result{}, err
	}

	for _, child := range children[1:] {
		pctx.Unfreeze()
		if err := pctx.SetMatch(snapshot.Clone()); err != nil {
			return action.Result{}, err
		}

		next, err := c.interpret(ctx, pctx, deviceID, child, deadline)
		if err != nil {
			return action.Result{}, err
		}

		merged, err = mergeForkResults(merged, next)
		if err != nil {
			logger.Errorf("device %v: %v", deviceID, err)
			return c.dropResult(pctx, true, nil), nil
		}
	}

	return merged, nil
}

// mergeForkResults implements spec §4.5's Fork merge table: NoOp+NoOp,
// SendPacket+SendPacket, and AddFlow+AddFlow over the same flow match.
// Any other pairing is "incompatible fork outcomes", including two
// AddFlow results whose matches differ, such as two differing NotIPv4
// wide-wildcard drops.
func mergeForkResults(a, b action.Result) (action.Result, error) {
	switch {
	case a.Kind == action.ResultNoOp && b.Kind == action.ResultNoOp:
		return action.NoOp(), nil
	case a.Kind == action.ResultSendPacket && b.Kind == action.ResultSendPacket:
		actions := append(append([]action.DatapathAction{}, a.Actions...), b.Actions...)
		return action.SendPacket(actions), nil
	case a.Kind == action.ResultAddFlow && b.Kind == action.ResultAddFlow && !a.Flow.Match.Equals(b.Flow.Match):
		return action.Result{}, fmt.Errorf("incompatible fork outcomes")
	case a.Kind == action.ResultAddFlow && b.Kind == action.ResultAddFlow:
		flow := action.Flow{
			Match:                a.Flow.Match,
			Actions:              append(append([]action.DatapathAction{}, a.Flow.Actions...), b.Flow.Actions...),
			IdleExpirationMillis: minNonZero(a.Flow.IdleExpirationMillis, b.Flow.IdleExpirationMillis),
			HardExpirationMillis: minNonZero(a.Flow.HardExpirationMillis, b.Flow.HardExpirationMillis),
		}
		callbacks := append(append([]action.Callback{}, a.Callbacks...), b.Callbacks...)
		return action.AddVirtualWildcardFlow(flow, callbacks, unionTags(a.Tags, b.Tags)), nil
	default:
		return action.Result{}, fmt.Errorf("incompatible fork outcomes")
	}
}

func minNonZero(a, b uint64) uint64 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func unionTags(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// noOpResult fires any queued flow-removed callbacks immediately, per
// the invariant that a simulation producing NoOp runs them exactly once
// synchronously rather than attaching them to an installed flow.
func (c *Coordinator) noOpResult(pctx *simctx.Context) action.Result {
	pctx.FireCallbacksNow()
	return action.NoOp()
}

// dropResult builds the Result for a Drop or ErrorDrop Action. A
// generated packet (no ingress cookie) that drops is silently consumed
// per spec §7 -- no flow, no emission, callbacks fire now. A
// datapath-originated packet installs a drop flow instead, matched on
// matchOverride if given (the fragmentation/NotIPv4 wide-wildcard
// cases) or the original match otherwise.
func (c *Coordinator) dropResult(pctx *simctx.Context, temporary bool, matchOverride *match.Match) action.Result {
	if pctx.Generated() {
		pctx.FireCallbacksNow()
		return action.NoOp()
	}

	m := pctx.Original()
	if matchOverride != nil {
		m = matchOverride
	}

	idle, hard := c.expirationsForDrop(temporary)
	flow := action.Flow{Match: m, IdleExpirationMillis: idle, HardExpirationMillis: hard}
	return action.AddVirtualWildcardFlow(flow, pctx.Callbacks(), pctx.Tags())
}

// emitResult implements emit() from spec §4.5: translate the header
// diff, append the terminal Output action, and decide between
// SendPacket (no ingress cookie) and AddVirtualWildcardFlow.
func (c *Coordinator) emitResult(pctx *simctx.Context, outputID uint32, isPortSet bool) action.Result {
	actions := translate.Diff(pctx.Original(), pctx.Current())
	actions = append(actions, action.Output(outputID, isPortSet))

	if pctx.Generated() {
		pctx.FireCallbacksNow()
		return action.SendPacket(actions)
	}

	idle, hard := c.expirationsForForward(pctx)
	flow := action.Flow{
		Match:                pctx.Original(),
		Actions:              actions,
		IdleExpirationMillis: idle,
		HardExpirationMillis: hard,
	}
	return action.AddVirtualWildcardFlow(flow, pctx.Callbacks(), pctx.Tags())
}

// expirationsForDrop implements spec §4.5's expiration table for Drop:
// temporary drops expire on a short hard timer (causing the datapath to
// resubmit and re-simulate), permanent drops expire on the ordinary
// idle timer.
func (c *Coordinator) expirationsForDrop(temporary bool) (idle, hard uint64) {
	if temporary {
		return 0, c.temporaryDropMillis()
	}
	return c.idleExpirationMillis(), 0
}

// expirationsForForward implements the remaining three rows of spec
// §4.5's expiration table, keyed on whether this simulation is part of
// a tracked connection and, if so, which side.
func (c *Coordinator) expirationsForForward(pctx *simctx.Context) (idle, hard uint64) {
	if !pctx.IsConnTracked() {
		return c.idleExpirationMillis(), 0
	}

	forward, err := pctx.IsForwardFlow()
	if err != nil {
		logger.Warningf("resolving flow direction: %v, defaulting to idle expiration", err)
		return c.idleExpirationMillis(), 0
	}
	if forward {
		return 0, c.returnFlowExpirationMillis() / 2
	}
	return 0, c.returnFlowExpirationMillis()
}

func (c *Coordinator) maxDevicesTraversed() int {
	if c.Config.MaxDevicesTraversed <= 0 {
		return config.Defaults().MaxDevicesTraversed
	}
	return c.Config.MaxDevicesTraversed
}

func (c *Coordinator) loopVisitThreshold() int {
	if c.Config.LoopVisitThreshold <= 0 {
		return config.Defaults().LoopVisitThreshold
	}
	return c.Config.LoopVisitThreshold
}

func (c *Coordinator) temporaryDropMillis() uint64 {
	if c.Config.TemporaryDropMillis == 0 {
		return config.Defaults().TemporaryDropMillis
	}
	return c.Config.TemporaryDropMillis
}

func (c *Coordinator) idleExpirationMillis() uint64 {
	if c.Config.IdleExpirationMillis == 0 {
		return config.Defaults().IdleExpirationMillis
	}
	return c.Config.IdleExpirationMillis
}

func (c *Coordinator) returnFlowExpirationMillis() uint64 {
	if c.Config.ReturnFlowExpirationMillis == 0 {
		return config.Defaults().ReturnFlowExpirationMillis
	}
	return c.Config.ReturnFlowExpirationMillis
}

// etherTypeOnlyMatch builds the wide wildcard flow match for non-IP
// traffic (spec §4.4 step 1's "wider wildcard" router fallthrough):
// only the ether type survives, so the installed flow covers every
// packet of that ethertype rather than this one flow alone.
func etherTypeOnlyMatch(m *match.Match) *match.Match {
	n := match.New()
	if t, ok := m.EthType(); ok {
		n.SetEthType(t)
	}
	return n
}

// fragWildcardMatch builds the wide wildcard flow match for a later IP
// fragment (spec §4.4's fragmentation policy): ether type plus fragment
// type only, no L3/L4 fields, so it drops later fragments of any
// connection rather than just this one.
func fragWildcardMatch(m *match.Match) *match.Match {
	n := etherTypeOnlyMatch(m)
	if f, ok := m.FragType(); ok {
		n.SetFragType(f)
	}
	return n
}

// portSetNumber derives a stable numeric surrogate for a port set's
// topology id, since the datapath-level Output action (spec §6's wire
// shape) addresses by number and the netlink encoding of a port set's
// membership is a collaborator's concern, not this package's.
func portSetNumber(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32()
}
