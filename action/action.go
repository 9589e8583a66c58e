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

// Package action defines the tagged unions that flow out of a device
// processor (Action) and out of the coordinator (Result), plus the
// datapath action wire shape the translator builds (spec §3, §6).
package action

import "github.com/superkkt/midonet-sim/match"

// Kind tags the variant of an Action.
type Kind uint8

const (
	KindToPort Kind = iota
	KindToPortSet
	KindFork
	KindConsumed
	KindDrop
	KindErrorDrop
	KindNotIPv4
	KindDoDatapathAction
)

// Action is what a device processor returns. Exactly one of the
// kind-specific fields is meaningful, selected by Kind.
type Action struct {
	Kind Kind

	// KindToPort
	PortID uint32

	// KindToPortSet. Port sets are addressed by the topology's string id
	// (spec §4.3's FloodPortSetID/VlanPortSets), unlike individual ports
	// which carry a numeric datapath port number.
	PortSetID string

	// KindFork
	Fork []Action

	// KindDrop
	Temporary bool

	// KindDoDatapathAction
	Datapath DatapathAction

	// Trace is an optional human-readable reason, mostly populated on
	// KindErrorDrop.
	Trace string
}

func ToPort(id uint32) Action        { return Action{Kind: KindToPort, PortID: id} }
func ToPortSet(id string) Action     { return Action{Kind: KindToPortSet, PortSetID: id} }
func Fork(children ...Action) Action { return Action{Kind: KindFork, Fork: children} }
func Consumed() Action             { return Action{Kind: KindConsumed} }
func Drop(temporary bool) Action   { return Action{Kind: KindDrop, Temporary: temporary} }
func ErrorDrop(trace string) Action { return Action{Kind: KindErrorDrop, Trace: trace} }
func NotIPv4() Action              { return Action{Kind: KindNotIPv4} }
func DoDatapathAction(a DatapathAction) Action {
	return Action{Kind: KindDoDatapathAction, Datapath: a}
}

// ResultKind tags the variant of a Result.
type ResultKind uint8

const (
	ResultNoOp ResultKind = iota
	ResultSendPacket
	ResultAddFlow
)

// Flow plus an ordered action list plus expirations make a datapath
// wildcard flow (spec §3 "Simulation Result").
type Flow struct {
	Match   *match.Match
	Actions []DatapathAction
	// IdleExpirationMillis, HardExpirationMillis: 0 means "no timeout on
	// this axis".
	IdleExpirationMillis uint64
	HardExpirationMillis uint64
}

// Callback is a (capability handle, payload) pair fired exactly once when
// its owning flow is removed, or immediately for a NoOp/SendPacket result
// (spec §3 invariants, §9 design note: callbacks are data, not closures).
type Callback struct {
	Handle  CallbackHandle
	Payload interface{}
}

// CallbackHandle is the capability a Callback fires through.
type CallbackHandle interface {
	Fire(payload interface{}) error
}

// Result is the coordinator's terminal output for one simulation.
type Result struct {
	Kind ResultKind

	// ResultSendPacket / ResultAddFlow
	Actions []DatapathAction

	// ResultAddFlow
	Flow      Flow
	Callbacks []Callback
	Tags      map[string]struct{}
}

func NoOp() Result { return Result{Kind: ResultNoOp} }

func SendPacket(actions []DatapathAction) Result {
	return Result{Kind: ResultSendPacket, Actions: actions}
}

func AddVirtualWildcardFlow(flow Flow, callbacks []Callback, tags map[string]struct{}) Result {
	return Result{Kind: ResultAddFlow, Flow: flow, Callbacks: callbacks, Tags: tags}
}
