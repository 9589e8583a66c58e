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

// Package topology defines the immutable virtual-device snapshots the
// coordinator reads and the asynchronous, read-only cache client used to
// fetch them. Nothing in this package is ever mutated after construction;
// callers that need to experiment with a variant clone the Go value (all
// fields are plain data, no embedded mutexes).
package topology

import (
	"net"

	"github.com/superkkt/midonet-sim/dhcpreply"
)

// DeviceKind distinguishes the device snapshot variants without relying on
// dynamic dispatch; device.Dispatcher.For switches on it explicitly, and
// a kind it does not list falls to that switch's default branch.
type DeviceKind uint8

const (
	KindBridge DeviceKind = iota
	KindRouter
	KindVlanBridge
)

// Device is implemented by *Bridge, *Router and *VlanBridge. It exists so
// the coordinator can hold a single heterogeneous reference to whichever
// device a port belongs to.
type Device interface {
	DeviceID() string
	Kind() DeviceKind
}

// Port is an immutable snapshot of one virtual port. Exterior ports face a
// physical/host interface (and so carry port-group membership); interior
// ports are wired to a PeerID on another device.
type Port struct {
	ID       uint32
	DeviceID string
	Exterior bool
	// PeerID is the port on the far side of an interior link. Nil for
	// exterior ports.
	PeerID *uint32
	// PortGroups is the set of port-group ids this exterior port belongs
	// to; copied into the packet context at ingress per spec §4.5.
	PortGroups map[uint32]bool
	InputFilterID  string
	OutputFilterID string
	AdminUp        bool
}

func (p *Port) IsInterior() bool { return !p.Exterior }

// MACEntry maps a learned destination MAC to an egress virtual port.
type MACEntry struct {
	MAC  [6]byte
	Port uint32
}

// Bridge is an immutable L2 bridge snapshot.
type Bridge struct {
	ID                string
	Admin             bool
	FloodPortSetID    string
	Ports             []uint32
	// VlanPortMap maps a VLAN id to the trunk port carrying that VLAN,
	// present only on VLAN-aware (provider) bridges (spec §4.4.4).
	VlanPortMap map[uint16]uint32
	// VlanBridgeID, when non-empty, is the id of the companion
	// VLAN-bridge this bridge forks traffic to on trunk ports.
	VlanBridgeID string
}

func (b *Bridge) DeviceID() string { return b.ID }
func (b *Bridge) Kind() DeviceKind { return KindBridge }

// VlanBridge is the companion device that fans VLAN-tagged frames out to
// per-VLAN port sets; it is a distinct device kind, not a Bridge subtype,
// per spec design note §9.
type VlanBridge struct {
	ID           string
	Admin        bool
	TrunkPort    uint32
	VlanPortSets map[uint16]string
}

func (v *VlanBridge) DeviceID() string { return v.ID }
func (v *VlanBridge) Kind() DeviceKind { return KindVlanBridge }

// Route is one longest-prefix-match entry of a router's routing table.
type Route struct {
	Destination net.IPNet
	NextHop     net.IP
	// OutPort is the egress virtual port for this route; zero value
	// means "local", i.e. destined for the router itself.
	OutPort uint32
	Local   bool
}

// Router is an immutable L3 router snapshot.
type Router struct {
	ID     string
	Admin  bool
	Routes []Route
	// PortAddresses maps a router port to its configured IPv4/IPv6
	// address and MAC, used for ARP/NDP replies and TTL-exceeded sources.
	PortAddresses map[uint32]PortAddress
	// DHCPLeases maps a client hardware address (net.HardwareAddr.String())
	// to its static lease, answered out of the ingress port on a
	// DISCOVER or REQUEST addressed to this router's DHCP server port.
	DHCPLeases map[string]dhcpreply.Lease
}

// PortAddress is the L3 configuration of one router port.
type PortAddress struct {
	IPv4 net.IP
	IPv6 net.IP
	MAC  net.HardwareAddr
}

func (r *Router) DeviceID() string { return r.ID }
func (r *Router) Kind() DeviceKind { return KindRouter }

// LookupRoute performs longest-prefix-match against the router's table,
// returning false if no route covers dst.
func (r *Router) LookupRoute(dst net.IP) (Route, bool) {
	var best Route
	bestLen := -1
	found := false
	for _, route := range r.Routes {
		if !route.Destination.Contains(dst) {
			continue
		}
		ones, _ := route.Destination.Mask.Size()
		if ones > bestLen {
			best, bestLen, found = route, ones, true
		}
	}
	return best, found
}
