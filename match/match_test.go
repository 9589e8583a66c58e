package match

import (
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func sampleMatch() *Match {
	m := New()
	m.SetInPort(3)
	m.SetEthSrc(net.HardwareAddr{0x02, 0xAA, 0xAA, 0xAA, 0xAA, 0x01})
	m.SetEthDst(net.HardwareAddr{0x02, 0xAA, 0xAA, 0xAA, 0xAA, 0x02})
	m.SetEthType(0x0800)
	m.PushVlan(VlanTag{ID: 100, Present: true})
	m.SetIPv4Src(net.IPv4(10, 0, 0, 1))
	m.SetIPv4Dst(net.IPv4(10, 0, 0, 2))
	m.SetIPProto(6)
	m.SetIPTTL(64)
	m.SetTpSrc(1234)
	m.SetTpDst(80)
	m.AddPortGroup(7)
	return m
}

func TestCloneIsIndependent(t *testing.T) {
	orig := sampleMatch()
	clone := orig.Clone()

	if !orig.Equals(clone) {
		t.Fatalf("clone must equal original: diff=%v", cmp.Diff(orig, clone, cmpopts.IgnoreUnexported(Match{})))
	}

	clone.SetIPv4Dst(net.IPv4(10, 0, 0, 99))
	clone.PushVlan(VlanTag{ID: 200, Present: true})
	clone.AddPortGroup(42)

	dst, _ := orig.IPv4Dst()
	if !dst.Equal(net.IPv4(10, 0, 0, 2)) {
		t.Fatalf("mutating the clone must not affect the original, got IPv4Dst=%v", dst)
	}
	if len(orig.Vlans()) != 1 {
		t.Fatalf("original vlan stack mutated by clone: %v", orig.Vlans())
	}
	if orig.InPortGroup(42) {
		t.Fatalf("original port-group set mutated by clone")
	}
}

func TestEqualsComparesPresenceAndValue(t *testing.T) {
	a := New()
	b := New()
	if !a.Equals(b) {
		t.Fatal("two empty matches must be equal")
	}

	a.SetIPTTL(1)
	if a.Equals(b) {
		t.Fatal("a field present on only one side must not be equal")
	}

	b.SetIPTTL(2)
	if a.Equals(b) {
		t.Fatal("differing values of a present field must not be equal")
	}

	b.SetIPTTL(1)
	if !a.Equals(b) {
		t.Fatal("same presence and value must be equal")
	}
}

func TestDHCPMsgTypePresenceAndValue(t *testing.T) {
	a := New()
	b := New()
	if !a.Equals(b) {
		t.Fatal("two empty matches must be equal")
	}

	a.SetDHCPMsgType(1)
	if a.Equals(b) {
		t.Fatal("a dhcp message type present on only one side must not be equal")
	}
	if got, ok := a.DHCPMsgType(); !ok || got != 1 {
		t.Fatalf("DHCPMsgType() = %v, ok=%v, want 1, true", got, ok)
	}

	b.SetDHCPMsgType(3)
	if a.Equals(b) {
		t.Fatal("differing dhcp message types must not be equal")
	}
}

func TestVlanPushPop(t *testing.T) {
	m := New()
	m.PushVlan(VlanTag{ID: 10, Present: true})
	m.PushVlan(VlanTag{ID: 20, Present: true})

	if got := m.Vlans(); len(got) != 2 {
		t.Fatalf("expected 2 tags, got %v", got)
	}

	top, ok := m.PopVlan()
	if !ok || top.ID != 20 {
		t.Fatalf("expected innermost tag (20) to pop first, got %+v, ok=%v", top, ok)
	}
	top, ok = m.PopVlan()
	if !ok || top.ID != 10 {
		t.Fatalf("expected outer tag (10) to pop second, got %+v, ok=%v", top, ok)
	}
	if _, ok := m.PopVlan(); ok {
		t.Fatal("popping an empty stack must report ok=false")
	}
}

func TestVlanTCIEncoding(t *testing.T) {
	tag := VlanTag{ID: 0xFFF, Present: true}
	if got := tag.TCI(); got != 0x1FFF {
		t.Fatalf("TCI() = %#x, want %#x", got, 0x1FFF)
	}

	tag = VlanTag{ID: 0xFFF, Present: false}
	if got := tag.TCI(); got != 0x0FFF {
		t.Fatalf("TCI() without presence bit = %#x, want %#x", got, 0x0FFF)
	}
}
