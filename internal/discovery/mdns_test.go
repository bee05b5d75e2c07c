// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests manager creation and service entry conversion
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{
		ServiceName: "Test Bridge",
		Port:        8930,
	})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	mgr.Stop()
}

func TestEntryToBridge(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "garage._voicechat-bridge._tcp.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       8930,
		InfoFields: []string{"path=/vc"},
	}

	b := entryToBridge(entry)
	if b == nil {
		t.Fatal("expected bridge")
	}
	if b.Addr() != "192.168.1.20:8930" {
		t.Errorf("expected 192.168.1.20:8930, got %s", b.Addr())
	}
	if b.Path != "/vc" {
		t.Errorf("expected /vc, got %s", b.Path)
	}
}

func TestEntryWithoutAddress(t *testing.T) {
	if b := entryToBridge(&mdns.ServiceEntry{Name: "x"}); b != nil {
		t.Errorf("expected nil bridge, got %+v", b)
	}
}
