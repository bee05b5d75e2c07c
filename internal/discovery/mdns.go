// ABOUTME: mDNS discovery of VoiceChat bridges on the local network
// ABOUTME: The bridge advertises itself; devices browse for it
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the DNS-SD type advertised by bridges
	ServiceType = "_voicechat-bridge._tcp"

	// Path is the WebSocket endpoint path advertised in TXT
	Path = "/voicechat"

	browseTimeout = 3 * time.Second
)

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	bridges chan *BridgeInfo
	server  *mdns.Server
}

// BridgeInfo describes a discovered bridge
type BridgeInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// Addr returns host:port
func (b *BridgeInfo) Addr() string {
	return net.JoinHostPort(b.Host, fmt.Sprintf("%d", b.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		bridges: make(chan *BridgeInfo, 10),
	}
}

// Advertise announces this bridge via mDNS
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=" + Path},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	m.server = server

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for bridges until Stop
func (m *Manager) Browse() {
	go m.browseLoop()
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				bridge := entryToBridge(entry)
				if bridge == nil {
					continue
				}

				log.Printf("Discovered bridge: %s at %s", bridge.Name, bridge.Addr())

				select {
				case m.bridges <- bridge:
				case <-m.ctx.Done():
				}
			}
		}()

		params := mdns.DefaultParams(ServiceType)
		params.Entries = entries
		params.Timeout = browseTimeout
		params.DisableIPv6 = true

		if err := mdns.Query(params); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		close(entries)
		<-done
	}
}

func entryToBridge(entry *mdns.ServiceEntry) *BridgeInfo {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}
	path := Path
	for _, field := range entry.InfoFields {
		if v, ok := strings.CutPrefix(field, "path="); ok && v != "" {
			path = v
		}
	}
	return &BridgeInfo{
		Name: entry.Name,
		Host: entry.AddrV4.String(),
		Port: entry.Port,
		Path: path,
	}
}

// Bridges returns the channel of discovered bridges
func (m *Manager) Bridges() <-chan *BridgeInfo {
	return m.bridges
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IPv4 addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
