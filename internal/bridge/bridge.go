// ABOUTME: Bridge hub that links VoiceChat devices over WebSockets
// ABOUTME: Relays uplink audio as named frames and tracks who is online
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/songbird-audio/voicechat-go/internal/discovery"
	"github.com/songbird-audio/voicechat-go/pkg/transport"
)

const (
	writeDeadline = 10 * time.Second
	sendBuffer    = 256
)

// Config holds bridge configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	UseTUI     bool
	Debug      bool

	// PingEvery is the interval of keepalive control frames to devices
	PingEvery time.Duration
}

// Stats counts bridge traffic
type Stats struct {
	Clients       int
	AudioFrames   uint64
	LogFrames     uint64
	RelayedFrames uint64
	DroppedFrames uint64
	Rejected      uint64
}

// Server is the bridge hub
type Server struct {
	config    Config
	sessionID string

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*Client
	clientsMu sync.RWMutex

	statsMu sync.Mutex
	stats   Stats

	metrics *Metrics

	mdnsManager *discovery.Manager

	tui       *BridgeTUI
	startTime time.Time

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client is one connected device
type Client struct {
	ID        string
	Name      string
	Conn      *websocket.Conn
	Connected time.Time

	parser   transport.UplinkParser
	sendChan chan []byte
	sendOnce sync.Once

	mu        sync.Mutex
	framesIn  uint64
	framesOut uint64
}

// New creates a bridge; reg may be nil to skip metrics
func New(config Config, reg *prometheus.Registry) *Server {
	if config.PingEvery <= 0 {
		config.PingEvery = time.Second
	}

	s := &Server{
		config:    config,
		sessionID: uuid.New().String(),
		mux:       http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// devices are not browsers; accept any origin on the local network
				return true
			},
		},
		clients:   make(map[string]*Client),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}

	s.mux.HandleFunc(discovery.Path, s.handleWebSocket)
	if reg != nil {
		s.metrics = NewMetrics(reg)
		s.mux.Handle("/metrics", s.metrics.Handler())
	}
	return s
}

// Handler returns the HTTP handler serving the device endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the bridge until Stop or a TUI quit
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewBridgeTUI()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tui.Start(s.config.Name, s.config.Port)
		}()

		// Give TUI time to initialize
		time.Sleep(100 * time.Millisecond)
	}

	log.Printf("Bridge starting: %s (session: %s)", s.config.Name, s.sessionID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pingLoop()
	}()

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket bridge listening on %s%s", addr, discovery.Path)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	select {
	case <-s.stopChan:
		log.Printf("Bridge shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
		s.Stop()
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
		s.Stop()
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.tui != nil {
		s.tui.Stop()
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.closeClients()
	s.wg.Wait()
	log.Printf("Bridge stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the bridge
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
}

// validateName checks a device name against the username rules
func validateName(name string) error {
	if name == "" {
		return errors.New("missing device name")
	}
	if len(name) > transport.MaxUsername {
		return fmt.Errorf("device name longer than %d bytes", transport.MaxUsername)
	}
	return nil
}

// handleWebSocket admits one device
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	shutdown := s.isShutdown
	s.shutdownMu.RUnlock()
	if shutdown {
		http.Error(w, "bridge shutting down", http.StatusServiceUnavailable)
		return
	}

	name := r.URL.Query().Get("name")
	if err := validateName(name); err != nil {
		s.reject()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.clientsMu.RLock()
	_, exists := s.clients[name]
	full := len(s.clients) >= transport.MaxUsers
	s.clientsMu.RUnlock()
	if exists {
		s.reject()
		log.Printf("Device %s already connected, rejecting duplicate", name)
		http.Error(w, "device name already connected", http.StatusConflict)
		return
	}
	if full {
		s.reject()
		http.Error(w, "too many devices", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New device connection from %s", r.RemoteAddr)
	s.handleConnection(conn, name)
}

func (s *Server) reject() {
	s.statsMu.Lock()
	s.stats.Rejected++
	s.statsMu.Unlock()
}

// handleConnection registers the device and pumps its uplink frames
func (s *Server) handleConnection(conn *websocket.Conn, name string) {
	defer conn.Close()

	client := &Client{
		ID:        uuid.New().String(),
		Name:      name,
		Conn:      conn,
		Connected: time.Now(),
		sendChan:  make(chan []byte, sendBuffer),
	}

	// Check again under the write lock; the pre-upgrade check can race
	s.clientsMu.Lock()
	if _, exists := s.clients[name]; exists {
		s.clientsMu.Unlock()
		log.Printf("Device %s already connected, closing duplicate", name)
		return
	}
	others := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		others = append(others, c)
	}
	s.clients[name] = client
	s.clientsMu.Unlock()

	log.Printf("Device joined: %s (ID: %s)", client.Name, client.ID)

	// the newcomer learns who is already here, everyone else learns about the newcomer
	sort.Slice(others, func(i, j int) bool { return others[i].Connected.Before(others[j].Connected) })
	for _, c := range others {
		s.sendControl(client, transport.MsgJoin, c.Name)
	}
	s.broadcastControl(client, transport.MsgJoin, client.Name)
	s.updateTUI()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.Name)
		s.clientsMu.Unlock()
		client.closeSend()
		log.Printf("Device left: %s", client.Name)

		s.broadcastControl(client, transport.MsgPart, client.Name)
		s.updateTUI()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		s.handleUplink(client, data)
	}
}

// handleUplink parses device bytes and relays complete frames
func (s *Server) handleUplink(client *Client, data []byte) {
	desyncs, invalid := client.parser.Desyncs, client.parser.Invalid
	frames := client.parser.Feed(data)
	if s.metrics != nil {
		s.metrics.UplinkErrors.Add(float64(client.parser.Desyncs - desyncs + client.parser.Invalid - invalid))
	}

	for _, f := range frames {
		client.mu.Lock()
		client.framesIn++
		client.mu.Unlock()

		if f.IsLog() {
			s.countLog()
			log.Printf("[%s] %s", client.Name, f.Payload)
			continue
		}

		frame, err := transport.AppendAudioFrame(nil, f.Selector, client.Name, f.Payload)
		if err != nil {
			log.Printf("Dropping audio from %s on channel %d: %v", client.Name, f.Selector, err)
			s.countAudio(0, 1)
			continue
		}

		if s.config.Debug {
			log.Printf("[DEBUG] %s sent %d bytes on channel %d", client.Name, len(f.Payload), f.Selector)
		}
		relayed, dropped := s.broadcast(client, frame)
		s.countAudio(relayed, dropped)
	}
}

// broadcast queues frame for every device except from
func (s *Server) broadcast(from *Client, frame []byte) (relayed, dropped int) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		if c == from {
			continue
		}
		if err := s.sendBinary(c, frame); err != nil {
			log.Printf("Dropping frame for %s: %v", c.Name, err)
			dropped++
			continue
		}
		relayed++
	}
	return relayed, dropped
}

func (s *Server) sendControl(to *Client, msg transport.MsgType, username string) {
	frame, err := transport.AppendControlFrame(nil, msg, username)
	if err != nil {
		log.Printf("Error building %s frame: %v", msg, err)
		return
	}
	if err := s.sendBinary(to, frame); err != nil {
		log.Printf("Error sending %s to %s: %v", msg, to.Name, err)
	}
}

func (s *Server) broadcastControl(from *Client, msg transport.MsgType, username string) {
	frame, err := transport.AppendControlFrame(nil, msg, username)
	if err != nil {
		log.Printf("Error building %s frame: %v", msg, err)
		return
	}
	s.broadcast(from, frame)
}

// pingLoop keeps device liveness timers fed
func (s *Server) pingLoop() {
	ticker := time.NewTicker(s.config.PingEvery)
	defer ticker.Stop()

	ping, _ := transport.AppendControlFrame(nil, transport.MsgPing, "")
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.broadcast(nil, ping)
			s.updateTUI()
		}
	}
}

// sendBinary queues a frame for a device
func (s *Server) sendBinary(client *Client, data []byte) error {
	select {
	case client.sendChan <- data:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// clientWriter sends queued frames to the device
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-client.sendChan:
			if !ok {
				return
			}

			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				log.Printf("Error writing to %s: %v", client.Name, err)
				client.Conn.Close()
				return
			}
			client.mu.Lock()
			client.framesOut++
			client.mu.Unlock()

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// closeSend is safe to call while broadcasts hold only the read lock
func (c *Client) closeSend() {
	c.sendOnce.Do(func() { close(c.sendChan) })
}

func (s *Server) countLog() {
	s.statsMu.Lock()
	s.stats.LogFrames++
	s.statsMu.Unlock()
	if s.metrics != nil {
		s.metrics.LogFrames.Inc()
	}
}

func (s *Server) countAudio(relayed, dropped int) {
	s.statsMu.Lock()
	s.stats.AudioFrames++
	s.stats.RelayedFrames += uint64(relayed)
	s.stats.DroppedFrames += uint64(dropped)
	s.statsMu.Unlock()
	if s.metrics != nil {
		s.metrics.AudioFrames.Inc()
		s.metrics.RelayedFrames.Add(float64(relayed))
		s.metrics.DroppedFrames.Add(float64(dropped))
	}
}

// Users returns the connected device names sorted by join time
func (s *Server) Users() []string {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Connected.Before(clients[j].Connected) })

	names := make([]string, len(clients))
	for i, c := range clients {
		names[i] = c.Name
	}
	return names
}

// Stats returns a copy of the traffic counters
func (s *Server) Stats() Stats {
	s.statsMu.Lock()
	st := s.stats
	s.statsMu.Unlock()

	s.clientsMu.RLock()
	st.Clients = len(s.clients)
	s.clientsMu.RUnlock()
	return st
}
