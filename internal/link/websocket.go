// ABOUTME: Medium that reaches the bridge over a reconnecting WebSocket
// ABOUTME: Binary messages carry raw stream bytes in both directions
package link

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by Write while the socket is down
var ErrNotConnected = errors.New("link: not connected")

const writeDeadline = 10 * time.Second

// WebSocketConfig locates the bridge
type WebSocketConfig struct {
	// URL is the bridge endpoint, e.g. ws://host:8930/voicechat
	URL string

	// Name identifies the device to the bridge
	Name string

	// Reconnect is the delay between dial attempts
	Reconnect time.Duration

	RingSize int
}

// WebSocket is a transport medium backed by a bridge connection
type WebSocket struct {
	*Ring

	config WebSocketConfig
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	conn      *websocket.Conn
	connects  int
	lastError error
}

// Endpoint builds a bridge URL from host:port, carrying the device name
func Endpoint(addr, name string) string {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/voicechat"}
	if name != "" {
		q := u.Query()
		q.Set("name", name)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// NewWebSocket creates a medium; call Start to begin dialing
func NewWebSocket(config WebSocketConfig) *WebSocket {
	if config.Reconnect <= 0 {
		config.Reconnect = 2 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocket{
		Ring:   NewRing(config.RingSize),
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start dials in the background and keeps the connection up
func (w *WebSocket) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()
}

func (w *WebSocket) run() {
	target := w.config.URL
	if w.config.Name != "" {
		if u, err := url.Parse(target); err == nil && u.Query().Get("name") == "" {
			q := u.Query()
			q.Set("name", w.config.Name)
			u.RawQuery = q.Encode()
			target = u.String()
		}
	}

	for {
		if err := w.session(target); err != nil {
			w.mu.Lock()
			w.lastError = err
			w.mu.Unlock()
			log.Printf("Bridge link: %v", err)
		}

		select {
		case <-w.ctx.Done():
			return
		case <-time.After(w.config.Reconnect):
		}
	}
}

// session dials once and pumps messages until the socket fails
func (w *WebSocket) session(target string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(w.ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connects++
	w.mu.Unlock()
	log.Printf("Connected to bridge %s", target)

	stop := make(chan struct{})
	go func() {
		select {
		case <-w.ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	defer func() {
		close(stop)
		w.mu.Lock()
		w.conn = nil
		w.mu.Unlock()
		conn.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if w.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		w.Ring.Write(data)
	}
}

// Write sends p as one binary message
func (w *WebSocket) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return 0, ErrNotConnected
	}
	w.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, fmt.Errorf("link write: %w", err)
	}
	return len(p), nil
}

// Connected reports whether a socket is open
func (w *WebSocket) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

// Connects returns how many sessions have been established
func (w *WebSocket) Connects() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connects
}

// LastError returns the most recent dial or read failure
func (w *WebSocket) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastError
}

// Close stops dialing and closes the socket
func (w *WebSocket) Close() error {
	w.cancel()
	w.wg.Wait()
	return nil
}
