// ABOUTME: Status publishing helpers for the bridge
// ABOUTME: Feeds the TUI and the client gauge after membership changes
package bridge

import "sort"

// updateTUI sends current bridge state to the TUI and metrics
func (s *Server) updateTUI() {
	stats := s.Stats()
	if s.metrics != nil {
		s.metrics.Clients.Set(float64(stats.Clients))
	}
	if s.tui == nil {
		return
	}

	s.clientsMu.RLock()
	clients := make([]ClientInfo, 0, len(s.clients))
	for _, client := range s.clients {
		client.mu.Lock()
		in, out := client.framesIn, client.framesOut
		client.mu.Unlock()

		clients = append(clients, ClientInfo{
			Name:      client.Name,
			ID:        client.ID,
			Since:     client.Connected,
			FramesIn:  in,
			FramesOut: out,
		})
	}
	s.clientsMu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].Since.Before(clients[j].Since) })

	s.tui.Update(BridgeStatus{
		Name:    s.config.Name,
		Port:    s.config.Port,
		Clients: clients,
		Stats:   stats,
	})
}
