package wsserver

import (
	"time"

	"github.com/odin-telemetry/telemetry-sdk/wsprotocol"
)

// startTimeBroadcast periodically pushes the server's wall-clock time to
// every connected client, gated by the time capability. It stops when the
// server is shut down.
func (s *Server) startTimeBroadcast(interval time.Duration) {
	if !s.caps.has(wsprotocol.CapabilityTime) {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.shutdown:
				return
			case <-ticker.C:
				frame := wsprotocol.EncodeTimeData(uint64(time.Now().UnixNano()))
				s.mu.RLock()
				sessions := make([]*clientSession, 0, len(s.clients))
				for _, cs := range s.clients {
					sessions = append(sessions, cs)
				}
				s.mu.RUnlock()
				for _, cs := range sessions {
					cs.sendData(frame)
				}
			}
		}
	}()
}
