package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          MQTTMetrics    `json:"mqtt"`
	Commands      CommandMetrics `json:"commands"`
	State         StateMetrics   `json:"state"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected     bool `json:"connected"`
	Subscriptions int  `json:"subscriptions"`
}

// CommandMetrics contains command engine statistics.
type CommandMetrics struct {
	Defined int            `json:"defined"`
	Live    int            `json:"live"`
	ByState map[string]int `json:"by_state"`
}

// StateMetrics contains state store statistics.
type StateMetrics struct {
	Properties    int `json:"properties"`
	QueuedChanges int `json:"queued_changes"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.hub != nil {
		metrics.WebSocket = WSMetrics{ConnectedClients: s.hub.ClientCount()}
	}
	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Connected:     s.mqtt.IsConnected(),
			Subscriptions: s.mqtt.SubscriptionCount(),
		}
	}

	instances := s.commands.Commands()
	metrics.Commands = CommandMetrics{
		Defined: s.commands.Dictionary().Size(),
		Live:    len(instances),
		ByState: make(map[string]int),
	}
	for _, inst := range instances {
		metrics.Commands.ByState[string(inst.State())]++
	}

	metrics.State = StateMetrics{
		Properties:    len(s.states.PropertyNames()),
		QueuedChanges: s.states.Queue().Len(),
	}

	writeJSON(w, http.StatusOK, metrics)
}
