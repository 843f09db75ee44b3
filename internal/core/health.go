package core

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Health is the store reachability report returned by the health check.
// Offline reports carry a human-readable diagnostic message.
type Health struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs,omitempty"`
	Message   string `json:"message,omitempty"`
}
