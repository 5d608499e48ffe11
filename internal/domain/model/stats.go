package model

// RegistryStats is a point-in-time census of the connection registry,
// exposed through the operational HTTP surface.
type RegistryStats struct {
	PendingConnections int `json:"pending_connections"`
	Collectives        int `json:"collectives"`
	TotalConnections   int `json:"total_connections"`
}
