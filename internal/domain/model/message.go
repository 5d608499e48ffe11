package model

import "time"

// DirectMessageRecord is a relayed message as the audit trail keeps it.
// Sender and Target are routing identities.
type DirectMessageRecord struct {
	ID         int64
	Sender     string
	Target     string
	Message    []byte
	ReceivedAt time.Time
	Node       string
	Marker     string
}
