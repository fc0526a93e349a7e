// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

import "time"

// ConnState enumerates the state of a peer connection.
type ConnState int

const (
	ConnOpen ConnState = iota
	ConnClosing
)

func (s ConnState) String() string {
	switch s {
	case ConnOpen:
		return "open"
	case ConnClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// ServerStats provides a standard layout for service health/statistics reporting.
type ServerStats struct {
	ActiveConns   int64
	AcceptedConns uint64
	RejectedConns uint64
	Requests      uint64
	BytesRead     uint64 // bytes received
	BytesWritten  uint64 // bytes sent
	StartedAt     time.Time
}
