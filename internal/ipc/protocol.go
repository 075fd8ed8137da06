// Package ipc carries status queries between the CLI and a running monitor
// over a unix socket, one JSON request and one JSON response per connection.
package ipc

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	CommandStatus  = "status"
	CommandHistory = "history"

	socketName = "bluetooth-notify.sock"
)

// SocketPath returns the daemon socket under $XDG_RUNTIME_DIR.
func SocketPath() string {
	return filepath.Join(xdg.RuntimeDir, socketName)
}

// Request is sent from the CLI client to the daemon.
type Request struct {
	Command string `json:"command"` // "status" | "history"
}

// Response is sent from the daemon back to the CLI client.
type Response struct {
	Entities []EntityStatus `json:"entities,omitempty"`
	History  []HistoryEntry `json:"history,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// EntityStatus is the monitor's view of one adapter or device.
type EntityStatus struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`            // "adapter" | "device"
	Alias   string `json:"alias,omitempty"` // last known alias
	State   string `json:"state"`           // last observed change: "connected", "unpaired", "powered", ...
	Address string `json:"address,omitempty"`

	// Current flags; nil when not observed yet.
	Connected *bool `json:"connected,omitempty"`
	Paired    *bool `json:"paired,omitempty"`
	Powered   *bool `json:"powered,omitempty"`
}

// HistoryEntry is one device's connection statistics.
type HistoryEntry struct {
	Address         string  `json:"address"`
	Alias           string  `json:"alias"`
	ConnectionCount int     `json:"connection_count"`
	IsFrequent      bool    `json:"is_frequent"`
	FirstSeen       float64 `json:"first_seen"`
	LastConnected   float64 `json:"last_connected,omitempty"`
}
