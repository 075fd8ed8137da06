// Package device fetches, caches and classifies BlueZ adapters and devices.
package device

import "github.com/godbus/dbus/v5"

// Kind distinguishes adapters from remote devices.
type Kind int

const (
	KindDevice Kind = iota
	KindAdapter
)

func (k Kind) String() string {
	if k == KindAdapter {
		return "adapter"
	}
	return "device"
}

const (
	UnknownDeviceAlias  = "Unknown Device"
	UnknownAdapterAlias = "Bluetooth Adapter"
)

// Entity is a decoded snapshot of an adapter or device. Optional attributes
// are nil when BlueZ did not report them.
type Entity struct {
	Kind    Kind
	Path    dbus.ObjectPath
	Address string
	Alias   string

	Connected    bool
	Paired       bool
	Trusted      bool
	Powered      bool
	Discoverable bool
	Pairable     bool

	RSSI    *int16
	Battery *uint8
	Class   *uint32
	UUIDs   []string
}

// Unknown returns the placeholder used when an object cannot be resolved.
func Unknown(kind Kind, path dbus.ObjectPath) Entity {
	alias := UnknownDeviceAlias
	if kind == KindAdapter {
		alias = UnknownAdapterAlias
	}
	return Entity{Kind: kind, Path: path, Alias: alias}
}
