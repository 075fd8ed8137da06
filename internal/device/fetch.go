package device

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/mil-ad/bluenotify/internal/bluez"
)

// PropertyGetter reads one property of one object.
type PropertyGetter interface {
	GetProperty(ctx context.Context, path dbus.ObjectPath, iface, prop string) (dbus.Variant, error)
}

// Status classifies the outcome of a live fetch.
type Status int

const (
	StatusOK Status = iota
	// StatusPartial means the object resolved but some properties could not be read.
	StatusPartial
	// StatusUnavailable means neither alias nor address could be read.
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPartial:
		return "partial"
	case StatusUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// FetchResult is the typed outcome of a live fetch. Entity is always usable;
// Missing names the properties that could not be read.
type FetchResult struct {
	Entity  Entity
	Status  Status
	Missing []string
}

// Fetcher reads entities from BlueZ one property at a time. Each read gets
// its own timeout so a single stalled property cannot hold the loop for long.
type Fetcher struct {
	bus     PropertyGetter
	timeout time.Duration
}

func NewFetcher(bus PropertyGetter, timeout time.Duration) *Fetcher {
	return &Fetcher{bus: bus, timeout: timeout}
}

func (f *Fetcher) Fetch(ctx context.Context, path dbus.ObjectPath) FetchResult {
	if bluez.IsDevicePath(path) {
		return f.fetchDevice(ctx, path)
	}
	return f.fetchAdapter(ctx, path)
}

func (f *Fetcher) fetchDevice(ctx context.Context, path dbus.ObjectPath) FetchResult {
	r := &propReader{ctx: ctx, bus: f.bus, timeout: f.timeout, path: path}

	alias, aliasOK := r.str(bluez.DeviceIface, "Alias")
	addr, addrOK := r.str(bluez.DeviceIface, "Address")
	if !aliasOK && !addrOK {
		return FetchResult{Entity: Unknown(KindDevice, path), Status: StatusUnavailable, Missing: r.missing}
	}
	if !addrOK {
		addr = bluez.AddressFromPath(path)
	}
	if !aliasOK {
		alias = addr
	}

	e := Entity{
		Kind:      KindDevice,
		Path:      path,
		Address:   addr,
		Alias:     alias,
		Connected: r.boolean(bluez.DeviceIface, "Connected"),
		Paired:    r.boolean(bluez.DeviceIface, "Paired"),
		Trusted:   r.boolean(bluez.DeviceIface, "Trusted"),
	}
	if v, ok := r.integer(bluez.DeviceIface, "RSSI"); ok {
		rssi := int16(v)
		e.RSSI = &rssi
	}
	if v, ok := r.integer(bluez.BatteryIface, "Percentage"); ok {
		pct := uint8(v)
		e.Battery = &pct
	}
	if v, ok := r.integer(bluez.DeviceIface, "Class"); ok {
		class := uint32(v)
		e.Class = &class
	}
	if v, ok := r.get(bluez.DeviceIface, "UUIDs"); ok {
		if uuids, ok := v.([]string); ok {
			e.UUIDs = uuids
		} else {
			r.missing = append(r.missing, "UUIDs")
		}
	}
	return r.result(e)
}

func (f *Fetcher) fetchAdapter(ctx context.Context, path dbus.ObjectPath) FetchResult {
	r := &propReader{ctx: ctx, bus: f.bus, timeout: f.timeout, path: path}

	alias, aliasOK := r.str(bluez.AdapterIface, "Alias")
	addr, addrOK := r.str(bluez.AdapterIface, "Address")
	if !aliasOK && !addrOK {
		return FetchResult{Entity: Unknown(KindAdapter, path), Status: StatusUnavailable, Missing: r.missing}
	}
	if !aliasOK {
		alias = UnknownAdapterAlias
	}
	e := Entity{
		Kind:         KindAdapter,
		Path:         path,
		Address:      addr,
		Alias:        alias,
		Powered:      r.boolean(bluez.AdapterIface, "Powered"),
		Discoverable: r.boolean(bluez.AdapterIface, "Discoverable"),
		Pairable:     r.boolean(bluez.AdapterIface, "Pairable"),
	}
	return r.result(e)
}

type propReader struct {
	ctx     context.Context
	bus     PropertyGetter
	timeout time.Duration
	path    dbus.ObjectPath
	missing []string
}

func (r *propReader) get(iface, prop string) (any, bool) {
	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	v, err := r.bus.GetProperty(ctx, r.path, iface, prop)
	if err != nil {
		r.missing = append(r.missing, prop)
		return nil, false
	}
	return v.Value(), true
}

func (r *propReader) str(iface, prop string) (string, bool) {
	v, ok := r.get(iface, prop)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		r.missing = append(r.missing, prop)
	}
	return s, ok
}

// boolean defaults to false when the property cannot be read.
func (r *propReader) boolean(iface, prop string) bool {
	v, ok := r.get(iface, prop)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.missing = append(r.missing, prop)
	}
	return b
}

func (r *propReader) integer(iface, prop string) (int64, bool) {
	v, ok := r.get(iface, prop)
	if !ok {
		return 0, false
	}
	n, ok := asInt(v)
	if !ok {
		r.missing = append(r.missing, prop)
	}
	return n, ok
}

func (r *propReader) result(e Entity) FetchResult {
	status := StatusOK
	if len(r.missing) > 0 {
		status = StatusPartial
	}
	return FetchResult{Entity: e, Status: status, Missing: r.missing}
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}
