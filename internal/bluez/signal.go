package bluez

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// PropertiesChanged is a decoded org.freedesktop.DBus.Properties.PropertiesChanged
// signal. Only the properties the monitor reacts to are kept; a nil field
// means the property was not part of the change.
type PropertiesChanged struct {
	Path        dbus.ObjectPath
	Interface   string
	Connected   *bool
	Paired      *bool
	Powered     *bool
	Invalidated []string
}

// Empty reports whether the change carries none of the tracked properties.
func (p PropertiesChanged) Empty() bool {
	return p.Connected == nil && p.Paired == nil && p.Powered == nil
}

// DecodePropertiesChanged converts a raw bus signal. It returns false for
// signals that are not well-formed PropertiesChanged emissions.
func DecodePropertiesChanged(sig *dbus.Signal) (PropertiesChanged, bool) {
	if sig == nil || sig.Name != propsSignal {
		return PropertiesChanged{}, false
	}
	// Body: [interface_name string, changed_props map[string]Variant, invalidated []string]
	if len(sig.Body) < 2 {
		return PropertiesChanged{}, false
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return PropertiesChanged{}, false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return PropertiesChanged{}, false
	}
	ev := PropertiesChanged{
		Path:      sig.Path,
		Interface: iface,
		Connected: boolProp(changed, "Connected"),
		Paired:    boolProp(changed, "Paired"),
		Powered:   boolProp(changed, "Powered"),
	}
	if len(sig.Body) > 2 {
		ev.Invalidated, _ = sig.Body[2].([]string)
	}
	return ev, true
}

func boolProp(changed map[string]dbus.Variant, name string) *bool {
	v, ok := changed[name]
	if !ok {
		return nil
	}
	b, ok := v.Value().(bool)
	if !ok {
		return nil
	}
	return &b
}

// Subscribe registers a match rule for PropertiesChanged under /org/bluez and
// returns decoded events in bus delivery order. The channel is closed when
// the connection is closed.
func (c *Conn) Subscribe() (<-chan PropertiesChanged, error) {
	rule := "type='signal',interface='" + propsIface + "',member='PropertiesChanged',path_namespace='" + rootPath + "'"
	if err := c.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		return nil, fmt.Errorf("add match: %w", err)
	}
	raw := make(chan *dbus.Signal, 16)
	c.conn.Signal(raw)

	out := make(chan PropertiesChanged, 16)
	go func() {
		defer close(out)
		for sig := range raw {
			if ev, ok := DecodePropertiesChanged(sig); ok {
				out <- ev
			}
		}
	}()
	return out, nil
}
