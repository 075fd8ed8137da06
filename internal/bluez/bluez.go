// Package bluez wraps the system D-Bus connection used to watch BlueZ.
package bluez

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	BusName      = "org.bluez"
	AdapterIface = "org.bluez.Adapter1"
	DeviceIface  = "org.bluez.Device1"
	BatteryIface = "org.bluez.Battery1"

	rootPath           = "/org/bluez"
	propsIface         = "org.freedesktop.DBus.Properties"
	propsSignal        = "org.freedesktop.DBus.Properties.PropertiesChanged"
	objectManagerIface = "org.freedesktop.DBus.ObjectManager"
	devicePrefix       = "/dev_"
)

// ErrServiceUnavailable is returned when org.bluez is not on the system bus.
var ErrServiceUnavailable = errors.New("org.bluez not found on system bus, is bluetooth.service running?")

// IsDevicePath reports whether path names a device object rather than an adapter.
func IsDevicePath(path dbus.ObjectPath) bool {
	return strings.Contains(string(path), devicePrefix)
}

// AddressFromPath extracts a MAC address from a BlueZ device object path,
// e.g. "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF" -> "AA:BB:CC:DD:EE:FF".
func AddressFromPath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, devicePrefix)
	if i < 0 || !strings.HasPrefix(s, rootPath+"/") {
		return ""
	}
	return strings.ReplaceAll(s[i+len(devicePrefix):], "_", ":")
}

// DevicePath builds the object path of addr under the given adapter.
func DevicePath(adapter dbus.ObjectPath, addr string) dbus.ObjectPath {
	escaped := strings.ReplaceAll(addr, ":", "_")
	return dbus.ObjectPath(string(adapter) + devicePrefix + escaped)
}

// Conn is a system bus connection that has verified BlueZ is present.
type Conn struct {
	conn *dbus.Conn
}

// Connect opens the system bus and checks that BlueZ owns its name.
func Connect() (*Conn, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	if !slices.Contains(names, BusName) {
		conn.Close()
		return nil, ErrServiceUnavailable
	}
	return &Conn{conn: conn}, nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// GetProperty reads a single property through org.freedesktop.DBus.Properties.Get.
func (c *Conn) GetProperty(ctx context.Context, path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	obj := c.conn.Object(BusName, path)
	var v dbus.Variant
	err := obj.CallWithContext(ctx, propsIface+".Get", 0, iface, prop).Store(&v)
	return v, err
}

// DevicePaths lists every object exporting org.bluez.Device1.
func (c *Conn) DevicePaths(ctx context.Context) ([]dbus.ObjectPath, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	obj := c.conn.Object(BusName, "/")
	if err := obj.CallWithContext(ctx, objectManagerIface+".GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("get managed objects: %w", err)
	}
	paths := make([]dbus.ObjectPath, 0, len(objects))
	for path, ifaces := range objects {
		if _, ok := ifaces[DeviceIface]; ok {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// Disconnect asks BlueZ to drop the connection to the device at path.
func (c *Conn) Disconnect(ctx context.Context, path dbus.ObjectPath) error {
	obj := c.conn.Object(BusName, path)
	return obj.CallWithContext(ctx, DeviceIface+".Disconnect", 0).Err
}
