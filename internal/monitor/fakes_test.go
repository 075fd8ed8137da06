package monitor

import (
	"context"
	"errors"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/mil-ad/bluenotify/internal/bluez"
	"github.com/mil-ad/bluenotify/internal/notify"
)

const (
	adapterPath dbus.ObjectPath = "/org/bluez/hci0"
	budsPath    dbus.ObjectPath = "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_01"
	mousePath   dbus.ObjectPath = "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_02"
	ghostPath   dbus.ObjectPath = "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_03"

	audioSinkUUID = "0000110b-0000-1000-8000-00805f9b34fb"
)

var errNoProperty = errors.New("org.freedesktop.DBus.Error.InvalidArgs: No such property")

type fakeBus struct {
	mu           sync.Mutex
	props        map[dbus.ObjectPath]map[string]map[string]any
	panicOn      dbus.ObjectPath
	gets         int
	disconnected []dbus.ObjectPath
	pathsErr     error
}

func newFakeBus() *fakeBus {
	return &fakeBus{props: map[dbus.ObjectPath]map[string]map[string]any{}}
}

func (f *fakeBus) GetProperty(_ context.Context, path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path == f.panicOn {
		panic("fetch exploded")
	}
	f.gets++
	v, ok := f.props[path][iface][prop]
	if !ok {
		return dbus.Variant{}, errNoProperty
	}
	return dbus.MakeVariant(v), nil
}

func (f *fakeBus) DevicePaths(context.Context) ([]dbus.ObjectPath, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pathsErr != nil {
		return nil, f.pathsErr
	}
	var paths []dbus.ObjectPath
	for p, ifaces := range f.props {
		if _, ok := ifaces[bluez.DeviceIface]; ok {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func (f *fakeBus) Disconnect(_ context.Context, path dbus.ObjectPath) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, path)
	return nil
}

func (f *fakeBus) set(path dbus.ObjectPath, iface, prop string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.props[path] == nil {
		f.props[path] = map[string]map[string]any{}
	}
	if f.props[path][iface] == nil {
		f.props[path][iface] = map[string]any{}
	}
	f.props[path][iface][prop] = v
}

func (f *fakeBus) addAdapter(path dbus.ObjectPath, alias string, powered bool) {
	f.set(path, bluez.AdapterIface, "Alias", alias)
	f.set(path, bluez.AdapterIface, "Address", "00:11:22:33:44:55")
	f.set(path, bluez.AdapterIface, "Powered", powered)
	f.set(path, bluez.AdapterIface, "Discoverable", false)
	f.set(path, bluez.AdapterIface, "Pairable", true)
}

func (f *fakeBus) addDevice(path dbus.ObjectPath, alias string, connected bool) {
	f.set(path, bluez.DeviceIface, "Alias", alias)
	f.set(path, bluez.DeviceIface, "Address", bluez.AddressFromPath(path))
	f.set(path, bluez.DeviceIface, "Connected", connected)
	f.set(path, bluez.DeviceIface, "Paired", true)
	f.set(path, bluez.DeviceIface, "Trusted", true)
}

func (f *fakeBus) addBuds() {
	f.addDevice(budsPath, "Buds", false)
	f.set(budsPath, bluez.DeviceIface, "UUIDs", []string{audioSinkUUID})
	f.set(budsPath, bluez.DeviceIface, "RSSI", int16(-50))
	f.set(budsPath, bluez.BatteryIface, "Percentage", byte(90))
}

func (f *fakeBus) addMouse() {
	f.addDevice(mousePath, "Logitech Mouse", false)
	f.set(mousePath, bluez.DeviceIface, "Class", uint32(0x002580))
	f.set(mousePath, bluez.DeviceIface, "RSSI", int16(-85))
}

// recorder is a Notifier that keeps everything it is given.
type recorder struct {
	mu      sync.Mutex
	sent    []notify.Notification
	actions chan notify.ActionEvent
	err     error
}

func newRecorder() *recorder {
	return &recorder{actions: make(chan notify.ActionEvent, 4)}
}

func (r *recorder) Notify(n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) Actions() <-chan notify.ActionEvent { return r.actions }
func (r *recorder) Close() error                       { return nil }

func (r *recorder) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.sent...)
}

func (r *recorder) last() notify.Notification {
	all := r.all()
	if len(all) == 0 {
		return notify.Notification{}
	}
	return all[len(all)-1]
}

func boolPtr(v bool) *bool { return &v }

func deviceEvent(path dbus.ObjectPath, connected, paired *bool) bluez.PropertiesChanged {
	return bluez.PropertiesChanged{Path: path, Interface: bluez.DeviceIface, Connected: connected, Paired: paired}
}

func adapterEvent(path dbus.ObjectPath, powered bool) bluez.PropertiesChanged {
	return bluez.PropertiesChanged{Path: path, Interface: bluez.AdapterIface, Powered: boolPtr(powered)}
}
