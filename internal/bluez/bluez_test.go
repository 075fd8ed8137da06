package bluez

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressFromPath(t *testing.T) {
	tests := []struct {
		name string
		path dbus.ObjectPath
		want string
	}{
		{"device on hci0", "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF", "AA:BB:CC:DD:EE:FF"},
		{"device on hci1", "/org/bluez/hci1/dev_11_22_33_44_55_66", "11:22:33:44:55:66"},
		{"adapter", "/org/bluez/hci0", ""},
		{"foreign path", "/org/other/dev_AA_BB", ""},
		{"root", "/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddressFromPath(tt.path))
		})
	}
}

func TestDevicePathRoundTrip(t *testing.T) {
	path := DevicePath("/org/bluez/hci0", "AA:BB:CC:DD:EE:FF")
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"), path)
	assert.True(t, IsDevicePath(path))
	assert.False(t, IsDevicePath("/org/bluez/hci0"))
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", AddressFromPath(path))
}

func TestDecodePropertiesChanged(t *testing.T) {
	sig := &dbus.Signal{
		Path: "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF",
		Name: propsSignal,
		Body: []any{
			DeviceIface,
			map[string]dbus.Variant{
				"Connected": dbus.MakeVariant(true),
				"Paired":    dbus.MakeVariant(false),
				"RSSI":      dbus.MakeVariant(int16(-50)),
			},
			[]string{"Alias"},
		},
	}

	ev, ok := DecodePropertiesChanged(sig)
	require.True(t, ok)
	assert.Equal(t, DeviceIface, ev.Interface)
	assert.Equal(t, sig.Path, ev.Path)
	require.NotNil(t, ev.Connected)
	assert.True(t, *ev.Connected)
	require.NotNil(t, ev.Paired)
	assert.False(t, *ev.Paired)
	assert.Nil(t, ev.Powered)
	assert.Equal(t, []string{"Alias"}, ev.Invalidated)
	assert.False(t, ev.Empty())
}

func TestDecodePropertiesChangedRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		sig  *dbus.Signal
	}{
		{"nil", nil},
		{"other signal", &dbus.Signal{Name: "org.freedesktop.DBus.NameOwnerChanged"}},
		{"short body", &dbus.Signal{Name: propsSignal, Body: []any{DeviceIface}}},
		{"bad interface type", &dbus.Signal{Name: propsSignal, Body: []any{42, map[string]dbus.Variant{}}}},
		{"bad changed type", &dbus.Signal{Name: propsSignal, Body: []any{DeviceIface, "nope"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := DecodePropertiesChanged(tt.sig)
			assert.False(t, ok)
		})
	}
}

func TestDecodeIgnoresNonBoolValues(t *testing.T) {
	sig := &dbus.Signal{
		Path: "/org/bluez/hci0",
		Name: propsSignal,
		Body: []any{
			AdapterIface,
			map[string]dbus.Variant{"Powered": dbus.MakeVariant("yes")},
		},
	}
	ev, ok := DecodePropertiesChanged(sig)
	require.True(t, ok)
	assert.Nil(t, ev.Powered)
	assert.True(t, ev.Empty())
	assert.Nil(t, ev.Invalidated)
}
