package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mil-ad/bluenotify/internal/device"
	"github.com/mil-ad/bluenotify/internal/notify"
)

func testPolicy() Policy {
	return Policy{
		Classifier:      device.NewClassifier(device.DefaultAudioKeywords),
		Timeout:         5000,
		ShowDeviceInfo:  true,
		ShowAudioEvents: true,
	}
}

func uint8Ptr(v uint8) *uint8 { return &v }
func int16Ptr(v int16) *int16 { return &v }

func TestAdapterPowered(t *testing.T) {
	p := testPolicy()

	off := p.AdapterPowered("hci0", false)
	assert.Equal(t, "ᛒ Bluetooth Disabled", off.Title)
	assert.Contains(t, off.Body, "OFF")
	assert.Equal(t, notify.UrgencyLow, off.Urgency)
	assert.Equal(t, ReplaceAdapter, off.ReplacesID)
	assert.Equal(t, "bluetooth-disabled", off.Icon)

	on := p.AdapterPowered("hci0", true)
	assert.Equal(t, "ᛒ Bluetooth Enabled", on.Title)
	assert.Equal(t, "hci0 is now <b>ON</b>", on.Body)
	assert.Equal(t, off.ReplacesID, on.ReplacesID)
	assert.Equal(t, int32(5000), on.Timeout)
}

func TestDeviceConnectionAudio(t *testing.T) {
	p := testPolicy()
	e := device.Entity{
		Kind:    device.KindDevice,
		Path:    budsPath,
		Alias:   "Buds",
		Address: "AA:BB:CC:DD:EE:01",
		UUIDs:   []string{audioSinkUUID},
		Battery: uint8Ptr(80),
		RSSI:    int16Ptr(-50),
	}

	n := p.DeviceConnection(e, true)
	assert.Equal(t, "🎧 Buds", n.Title)
	assert.Equal(t, "Device <b>Connected</b> (Battery: 80%) • Signal: Strong", n.Body)
	assert.Equal(t, notify.UrgencyNormal, n.Urgency)
	assert.Equal(t, ReplaceAudio, n.ReplacesID)
	assert.Equal(t, device.IconAudioConnected, n.Icon)
	assert.Equal(t, string(budsPath), n.Subject)
	assert.Equal(t, []notify.Action{{Key: actionDisconnect, Label: "Disconnect"}}, n.Actions)

	n = p.DeviceConnection(e, false)
	assert.Equal(t, "Audio device <b>Disconnected</b>", n.Body)
	assert.Equal(t, ReplaceAudio, n.ReplacesID)
	assert.Empty(t, n.Actions)
}

func TestDeviceConnectionWithoutBattery(t *testing.T) {
	p := testPolicy()
	e := device.Entity{Kind: device.KindDevice, Alias: "Mouse", RSSI: int16Ptr(-70)}

	n := p.DeviceConnection(e, true)
	assert.Equal(t, "📱 Mouse", n.Title)
	assert.NotContains(t, n.Body, "Battery")
	assert.Equal(t, "Device <b>Connected</b> • Signal: Good", n.Body)
	assert.Equal(t, notify.UrgencyLow, n.Urgency)
	assert.Equal(t, ReplaceDevice, n.ReplacesID)
}

func TestDeviceConnectionHidesSignal(t *testing.T) {
	p := testPolicy()
	p.ShowDeviceInfo = false
	e := device.Entity{Kind: device.KindDevice, Alias: "Mouse", Battery: uint8Ptr(10), RSSI: int16Ptr(-90)}

	assert.Equal(t, "Device <b>Connected</b> (Battery: 10%)", p.DeviceConnection(e, true).Body)

	e.Battery = nil
	assert.Equal(t, "Device <b>Connected</b>", p.DeviceConnection(e, true).Body)
}

func TestDeviceConnectionAudioEventsOff(t *testing.T) {
	p := testPolicy()
	p.ShowAudioEvents = false
	e := device.Entity{Kind: device.KindDevice, Alias: "Buds", UUIDs: []string{audioSinkUUID}}

	n := p.DeviceConnection(e, true)
	assert.Equal(t, ReplaceDevice, n.ReplacesID)
	assert.Equal(t, "📱 Buds", n.Title)
	assert.Empty(t, n.Actions)
	assert.Equal(t, "Device <b>Disconnected</b>", p.DeviceConnection(e, false).Body)
}

func TestDevicePairing(t *testing.T) {
	p := testPolicy()
	e := device.Entity{Kind: device.KindDevice, Alias: "Keyboard"}

	paired := p.DevicePairing(e, true)
	assert.Equal(t, "🔗 Keyboard", paired.Title)
	assert.Equal(t, "Device <b>Paired</b> successfully", paired.Body)
	assert.Equal(t, notify.UrgencyNormal, paired.Urgency)
	assert.Equal(t, ReplacePairing, paired.ReplacesID)

	unpaired := p.DevicePairing(e, false)
	assert.Equal(t, "Device <b>Unpaired</b>", unpaired.Body)
	assert.Equal(t, "dialog-warning", unpaired.Icon)
}

func TestSignalLabel(t *testing.T) {
	tests := []struct {
		rssi int16
		want string
	}{
		{-30, "Strong"},
		{-59, "Strong"},
		{-60, "Good"},
		{-80, "Good"},
		{-81, "Weak"},
		{-100, "Weak"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SignalLabel(tt.rssi), "rssi %d", tt.rssi)
	}
}
