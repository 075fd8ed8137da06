package monitor

import (
	"fmt"

	"github.com/mil-ad/bluenotify/internal/device"
	"github.com/mil-ad/bluenotify/internal/notify"
)

// Replace ids, one per notification category, so a new notification takes
// the place of the previous one in the same category.
const (
	ReplaceAdapter uint32 = 4001
	ReplaceDevice  uint32 = 4002
	ReplacePairing uint32 = 4003
	ReplaceAudio   uint32 = 4004
)

const (
	iconAdapterOn  = "bluetooth-active"
	iconAdapterOff = "bluetooth-disabled"
	iconPaired     = "dialog-information"
	iconUnpaired   = "dialog-warning"

	actionDisconnect = "disconnect"
)

// Policy turns transitions into notifications. Its methods depend only on
// their arguments and the policy's own settings.
type Policy struct {
	Classifier      device.Classifier
	Timeout         int32
	ShowDeviceInfo  bool
	ShowAudioEvents bool
}

func (p Policy) AdapterPowered(alias string, powered bool) notify.Notification {
	n := notify.Notification{
		Urgency:    notify.UrgencyLow,
		ReplacesID: ReplaceAdapter,
		Timeout:    p.Timeout,
	}
	if powered {
		n.Title = "ᛒ Bluetooth Enabled"
		n.Body = alias + " is now <b>ON</b>"
		n.Icon = iconAdapterOn
	} else {
		n.Title = "ᛒ Bluetooth Disabled"
		n.Body = alias + " is now <b>OFF</b>"
		n.Icon = iconAdapterOff
	}
	return n
}

// TreatAsAudio reports whether e takes the audio notification path.
func (p Policy) TreatAsAudio(e device.Entity) bool {
	return p.ShowAudioEvents && p.Classifier.IsAudio(e)
}

func (p Policy) DeviceConnection(e device.Entity, connected bool) notify.Notification {
	e.Connected = connected
	n := notify.Notification{
		Icon:    p.Classifier.Classify(e).Icon,
		Timeout: p.Timeout,
		Subject: string(e.Path),
	}

	audio := p.TreatAsAudio(e)
	if audio {
		n.Title = "🎧 " + e.Alias
		n.Urgency = notify.UrgencyNormal
		n.ReplacesID = ReplaceAudio
	} else {
		n.Title = "📱 " + e.Alias
		n.Urgency = notify.UrgencyLow
		n.ReplacesID = ReplaceDevice
	}

	switch {
	case connected:
		n.Body = "Device <b>Connected</b>" + p.deviceDetail(e)
		if audio {
			n.Actions = []notify.Action{{Key: actionDisconnect, Label: "Disconnect"}}
		}
	case audio:
		n.Body = "Audio device <b>Disconnected</b>"
	default:
		n.Body = "Device <b>Disconnected</b>"
	}
	return n
}

func (p Policy) DevicePairing(e device.Entity, paired bool) notify.Notification {
	n := notify.Notification{
		Title:      "🔗 " + e.Alias,
		Urgency:    notify.UrgencyNormal,
		ReplacesID: ReplacePairing,
		Timeout:    p.Timeout,
	}
	if paired {
		n.Body = "Device <b>Paired</b> successfully"
		n.Icon = iconPaired
	} else {
		n.Body = "Device <b>Unpaired</b>"
		n.Icon = iconUnpaired
	}
	return n
}

// deviceDetail appends the battery level whenever it is known, and the
// signal label when device info is enabled.
func (p Policy) deviceDetail(e device.Entity) string {
	var s string
	if e.Battery != nil {
		s += fmt.Sprintf(" (Battery: %d%%)", *e.Battery)
	}
	if p.ShowDeviceInfo && e.RSSI != nil {
		s += " • Signal: " + SignalLabel(*e.RSSI)
	}
	return s
}

// SignalLabel buckets an RSSI reading in dBm.
func SignalLabel(rssi int16) string {
	switch {
	case rssi > -60:
		return "Strong"
	case rssi < -80:
		return "Weak"
	}
	return "Good"
}
