package device

import (
	"strings"

	"github.com/google/uuid"
)

// Category is the semantic kind of a device.
type Category int

const (
	CategoryGeneric Category = iota
	CategoryAudio
	CategoryComputer
	CategoryPhone
	CategoryPointing
	CategoryKeyboard
	CategoryInput
)

func (c Category) String() string {
	switch c {
	case CategoryAudio:
		return "audio"
	case CategoryComputer:
		return "computer"
	case CategoryPhone:
		return "phone"
	case CategoryPointing:
		return "peripheral/pointing"
	case CategoryKeyboard:
		return "peripheral/keyboard"
	case CategoryInput:
		return "peripheral/input"
	}
	return "generic"
}

// Major and minor fields of the Bluetooth Class of Device.
const (
	majorComputer   = 0x01
	majorPhone      = 0x02
	majorAudioVideo = 0x04
	majorPeripheral = 0x05

	minorKeyboard = 0x10
	minorPointing = 0x20
)

const (
	IconAudioConnected    = "audio-headphones-bluetooth-symbolic"
	IconAudio             = "audio-headphones-symbolic"
	IconComputer          = "computer-symbolic"
	IconPhone             = "phone-symbolic"
	IconMouse             = "input-mouse-symbolic"
	IconKeyboard          = "input-keyboard-symbolic"
	IconInput             = "input-gaming-symbolic"
	IconBluetooth         = "bluetooth-symbolic"
	IconBluetoothDisabled = "bluetooth-disabled-symbolic"
)

// DefaultAudioKeywords match audio devices by alias when class and UUIDs say nothing.
var DefaultAudioKeywords = []string{"headset", "headphones", "speaker", "audio"}

var audioProfiles = map[uuid.UUID]struct{}{
	uuid.MustParse("0000110b-0000-1000-8000-00805f9b34fb"): {}, // Audio Sink
	uuid.MustParse("0000110e-0000-1000-8000-00805f9b34fb"): {}, // A/V Remote Control
	uuid.MustParse("0000111e-0000-1000-8000-00805f9b34fb"): {}, // Handsfree
	uuid.MustParse("00001108-0000-1000-8000-00805f9b34fb"): {}, // Headset
	uuid.MustParse("0000110a-0000-1000-8000-00805f9b34fb"): {}, // Audio Source
}

// Classification is the result of Classify.
type Classification struct {
	Category Category
	Icon     string
}

// Classifier maps entities to categories and icons. The zero value matches
// audio devices by UUID and class only.
type Classifier struct {
	keywords []string
}

func NewClassifier(keywords []string) Classifier {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return Classifier{keywords: kw}
}

func (c Classifier) IsAudio(e Entity) bool {
	for _, s := range e.UUIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		if _, ok := audioProfiles[id]; ok {
			return true
		}
	}
	if major, _, ok := classFields(e); ok && major == majorAudioVideo {
		return true
	}
	alias := strings.ToLower(e.Alias)
	for _, k := range c.keywords {
		if strings.Contains(alias, k) {
			return true
		}
	}
	return false
}

// Classify is total and deterministic.
func (c Classifier) Classify(e Entity) Classification {
	if c.IsAudio(e) {
		if e.Connected {
			return Classification{CategoryAudio, IconAudioConnected}
		}
		return Classification{CategoryAudio, IconAudio}
	}

	if major, minor, ok := classFields(e); ok {
		switch major {
		case majorComputer:
			return Classification{CategoryComputer, IconComputer}
		case majorPhone:
			return Classification{CategoryPhone, IconPhone}
		case majorPeripheral:
			switch {
			case minor&minorPointing != 0:
				return Classification{CategoryPointing, IconMouse}
			case minor&minorKeyboard != 0:
				return Classification{CategoryKeyboard, IconKeyboard}
			}
			return Classification{CategoryInput, IconInput}
		}
	}

	if e.Connected {
		return Classification{CategoryGeneric, IconBluetooth}
	}
	return Classification{CategoryGeneric, IconBluetoothDisabled}
}

func classFields(e Entity) (major, minor uint32, ok bool) {
	if e.Class == nil || *e.Class == 0 {
		return 0, 0, false
	}
	return (*e.Class >> 8) & 0x1F, (*e.Class >> 2) & 0x3F, true
}
