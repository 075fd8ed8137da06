package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	appName        = "bluetooth-notify"
	configFileName = "config.json"

	NotifierDBus     = "dbus"
	NotifierDunstify = "dunstify"
)

type Config struct {
	ShowAdapterEvents bool `koanf:"show_adapter_events" json:"show_adapter_events"`
	ShowPairingEvents bool `koanf:"show_pairing_events" json:"show_pairing_events"`
	ShowAudioEvents   bool `koanf:"show_audio_events"   json:"show_audio_events"`
	ShowDeviceInfo    bool `koanf:"show_device_info"    json:"show_device_info"`

	NotificationTimeout int      `koanf:"notification_timeout" json:"notification_timeout"` // ms
	AudioDeviceTypes    []string `koanf:"audio_device_types"   json:"audio_device_types"`   // alias keywords

	Notifier     string  `koanf:"notifier"      json:"notifier"`      // "dbus" or "dunstify"
	FetchTimeout int     `koanf:"fetch_timeout" json:"fetch_timeout"` // ms per property read
	NotifyRate   float64 `koanf:"notify_rate"   json:"notify_rate"`   // per second, 0 = unlimited
	NotifyBurst  int     `koanf:"notify_burst"  json:"notify_burst"`

	LogLevel  string `koanf:"log_level"  json:"log_level"`
	LogOutput string `koanf:"log_output" json:"log_output"` // "journal", "stdout", "stderr", "console"
}

func defaults() map[string]any {
	return map[string]any{
		"show_adapter_events":  true,
		"show_pairing_events":  true,
		"show_audio_events":    true,
		"show_device_info":     true,
		"notification_timeout": 5000,
		"audio_device_types":   []string{"headset", "headphones", "speaker", "audio"},
		"notifier":             NotifierDBus,
		"fetch_timeout":        2000,
		"notify_rate":          5.0,
		"notify_burst":         10,
		"log_level":            "info",
		"log_output":           "journal",
	}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg, _ := load("")
	return cfg
}

// Path returns $XDG_CONFIG_HOME/bluetooth-notify/config.json, creating the
// directory if needed.
func Path() (string, error) {
	return xdg.ConfigFile(filepath.Join(appName, configFileName))
}

// Load merges the JSON file at path over the defaults. Keys missing from the
// file keep their default. If the file cannot be parsed, or holds a value of
// the wrong type, the defaults are returned together with the error.
func Load(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	k, err := defaultsKoanf()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return decode(k)
	}
	if _, err := os.Stat(path); err != nil {
		return decode(k)
	}

	if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
		return fallback(fmt.Errorf("load %s: %w", path, err))
	}
	cfg, err := decode(k)
	if err != nil {
		// Valid JSON holding a value of the wrong type.
		return fallback(fmt.Errorf("%s: %w", path, err))
	}
	return cfg, nil
}

func defaultsKoanf() (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	return k, nil
}

func decode(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// fallback returns the defaults together with the error that made the user
// file unusable.
func fallback(fileErr error) (*Config, error) {
	k, err := defaultsKoanf()
	if err != nil {
		return nil, err
	}
	cfg, err := decode(k)
	if err != nil {
		return nil, err
	}
	return cfg, fileErr
}

func (c *Config) normalize() {
	if c.NotificationTimeout < 0 {
		c.NotificationTimeout = 5000
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 2000
	}
	if !slices.Contains([]string{NotifierDBus, NotifierDunstify}, c.Notifier) {
		c.Notifier = NotifierDBus
	}
	if c.NotifyRate < 0 {
		c.NotifyRate = 0
	}
	if c.NotifyBurst <= 0 {
		c.NotifyBurst = 1
	}
}

// Save writes the full configuration, so users can see every key.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Millisecond
}
