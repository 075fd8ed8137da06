package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

const (
	appName         = "bluetooth-notify"
	historyFileName = "device_history.json"
)

// Timestamp is a time encoded as fractional unix seconds, the format the
// history file has always used.
type Timestamp time.Time

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	secs := float64(time.Time(t).UnixNano()) / float64(time.Second)
	return []byte(strconv.FormatFloat(secs, 'f', -1, 64)), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	whole, frac := math.Modf(secs)
	*t = Timestamp(time.Unix(int64(whole), int64(frac*float64(time.Second))))
	return nil
}

// DefaultPath returns $XDG_CONFIG_HOME/bluetooth-notify/device_history.json,
// creating the directory if needed.
func DefaultPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(appName, historyFileName))
}

// Load reads the history file at path into a new store. A missing file is
// not an error. A corrupt file yields an empty store and the parse error.
func Load(path string, opts ...Option) (*Store, error) {
	s := NewStore(opts...)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read history: %w", err)
	}
	var records map[string]*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return s, fmt.Errorf("parse history: %w", err)
	}
	for addr, rec := range records {
		if rec == nil {
			delete(records, addr)
		}
	}
	s.replace(records)
	return s, nil
}

// Save writes the store to path through a temporary file and rename so a
// crash mid-write never leaves a truncated history behind.
func (s *Store) Save(path string) error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
