// Package history keeps per-device connection statistics.
package history

import (
	"maps"
	"time"

	"github.com/mil-ad/bluenotify/internal/device"
)

// FrequentThreshold is the connection count at which a device becomes frequent.
const FrequentThreshold = 5

// Transition is the connection change carried by an observation.
type Transition int

const (
	// TransitionNone refreshes the alias only.
	TransitionNone Transition = iota
	TransitionConnected
	TransitionDisconnected
)

// Record holds the statistics kept for one device address.
type Record struct {
	Alias           string     `json:"alias"`
	FirstSeen       Timestamp  `json:"first_seen"`
	ConnectionCount int        `json:"connection_count"`
	LastConnected   *Timestamp `json:"last_connected"`
	IsFrequent      bool       `json:"is_frequent"`
}

// Store maps device addresses to records. Like the entity cache it is owned
// by the monitor loop and is not safe for concurrent writers.
type Store struct {
	records map[string]*Record
	now     func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{records: make(map[string]*Record), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe records a connection-state observation for e and reports whether
// the connection count changed. Entities without an address are ignored.
func (s *Store) Observe(e device.Entity, t Transition) bool {
	if e.Address == "" {
		return false
	}
	rec, ok := s.records[e.Address]
	if !ok {
		rec = &Record{FirstSeen: Timestamp(s.now())}
		s.records[e.Address] = rec
	}
	rec.Alias = e.Alias

	if t != TransitionConnected {
		return false
	}
	rec.ConnectionCount++
	last := Timestamp(s.now())
	rec.LastConnected = &last
	rec.IsFrequent = rec.ConnectionCount >= FrequentThreshold
	return true
}

func (s *Store) Get(addr string) (Record, bool) {
	rec, ok := s.records[addr]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Snapshot returns a copy of every record keyed by address.
func (s *Store) Snapshot() map[string]Record {
	out := make(map[string]Record, len(s.records))
	for addr, rec := range s.records {
		cp := *rec
		if rec.LastConnected != nil {
			last := *rec.LastConnected
			cp.LastConnected = &last
		}
		out[addr] = cp
	}
	return out
}

func (s *Store) Len() int {
	return len(s.records)
}

func (s *Store) replace(records map[string]*Record) {
	s.records = make(map[string]*Record, len(records))
	maps.Copy(s.records, records)
}
