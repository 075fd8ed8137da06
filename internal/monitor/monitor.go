// Package monitor turns BlueZ property changes into desktop notifications.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/mil-ad/bluenotify/internal/bluez"
	"github.com/mil-ad/bluenotify/internal/config"
	"github.com/mil-ad/bluenotify/internal/device"
	"github.com/mil-ad/bluenotify/internal/history"
	"github.com/mil-ad/bluenotify/internal/ipc"
	"github.com/mil-ad/bluenotify/internal/notify"
)

// ErrEventsClosed is returned by Run when the bus subscription ends.
var ErrEventsClosed = errors.New("bus event stream closed")

const defaultSaveDelay = 2 * time.Second

// Bus is the part of the system bus the monitor needs.
type Bus interface {
	device.PropertyGetter
	DevicePaths(ctx context.Context) ([]dbus.ObjectPath, error)
	Disconnect(ctx context.Context, path dbus.ObjectPath) error
}

// Options wires a Monitor. Bus, Events and Notifier are required.
type Options struct {
	Bus         Bus
	Events      <-chan bluez.PropertiesChanged
	Notifier    notify.Notifier
	Config      *config.Config
	History     *history.Store
	HistoryPath string // empty disables persistence
	Logger      zerolog.Logger
	Now         func() time.Time
	SaveDelay   time.Duration
}

type request struct {
	req   ipc.Request
	reply chan ipc.Response
}

// Monitor owns the cache, history and router, and runs them on a single
// goroutine. Everything it owns is only touched from Run.
type Monitor struct {
	bus         Bus
	events      <-chan bluez.PropertiesChanged
	notifier    notify.Notifier
	cache       *device.Cache
	history     *history.Store
	historyPath string
	router      *Router
	log         zerolog.Logger

	requests  chan request
	saveDelay time.Duration
	saveTimer *time.Timer
	dirty     bool
}

func New(opts Options) *Monitor {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	hist := opts.History
	if hist == nil {
		hist = history.NewStore(history.WithClock(now))
	}
	saveDelay := opts.SaveDelay
	if saveDelay <= 0 {
		saveDelay = defaultSaveDelay
	}

	cache := device.NewCache(
		device.NewFetcher(opts.Bus, cfg.FetchTimeoutDuration()),
		device.WithClock(now),
		device.WithLogger(opts.Logger),
	)
	policy := Policy{
		Classifier:      device.NewClassifier(cfg.AudioDeviceTypes),
		Timeout:         int32(cfg.NotificationTimeout),
		ShowDeviceInfo:  cfg.ShowDeviceInfo,
		ShowAudioEvents: cfg.ShowAudioEvents,
	}
	toggles := Toggles{AdapterEvents: cfg.ShowAdapterEvents, PairingEvents: cfg.ShowPairingEvents}

	m := &Monitor{
		bus:         opts.Bus,
		events:      opts.Events,
		notifier:    opts.Notifier,
		cache:       cache,
		history:     hist,
		historyPath: opts.HistoryPath,
		log:         opts.Logger,
		requests:    make(chan request),
		saveDelay:   saveDelay,
	}
	m.router = NewRouter(cache, hist, policy, toggles, opts.Notifier, opts.Logger)
	m.router.onHistoryChange = func() { m.dirty = true }
	return m
}

// Run discovers existing devices, then processes events until ctx is done
// or the event stream closes. History is flushed once before returning.
// Cancellation is checked between events, never inside one.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info().Msg("Bluetooth monitor started")
	// Handlers finish even if shutdown is requested mid-event.
	work := context.WithoutCancel(ctx)

	m.discover(work)
	m.log.Info().Msg("Monitoring Bluetooth events...")

	actions := m.notifier.Actions()
	for {
		var saveC <-chan time.Time
		if m.saveTimer != nil {
			saveC = m.saveTimer.C
		}

		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case ev, ok := <-m.events:
			if !ok {
				m.shutdown()
				return ErrEventsClosed
			}
			m.router.Handle(work, ev)
		case act, ok := <-actions:
			if !ok {
				actions = nil
				continue
			}
			m.handleAction(work, act)
		case r := <-m.requests:
			r.reply <- m.answer(r.req)
		case <-saveC:
			m.saveTimer = nil
			m.saveHistory()
		}

		if m.dirty && m.saveTimer == nil {
			m.saveTimer = time.NewTimer(m.saveDelay)
		}
	}
}

// Serve hands req to the loop and waits for its answer. It is safe to call
// from any goroutine.
func (m *Monitor) Serve(ctx context.Context, req ipc.Request) ipc.Response {
	r := request{req: req, reply: make(chan ipc.Response, 1)}
	select {
	case m.requests <- r:
	case <-ctx.Done():
		return ipc.Response{Error: "monitor busy: " + ctx.Err().Error()}
	}
	select {
	case resp := <-r.reply:
		return resp
	case <-ctx.Done():
		return ipc.Response{Error: "monitor busy: " + ctx.Err().Error()}
	}
}

func (m *Monitor) discover(ctx context.Context) {
	paths, err := m.bus.DevicePaths(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("Error discovering existing devices")
		return
	}

	var connected []string
	paired := 0
	for _, path := range paths {
		e := m.cache.Get(ctx, path)
		if e.Address == "" {
			continue
		}
		m.router.seed(e)
		if e.Connected {
			connected = append(connected, e.Alias)
		} else if e.Paired {
			paired++
		}
	}

	if len(connected) > 0 {
		m.log.Info().Strs("devices", connected).Msgf("Connected devices at startup: %s", strings.Join(connected, ", "))
	}
	if paired > 0 {
		m.log.Info().Int("count", paired).Msgf("Paired devices: %d total", paired)
	}
}

func (m *Monitor) handleAction(ctx context.Context, act notify.ActionEvent) {
	if act.Action != actionDisconnect {
		m.log.Debug().Str("action", act.Action).Msg("Ignoring unknown notification action")
		return
	}
	path := dbus.ObjectPath(act.Subject)
	if !path.IsValid() || !bluez.IsDevicePath(path) {
		m.log.Warn().Str("subject", act.Subject).Msg("Disconnect requested for invalid device path")
		return
	}
	if err := m.bus.Disconnect(ctx, path); err != nil {
		m.log.Warn().Err(err).Str("path", act.Subject).Msg("Disconnect failed")
		return
	}
	m.log.Info().Str("path", act.Subject).Msg("Disconnect requested from notification")
}

func (m *Monitor) answer(req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{Entities: m.statusEntries()}
	case ipc.CommandHistory:
		return ipc.Response{History: m.historyEntries()}
	default:
		return ipc.Response{Error: fmt.Sprintf("unknown command: %q", req.Command)}
	}
}

func (m *Monitor) statusEntries() []ipc.EntityStatus {
	out := make([]ipc.EntityStatus, 0, len(m.router.entities))
	for path, t := range m.router.entities {
		out = append(out, ipc.EntityStatus{
			Path:    string(path),
			Kind:    t.kind.String(),
			Alias:   t.alias,
			Address: t.address,
			State:   t.state.String(),

			Connected: copyBool(t.connected),
			Paired:    copyBool(t.paired),
			Powered:   copyBool(t.powered),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (m *Monitor) historyEntries() []ipc.HistoryEntry {
	snap := m.history.Snapshot()
	out := make([]ipc.HistoryEntry, 0, len(snap))
	for addr, rec := range snap {
		entry := ipc.HistoryEntry{
			Address:         addr,
			Alias:           rec.Alias,
			ConnectionCount: rec.ConnectionCount,
			IsFrequent:      rec.IsFrequent,
			FirstSeen:       unixSeconds(rec.FirstSeen.Time()),
		}
		if rec.LastConnected != nil {
			entry.LastConnected = unixSeconds(rec.LastConnected.Time())
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// saveHistory writes history to disk. A failed write is logged and not
// retried until the next change.
func (m *Monitor) saveHistory() {
	m.dirty = false
	if m.historyPath == "" {
		return
	}
	if err := m.history.Save(m.historyPath); err != nil {
		m.log.Warn().Err(err).Msg("Could not save device history")
	}
}

func (m *Monitor) shutdown() {
	m.log.Info().Msg("Bluetooth monitor shutting down...")
	if m.saveTimer != nil {
		m.saveTimer.Stop()
		m.saveTimer = nil
	}
	m.saveHistory()
}
