package monitor

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/mil-ad/bluenotify/internal/bluez"
	"github.com/mil-ad/bluenotify/internal/device"
	"github.com/mil-ad/bluenotify/internal/history"
	"github.com/mil-ad/bluenotify/internal/notify"
)

// State is the last presence state observed for an entity.
type State int

const (
	StateUnknown State = iota
	StateSeenDisconnected
	StateSeenConnected
	StatePaired
	StateUnpaired
	StatePowered
	StateUnpowered
)

func (s State) String() string {
	switch s {
	case StateSeenDisconnected:
		return "disconnected"
	case StateSeenConnected:
		return "connected"
	case StatePaired:
		return "paired"
	case StateUnpaired:
		return "unpaired"
	case StatePowered:
		return "powered"
	case StateUnpowered:
		return "unpowered"
	}
	return "unknown"
}

// tracked is the router's memory of one entity between events.
type tracked struct {
	kind      device.Kind
	alias     string
	address   string
	state     State
	connected *bool
	paired    *bool
	powered   *bool
}

// Toggles selects which event types produce notifications.
type Toggles struct {
	AdapterEvents bool
	PairingEvents bool
}

// Router applies property-change events to the cache, the history and the
// tracker, and dispatches notifications. It runs on the monitor loop only.
type Router struct {
	cache    *device.Cache
	history  *history.Store
	policy   Policy
	toggles  Toggles
	notifier notify.Notifier
	log      zerolog.Logger

	entities map[dbus.ObjectPath]*tracked

	// onHistoryChange is called after a connect transition updated history.
	onHistoryChange func()
}

func NewRouter(cache *device.Cache, hist *history.Store, policy Policy, toggles Toggles, notifier notify.Notifier, log zerolog.Logger) *Router {
	return &Router{
		cache:    cache,
		history:  hist,
		policy:   policy,
		toggles:  toggles,
		notifier: notifier,
		log:      log,
		entities: make(map[dbus.ObjectPath]*tracked),
	}
}

// Handle processes one event. Each tracked property is handled on its own;
// a failing handler is logged and does not stop the others.
// An event on any interface, Battery1 included, drops the cached snapshot
// for its path.
func (r *Router) Handle(ctx context.Context, ev bluez.PropertiesChanged) {
	r.cache.Invalidate(ev.Path)

	switch ev.Interface {
	case bluez.AdapterIface:
		if ev.Powered != nil {
			powered := *ev.Powered
			r.guard("adapter", ev.Path, func() error { return r.adapterChanged(ctx, ev.Path, powered) })
		}
	case bluez.DeviceIface:
		if ev.Connected != nil {
			connected := *ev.Connected
			r.guard("connection", ev.Path, func() error { return r.connectionChanged(ctx, ev.Path, connected) })
		}
		if ev.Paired != nil {
			paired := *ev.Paired
			r.guard("pairing", ev.Path, func() error { return r.pairingChanged(ctx, ev.Path, paired) })
		}
	}
}

func (r *Router) guard(handler string, path dbus.ObjectPath, fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Warn().Str("handler", handler).Str("path", string(path)).
				Err(fmt.Errorf("panic: %v", p)).Msg("Error handling property change")
		}
	}()
	if err := fn(); err != nil {
		r.log.Warn().Str("handler", handler).Str("path", string(path)).Err(err).Msg("Error handling property change")
	}
}

func (r *Router) track(path dbus.ObjectPath, kind device.Kind) *tracked {
	t, ok := r.entities[path]
	if !ok {
		t = &tracked{kind: kind}
		r.entities[path] = t
	}
	return t
}

func (t *tracked) remember(e device.Entity) {
	t.alias = e.Alias
	if e.Address != "" {
		t.address = e.Address
	}
}

// swap stores v in *slot and reports whether it differs from the old value.
// An unknown old value always counts as a change.
func swap(slot **bool, v bool) bool {
	changed := *slot == nil || **slot != v
	*slot = &v
	return changed
}

func (r *Router) adapterChanged(ctx context.Context, path dbus.ObjectPath, powered bool) error {
	t := r.track(path, device.KindAdapter)
	changed := swap(&t.powered, powered)
	t.state = StateUnpowered
	if powered {
		t.state = StatePowered
	}

	e := r.cache.Get(ctx, path)
	t.remember(e)
	if !changed || !r.toggles.AdapterEvents {
		return nil
	}

	if err := r.notifier.Notify(r.policy.AdapterPowered(e.Alias, powered)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	r.log.Info().Str("alias", e.Alias).Bool("powered", powered).Msgf("Bluetooth adapter '%s' powered %s", e.Alias, onOff(powered))
	return nil
}

func (r *Router) connectionChanged(ctx context.Context, path dbus.ObjectPath, connected bool) error {
	t := r.track(path, device.KindDevice)
	changed := swap(&t.connected, connected)
	t.state = StateSeenDisconnected
	if connected {
		t.state = StateSeenConnected
	}

	e := r.cache.Get(ctx, path)
	e.Connected = connected
	t.remember(e)

	if !changed {
		r.history.Observe(e, history.TransitionNone)
		r.log.Debug().Str("alias", e.Alias).Bool("connected", connected).Msg("Repeated connection state ignored")
		return nil
	}

	transition := history.TransitionDisconnected
	if connected {
		transition = history.TransitionConnected
	}
	if r.history.Observe(e, transition) && r.onHistoryChange != nil {
		r.onHistoryChange()
	}

	n := r.policy.DeviceConnection(e, connected)
	if err := r.notifier.Notify(n); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	kind := "Device"
	if n.ReplacesID == ReplaceAudio {
		kind = "Audio device"
	}
	state := "disconnected"
	if connected {
		state = "connected"
	}
	r.log.Info().Str("alias", e.Alias).Str("address", e.Address).
		Msgf("%s %s: %s (%s)", kind, state, e.Alias, e.Address)
	return nil
}

func (r *Router) pairingChanged(ctx context.Context, path dbus.ObjectPath, paired bool) error {
	t := r.track(path, device.KindDevice)
	changed := swap(&t.paired, paired)
	t.state = StateUnpaired
	if paired {
		t.state = StatePaired
	}

	e := r.cache.Get(ctx, path)
	t.remember(e)
	if !changed || !r.toggles.PairingEvents {
		return nil
	}

	if err := r.notifier.Notify(r.policy.DevicePairing(e, paired)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	state := "unpaired"
	if paired {
		state = "paired"
	}
	r.log.Info().Str("alias", e.Alias).Str("address", e.Address).
		Msgf("Device %s: %s (%s)", state, e.Alias, e.Address)
	return nil
}

// seed records the state of an entity found at startup so that its first
// event is compared against reality rather than treated as new.
func (r *Router) seed(e device.Entity) {
	t := r.track(e.Path, e.Kind)
	t.remember(e)
	if e.Kind == device.KindAdapter {
		swap(&t.powered, e.Powered)
		t.state = StateUnpowered
		if e.Powered {
			t.state = StatePowered
		}
		return
	}
	swap(&t.connected, e.Connected)
	swap(&t.paired, e.Paired)
	switch {
	case e.Connected:
		t.state = StateSeenConnected
	case e.Paired:
		t.state = StatePaired
	default:
		t.state = StateSeenDisconnected
	}
}

// State returns the tracked state of path.
func (r *Router) State(path dbus.ObjectPath) State {
	if t, ok := r.entities[path]; ok {
		return t.state
	}
	return StateUnknown
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
