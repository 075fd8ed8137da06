package notify

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	dbusNotifyDest      = "org.freedesktop.Notifications"
	dbusNotifyPath      = "/org/freedesktop/Notifications"
	dbusNotifyInterface = "org.freedesktop.Notifications"

	actionInvokedSignal      = dbusNotifyInterface + ".ActionInvoked"
	notificationClosedSignal = dbusNotifyInterface + ".NotificationClosed"
)

// dbusNotifier sends notifications over the session bus.
type dbusNotifier struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	signals chan *dbus.Signal
	actions chan ActionEvent

	mu       sync.Mutex
	subjects map[uint32]string // notification id -> subject, for notifications with actions
}

// NewDBus connects to the session bus. If the bus is unavailable it returns
// a stub notifier together with the connection error.
func NewDBus() (Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return NewStub(), fmt.Errorf("connect to session bus: %w", err)
	}

	n := &dbusNotifier{
		conn:     conn,
		obj:      conn.Object(dbusNotifyDest, dbusNotifyPath),
		signals:  make(chan *dbus.Signal, 16),
		actions:  make(chan ActionEvent, 8),
		subjects: make(map[uint32]string),
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(dbusNotifyInterface),
		dbus.WithMatchObjectPath(dbusNotifyPath),
	); err != nil {
		// Notifications still work, actions will not be reported.
		return n, nil //nolint:nilerr // degrade to notifications without actions
	}
	conn.Signal(n.signals)
	go n.watch()
	return n, nil
}

// Notify sends the Notify call without waiting for the reply. When the
// notification has actions, the reply is collected on another goroutine so
// ActionInvoked signals can be mapped back to the subject.
func (n *dbusNotifier) Notify(notif Notification) error {
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(notif.Urgency)),
	}
	actions := make([]string, 0, 2*len(notif.Actions))
	for _, a := range notif.Actions {
		actions = append(actions, a.Key, a.Label)
	}

	// Notify(app_name, replaces_id, icon, summary, body, actions, hints, timeout) -> id
	call := n.obj.Go(
		dbusNotifyInterface+".Notify",
		0,
		make(chan *dbus.Call, 1),
		AppName,
		notif.ReplacesID,
		notif.Icon,
		notif.Title,
		notif.Body,
		actions,
		hints,
		notif.Timeout,
	)
	if call.Err != nil {
		return call.Err
	}
	if len(notif.Actions) > 0 && notif.Subject != "" {
		go n.awaitID(call, notif.Subject)
	}
	return nil
}

func (n *dbusNotifier) awaitID(call *dbus.Call, subject string) {
	reply := <-call.Done
	var id uint32
	if reply.Err != nil || reply.Store(&id) != nil {
		return
	}
	n.mu.Lock()
	n.subjects[id] = subject
	n.mu.Unlock()
}

func (n *dbusNotifier) watch() {
	defer close(n.actions)
	for sig := range n.signals {
		switch sig.Name {
		case actionInvokedSignal:
			// Body: [id uint32, action_key string]
			if len(sig.Body) < 2 {
				continue
			}
			id, ok1 := sig.Body[0].(uint32)
			key, ok2 := sig.Body[1].(string)
			if !ok1 || !ok2 {
				continue
			}
			n.mu.Lock()
			subject, ok := n.subjects[id]
			n.mu.Unlock()
			if !ok {
				continue
			}
			select {
			case n.actions <- ActionEvent{Subject: subject, Action: key}:
			default:
			}
		case notificationClosedSignal:
			if len(sig.Body) < 1 {
				continue
			}
			if id, ok := sig.Body[0].(uint32); ok {
				n.mu.Lock()
				delete(n.subjects, id)
				n.mu.Unlock()
			}
		}
	}
}

func (n *dbusNotifier) Actions() <-chan ActionEvent {
	return n.actions
}

// Close closes the session bus connection, which also ends the signal watcher.
func (n *dbusNotifier) Close() error {
	return n.conn.Close()
}
