// Package notify sends desktop notifications.
package notify

//go:generate mockgen -destination=mock_notifier.go -package=notify github.com/mil-ad/bluenotify/internal/notify Notifier

// AppName tags every notification sent by the monitor.
const AppName = "Bluetooth"

// Urgency represents notification priority levels per freedesktop spec.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyCritical:
		return "critical"
	}
	return "normal"
}

// Action is a button offered on a notification.
type Action struct {
	Key   string
	Label string
}

// Notification contains data for a desktop notification.
type Notification struct {
	Title      string   // Summary text (required)
	Body       string   // Body text, supports basic markup
	Icon       string   // Icon name or path
	Timeout    int32    // ms, -1 = server default, 0 = never expire
	ReplacesID uint32   // notifications sharing an id replace each other
	Urgency    Urgency  // Low, Normal, Critical
	Actions    []Action // optional buttons
	Subject    string   // opaque key echoed back in ActionEvent
}

// ActionEvent reports that the user chose an action on a notification.
type ActionEvent struct {
	Subject string
	Action  string
}

// Notifier dispatches notifications without waiting for the server.
type Notifier interface {
	// Notify hands n to the notification server. It only reports failures
	// to dispatch; the server's reply is never awaited.
	Notify(n Notification) error
	// Actions delivers invoked actions. It may return nil if the backend
	// cannot observe them.
	Actions() <-chan ActionEvent
	Close() error
}

// stubNotifier is used when no notification backend is reachable.
type stubNotifier struct{}

// NewStub returns a Notifier that drops everything.
func NewStub() Notifier {
	return stubNotifier{}
}

func (stubNotifier) Notify(Notification) error   { return nil }
func (stubNotifier) Actions() <-chan ActionEvent { return nil }
func (stubNotifier) Close() error                { return nil }
