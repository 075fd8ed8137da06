package notify

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Limited rate-limits notifications with a token bucket so a flapping device
// cannot flood the notification server. Over the limit, only the newest
// notification for each replace id is kept and delivered once a token is
// free, so every slot ends up showing the latest state. Notifications
// without a replace id are dropped.
type Limited struct {
	next    Notifier
	limiter *rate.Limiter
	retry   time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	pending map[uint32]Notification
	timer   *time.Timer
	closed  bool
}

// NewLimited wraps next. A perSecond of zero disables limiting.
func NewLimited(next Notifier, perSecond float64, burst int, log zerolog.Logger) *Limited {
	limit := rate.Limit(perSecond)
	retry := time.Duration(0)
	if perSecond <= 0 {
		limit = rate.Inf
	} else {
		retry = time.Duration(float64(time.Second) / perSecond)
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		retry:   retry,
		log:     log,
		pending: make(map[uint32]Notification),
	}
}

func (l *Limited) Notify(n Notification) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// A newer notification supersedes anything held for the same slot.
	delete(l.pending, n.ReplacesID)
	if l.limiter.Allow() {
		return l.next.Notify(n)
	}
	if n.ReplacesID == 0 || l.closed {
		l.log.Debug().Str("title", n.Title).Msg("Notification dropped by rate limit")
		return nil
	}

	l.log.Debug().Str("title", n.Title).Uint32("replace_id", n.ReplacesID).Msg("Notification deferred by rate limit")
	l.pending[n.ReplacesID] = n
	l.schedule()
	return nil
}

// schedule arms the flush timer. l.mu must be held.
func (l *Limited) schedule() {
	if l.timer == nil && len(l.pending) > 0 {
		l.timer = time.AfterFunc(l.retry, l.flush)
	}
}

func (l *Limited) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timer = nil
	if l.closed {
		return
	}

	ids := make([]uint32, 0, len(l.pending))
	for id := range l.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if !l.limiter.Allow() {
			break
		}
		n := l.pending[id]
		delete(l.pending, id)
		if err := l.next.Notify(n); err != nil {
			l.log.Warn().Err(err).Str("title", n.Title).Msg("Deferred notification failed")
		}
	}
	l.schedule()
}

// Pending returns how many notifications are waiting for a token.
func (l *Limited) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *Limited) Actions() <-chan ActionEvent {
	return l.next.Actions()
}

// Close discards deferred notifications and closes the wrapped notifier.
func (l *Limited) Close() error {
	l.mu.Lock()
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	clear(l.pending)
	l.mu.Unlock()
	return l.next.Close()
}
