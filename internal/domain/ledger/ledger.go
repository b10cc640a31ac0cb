// Package ledger implements the access-controlled medical-record ledger:
// the identity registry, the per-patient authorization sets, the global
// record store, the emergency read path and the audit trail they feed.
//
// Every operation takes the caller's verified principal id explicitly and
// runs to completion under a single ledger-wide lock. Guards run before any
// write, so a failed operation leaves no trace.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medledger/medledger/internal/domain/auditevent"
)

// Observer is notified of every operation outcome. Outcome is "ok" or the
// failing error's Kind.
type Observer interface {
	Observe(operation, outcome string, duration time.Duration)
	RecordCount(total uint64)
}

type Ledger struct {
	mu sync.RWMutex

	admin         string
	recordCounter uint64
	patients      map[string]*Patient
	doctors       map[string]*Doctor
	institutions  map[string]*Institution
	trail         *auditevent.Trail

	sinks          auditevent.Sinks
	observer       Observer
	logger         zerolog.Logger
	now            func() time.Time
	auditEmergency bool
}

type Option func(*Ledger)

// WithClock replaces time.Now for registration dates, record and event
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithSinks adds external audit sinks. They are called after each commit,
// in commit order, while the ledger lock is held.
func WithSinks(sinks ...auditevent.Sink) Option {
	return func(l *Ledger) { l.sinks = append(l.sinks, sinks...) }
}

func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observer = o }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithEmergencyAccessAudit makes EmergencyAccess append an EmergencyAccess
// event. Off by default: the emergency path is a pure read.
func WithEmergencyAccessAudit(enabled bool) Option {
	return func(l *Ledger) { l.auditEmergency = enabled }
}

// New creates an empty ledger administered by admin, normally the identity
// that deploys it.
func New(admin string, opts ...Option) (*Ledger, error) {
	if admin == "" {
		return nil, ErrInvalidPrincipal
	}
	l := &Ledger{
		admin:        admin,
		patients:     make(map[string]*Patient),
		doctors:      make(map[string]*Doctor),
		institutions: make(map[string]*Institution),
		trail:        auditevent.NewTrail(),
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Ledger) timestamp() time.Time {
	return l.now().UTC()
}

// emit appends e to the trail and hands the stored copy to the external
// sinks. Must be called with the write lock held, after all writes of the
// operation are applied.
func (l *Ledger) emit(ctx context.Context, e auditevent.Event) auditevent.Event {
	e.Timestamp = l.timestamp()
	stored := l.trail.Append(e)
	if len(l.sinks) > 0 {
		if err := l.sinks.Publish(ctx, stored); err != nil {
			l.logger.Error().Err(err).
				Uint64("sequence", stored.Sequence).
				Str("kind", string(stored.Kind)).
				Msg("audit sink publish failed")
		}
	}
	return stored
}

// track reports the outcome of an operation to the observer. Use it as
// `defer l.track(op, time.Now(), &err)`.
func (l *Ledger) track(operation string, start time.Time, err *error) {
	if l.observer == nil {
		return
	}
	outcome := "ok"
	if *err != nil {
		outcome = KindOf(*err).String()
	}
	l.observer.Observe(operation, outcome, time.Since(start))
}
