package auditevent

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Sink receives committed audit events in commit order. A sink failure is
// reported to the caller of Publish but never undoes the committed action.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Publish(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Sinks fans an event out to every sink and joins their errors.
type Sinks []Sink

func (s Sinks) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink mirrors audit events to a structured logger.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, e Event) error {
	evt := s.logger.Info()
	if e.Kind == KindEmergencyAccess {
		evt = s.logger.Warn()
	}
	evt.
		Str("type", "ledger_audit").
		Str("event_id", e.ID.String()).
		Uint64("sequence", e.Sequence).
		Str("kind", string(e.Kind)).
		Str("actor", e.Actor).
		Str("patient", e.Patient).
		Str("subject", e.Subject).
		Uint64("record_id", e.RecordID).
		Time("timestamp", e.Timestamp).
		Msg("audit_event")
	return nil
}

// RepoSink writes events to a Repository.
type RepoSink struct {
	repo Repository
}

func NewRepoSink(repo Repository) *RepoSink {
	return &RepoSink{repo: repo}
}

func (s *RepoSink) Publish(ctx context.Context, e Event) error {
	return s.repo.Append(ctx, &e)
}
