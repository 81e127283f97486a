// Package telemetry provides the fire-and-forget diagnostics sink.
package telemetry

import (
	"github.com/google/uuid"

	"github.com/closetapp/closetd/internal/common"
	"github.com/closetapp/closetd/internal/interfaces"
)

// Compile-time interface check
var _ interfaces.TelemetrySink = (*Sink)(nil)

// Sink writes diagnostic events through the structured logger. Every call
// is best-effort: a sink must never block or throw back into core logic,
// so panics are swallowed here.
type Sink struct {
	logger *common.Logger
}

// NewSink creates a telemetry sink backed by the given logger.
func NewSink(logger *common.Logger) *Sink {
	return &Sink{logger: logger}
}

// LogEvent records a named diagnostic event with metadata.
func (s *Sink) LogEvent(name string, meta map[string]any) {
	defer func() { _ = recover() }()

	event := s.logger.Info().Str("event", name).Str("event_id", uuid.New().String()[:8])
	for k, v := range meta {
		event = event.Interface(k, v)
	}
	event.Msg("Telemetry event")
}

// LogError records an error with its classification and metadata.
func (s *Sink) LogError(err error, classification string, meta map[string]any) {
	defer func() { _ = recover() }()

	event := s.logger.Error().Err(err).
		Str("classification", classification).
		Str("event_id", uuid.New().String()[:8])
	for k, v := range meta {
		event = event.Interface(k, v)
	}
	event.Msg("Telemetry error")
}

// noopSink discards everything.
type noopSink struct{}

func (noopSink) LogEvent(string, map[string]any)        {}
func (noopSink) LogError(error, string, map[string]any) {}

// Noop returns a sink that discards all events (for tests).
func Noop() interfaces.TelemetrySink {
	return noopSink{}
}
