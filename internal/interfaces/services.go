package interfaces

// TelemetrySink receives fire-and-forget diagnostic events. Implementations
// must never block or propagate errors back into core logic.
type TelemetrySink interface {
	LogEvent(name string, meta map[string]any)
	LogError(err error, classification string, meta map[string]any)
}
