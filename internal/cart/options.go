package cart

import (
	"log/slog"
)

const (
	defaultMergeConcurrency = 4
	defaultTopic            = "cart_events"
)

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithPublisher sends cart events to topic. An empty topic keeps cart_events.
func WithPublisher(p Publisher, topic string) Option {
	return func(e *Engine) {
		e.pub = p
		if topic != "" {
			e.topic = topic
		}
	}
}

// WithMergeConcurrency caps the number of merge upserts in flight.
func WithMergeConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.mergeConcurrency = n
		}
	}
}

// WithRetainFailedMergeLines keeps guest lines whose merge upsert failed in the
// local store instead of discarding them.
func WithRetainFailedMergeLines(retain bool) Option {
	return func(e *Engine) { e.retainFailed = retain }
}
