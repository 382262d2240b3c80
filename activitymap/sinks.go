package activitymap

import (
	"context"

	"github.com/goliatone/go-print"
	"github.com/gyber/go-custody"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink counts activity events by verb and outcome
type PrometheusSink struct {
	events *prometheus.CounterVec
}

var _ custody.ActivitySink = (*PrometheusSink)(nil)

// NewPrometheusSink registers gyber_activity_events_total with reg
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gyber",
		Name:      "activity_events_total",
		Help:      "Activity events recorded by the custody core.",
	}, []string{"event", "outcome"})

	if reg != nil {
		if err := reg.Register(events); err != nil {
			return nil, err
		}
	}

	return &PrometheusSink{events: events}, nil
}

func (s *PrometheusSink) Record(_ context.Context, event custody.ActivityEvent) error {
	s.events.WithLabelValues(string(event.EventType), Outcome(event.EventType)).Inc()
	return nil
}

// Collector exposes the underlying counter, mostly for tests
func (s *PrometheusSink) Collector() *prometheus.CounterVec {
	return s.events
}

// LogSink writes normalized events to a logger at debug level
type LogSink struct {
	logger custody.Logger
	opts   []Option
}

var _ custody.ActivitySink = (*LogSink)(nil)

func NewLogSink(logger custody.Logger, opts ...Option) *LogSink {
	return &LogSink{logger: logger, opts: opts}
}

func (s *LogSink) Record(_ context.Context, event custody.ActivityEvent) error {
	if s.logger == nil {
		return nil
	}
	n := Normalize(event, s.opts...)
	s.logger.Debug("activity",
		"verb", n.Verb,
		"outcome", n.Outcome,
		"channel", n.Channel,
		"actor_id", n.ActorID,
		"object_id", n.ObjectID,
		"metadata", print.MaybePrettyJSON(n.Metadata),
	)
	return nil
}

// Fanout records every event on each sink and returns the first error
type Fanout []custody.ActivitySink

func (f Fanout) Record(ctx context.Context, event custody.ActivityEvent) error {
	var first error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
