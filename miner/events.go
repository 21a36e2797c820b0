package miner

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/openmined/mine/pkg/mqtt"
)

type EventKind string

const (
	EventLog     EventKind = "log"
	EventError   EventKind = "error"
	EventConnect EventKind = "connect"
)

type Event struct {
	Kind    EventKind
	Message string
	Err     error
	// Online is the store liveness reported with a connect event.
	Online bool
	Time   time.Time
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind    EventKind `json:"kind"`
		Message string    `json:"message,omitempty"`
		Error   string    `json:"error,omitempty"`
		Online  *bool     `json:"online,omitempty"`
		Time    time.Time `json:"time"`
	}{
		Kind:    e.Kind,
		Message: e.Message,
		Time:    e.Time,
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	if e.Kind == EventConnect {
		out.Online = &e.Online
	}

	return json.Marshal(out)
}

// Sink receives events synchronously, in emission order.
type Sink interface {
	Handle(ctx context.Context, e Event)
}

type SinkFunc func(ctx context.Context, e Event)

func (f SinkFunc) Handle(ctx context.Context, e Event) {
	f(ctx, e)
}

// Sinks fans an event out to every sink in order.
type Sinks []Sink

func (s Sinks) Handle(ctx context.Context, e Event) {
	for _, sink := range s {
		sink.Handle(ctx, e)
	}
}

type loggerSink struct {
	logger *slog.Logger
}

func NewLoggerSink(logger *slog.Logger) Sink {
	return &loggerSink{logger: logger}
}

func (ls *loggerSink) Handle(ctx context.Context, e Event) {
	switch e.Kind {
	case EventError:
		ls.logger.ErrorContext(ctx, e.Message, slog.Any("error", e.Err))
	case EventConnect:
		ls.logger.InfoContext(ctx, "Miner connected", slog.Bool("online", e.Online))
	default:
		ls.logger.InfoContext(ctx, e.Message)
	}
}

type pubSubSink struct {
	pubsub mqtt.PubSub
	topic  string
	logger *slog.Logger
}

// NewPubSubSink publishes every event as JSON on topic. Publish failures are
// logged and never reach the emitter.
func NewPubSubSink(pubsub mqtt.PubSub, topic string, logger *slog.Logger) Sink {
	return &pubSubSink{
		pubsub: pubsub,
		topic:  topic,
		logger: logger,
	}
}

func (ps *pubSubSink) Handle(ctx context.Context, e Event) {
	if err := ps.pubsub.Publish(ctx, ps.topic, e); err != nil {
		ps.logger.Warn("Failed to publish miner event",
			slog.String("topic", ps.topic),
			slog.String("kind", string(e.Kind)),
			slog.Any("error", err),
		)
	}
}
