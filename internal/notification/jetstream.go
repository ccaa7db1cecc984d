package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher is the slice of jetstream.JetStream the sink needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStreamSink publishes events as JSON to NATS JetStream.
type JetStreamSink struct {
	js     Publisher
	prefix string
}

// NewJetStreamSink publishes under "<prefix>.events.<kind>".
func NewJetStreamSink(js Publisher, prefix string) *JetStreamSink {
	return &JetStreamSink{js: js, prefix: prefix}
}

// Emit publishes the event. The event id doubles as the JetStream message
// id so redelivered publishes are deduplicated by the server.
func (s *JetStreamSink) Emit(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := s.js.Publish(ctx, s.Subject(event.Kind), data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subject returns the subject events of kind are published on.
func (s *JetStreamSink) Subject(kind Kind) string {
	return fmt.Sprintf("%s.events.%s", s.prefix, kind)
}

// Subjects returns the wildcard covering every event subject.
func Subjects(prefix string) []string {
	return []string{prefix + ".events.>"}
}
