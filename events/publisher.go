package events

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/code19m/errx"
	"github.com/goccy/go-json"
	"github.com/rise-and-shine/recoengine/meta"
)

const (
	MetadataEventType    = "event_type"
	MetadataAggregateID  = "aggregate_id"
	MetadataTraceID      = "trace_id"
	MetadataPartitionKey = "partition_key"
)

// Publisher dispatches committed domain events.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// Envelope is the wire form of an event.
type Envelope struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Version     string          `json:"version"`
	OccurredAt  time.Time       `json:"occurred_at"`
	TraceID     string          `json:"trace_id,omitempty"`
	Data        json.RawMessage `json:"data"`
}

// Topic returns the topic an event of eventType is published to.
func Topic(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// WatermillPublisher publishes events through any watermill message.Publisher.
type WatermillPublisher struct {
	pub    message.Publisher
	prefix string
}

// NewWatermillPublisher wraps pub. Topics are "{prefix}.{event_type}".
func NewWatermillPublisher(pub message.Publisher, topicPrefix string) *WatermillPublisher {
	return &WatermillPublisher{pub: pub, prefix: topicPrefix}
}

func (p *WatermillPublisher) Publish(ctx context.Context, events ...Event) error {
	for _, e := range events {
		msg, err := toMessage(ctx, e)
		if err != nil {
			return errx.Wrap(err)
		}

		err = p.pub.Publish(Topic(p.prefix, e.EventType()), msg)
		if err != nil {
			return errx.Wrap(err, errx.WithDetails(errx.D{
				"event_type":   e.EventType(),
				"aggregate_id": e.AggregateID(),
			}))
		}
	}
	return nil
}

func (p *WatermillPublisher) Close() error {
	return errx.Wrap(p.pub.Close())
}

func toMessage(ctx context.Context, e Event) (*message.Message, error) {
	data, err := json.Marshal(e.EventData())
	if err != nil {
		return nil, errx.Wrap(err)
	}

	env := Envelope{
		ID:          e.EventID(),
		Type:        e.EventType(),
		AggregateID: e.AggregateID(),
		Version:     e.EventVersion(),
		OccurredAt:  e.OccurredAt(),
		TraceID:     meta.Get(ctx, meta.TraceID),
		Data:        data,
	}
	if env.ID == "" {
		env.ID = watermill.NewUUID()
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	partitionKey := e.AggregateID()
	if pk, ok := e.(interface{ PartitionKey() string }); ok {
		partitionKey = pk.PartitionKey()
	}

	msg := message.NewMessage(env.ID, payload)
	msg.Metadata.Set(MetadataEventType, env.Type)
	msg.Metadata.Set(MetadataAggregateID, env.AggregateID)
	msg.Metadata.Set(MetadataPartitionKey, partitionKey)
	if env.TraceID != "" {
		msg.Metadata.Set(MetadataTraceID, env.TraceID)
	}
	msg.SetContext(ctx)
	return msg, nil
}

// DecodeEnvelope parses a message produced by WatermillPublisher.
func DecodeEnvelope(msg *message.Message) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(msg.Payload, &env)
	if err != nil {
		return Envelope{}, errx.Wrap(err, errx.WithType(errx.T_Validation))
	}
	return env, nil
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }
func (Nop) Close() error                            { return nil }
