// Package events defines domain events, the aggregate event buffer, and watermill-backed
// publishers used to dispatch events after a unit of work commits.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is a fact that happened to an aggregate.
type Event interface {
	EventID() string
	EventType() string
	AggregateID() string
	EventVersion() string
	EventData() any
	OccurredAt() time.Time
}

// Aggregate is implemented by entities that buffer events until their unit of work
// saves them. PullEvents returns the buffered events and empties the buffer.
type Aggregate interface {
	PullEvents() []Event
}

// BaseEvent is the default Event implementation.
type BaseEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Aggregate   string    `json:"aggregate_id"`
	Version     string    `json:"version"`
	Data        any       `json:"data"`
	Timestamp   time.Time `json:"occurred_at"`
	PartitionBy string    `json:"-"`
}

func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) AggregateID() string   { return e.Aggregate }
func (e BaseEvent) EventData() any        { return e.Data }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

func (e BaseEvent) EventVersion() string {
	if e.Version == "" {
		return "v1"
	}
	return e.Version
}

// PartitionKey returns the key used to order events on partitioned transports.
// It defaults to the aggregate id.
func (e BaseEvent) PartitionKey() string {
	if e.PartitionBy != "" {
		return e.PartitionBy
	}
	return e.Aggregate
}

// EventBuilder assembles a BaseEvent.
type EventBuilder struct {
	event BaseEvent
}

func NewEventBuilder(eventType, aggregateID string) *EventBuilder {
	return &EventBuilder{event: BaseEvent{
		Type:      eventType,
		Aggregate: aggregateID,
		Version:   "v1",
	}}
}

func (b *EventBuilder) WithVersion(version string) *EventBuilder {
	b.event.Version = version
	return b
}

func (b *EventBuilder) WithData(data any) *EventBuilder {
	b.event.Data = data
	return b
}

// WithPartitionKey overrides the aggregate id as ordering key, e.g. to keep all
// events of one player on the same partition.
func (b *EventBuilder) WithPartitionKey(key string) *EventBuilder {
	b.event.PartitionBy = key
	return b
}

func (b *EventBuilder) At(t time.Time) *EventBuilder {
	b.event.Timestamp = t
	return b
}

func (b *EventBuilder) Build() BaseEvent {
	e := b.event
	e.ID = uuid.NewString()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}

// Recorder is embedded by aggregates to buffer events. The zero value is ready to use.
// Like the aggregate that embeds it, it is owned by one unit of work at a time.
type Recorder struct {
	pending []Event
}

// Record appends an event to the buffer.
func (r *Recorder) Record(e Event) {
	r.pending = append(r.pending, e)
}

// PullEvents returns and clears the buffered events.
func (r *Recorder) PullEvents() []Event {
	out := r.pending
	r.pending = nil
	return out
}

// Pending reports how many events are buffered.
func (r *Recorder) Pending() int {
	return len(r.pending)
}
