package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// SubjectWorldEvents carries world-visible happenings: defeats,
	// global event progress, market settlements.
	SubjectWorldEvents = "world.events"

	// rebelSubjectPrefix scopes per-rebel delivery, one subject per
	// rebel id.
	rebelSubjectPrefix = "rebel."
)

// Event is the wire envelope for outcome notifications.
type Event struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`

	ActorID  string `json:"actor_id,omitempty"`
	TargetID string `json:"target_id,omitempty"`

	// Text is the rendered description, empty when the narrative
	// collaborator was unavailable.
	Text string `json:"text,omitempty"`

	Data any `json:"data,omitempty"`
}

// Publisher delivers typed events over the embedded bus.
type Publisher interface {
	PublishRebel(rebelID string, ev *Event) error
	PublishWorld(ev *Event) error
}

// NatsPublisher publishes events to per-rebel subjects and the shared
// world feed.
type NatsPublisher struct {
	server *NatsServer
}

// NewNatsPublisher wraps a NatsServer for event delivery.
func NewNatsPublisher(server *NatsServer) *NatsPublisher {
	return &NatsPublisher{server: server}
}

// PublishRebel delivers an event to one rebel's subject.
func (p *NatsPublisher) PublishRebel(rebelID string, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return p.server.Publish(RebelSubject(rebelID), data)
}

// PublishWorld delivers an event to the shared world feed.
func (p *NatsPublisher) PublishWorld(ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return p.server.Publish(SubjectWorldEvents, data)
}

// RebelSubject returns the delivery subject for one rebel.
func RebelSubject(rebelID string) string {
	return rebelSubjectPrefix + rebelID
}
