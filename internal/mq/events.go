package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Domain event topics.
const (
	TopicUserRegistered = "users.registered"
	TopicRecipeCreated  = "recipes.created"
)

// Message attribute keys set on every event.
const (
	AttrContentType = "content-type"
	AttrEventType   = "event-type"
)

// Event is the JSON envelope published for domain events.
type Event struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// UserRegistered is the payload of TopicUserRegistered.
type UserRegistered struct {
	UserID   int    `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// RecipeCreated is the payload of TopicRecipeCreated.
type RecipeCreated struct {
	RecipeID int    `json:"recipe_id"`
	AuthorID int    `json:"author_id"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	TagIDs   []int  `json:"tag_ids"`
}

// PublishEvent wraps payload in an Event and publishes it on topic.
func (m *MQ) PublishEvent(ctx context.Context, topic string, payload any) (string, error) {
	data, err := EncodeEvent(topic, time.Now().UTC(), payload)
	if err != nil {
		return "", err
	}
	return m.Publish(ctx, topic, data, map[string]string{
		AttrContentType: "application/json",
		AttrEventType:   topic,
	})
}

// EncodeEvent marshals an Event envelope.
func EncodeEvent(topic string, at time.Time, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", topic, err)
	}
	return json.Marshal(Event{Type: topic, OccurredAt: at, Payload: raw})
}

// DecodeEvent parses an Event envelope from a message body.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if event.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}
	return event, nil
}
