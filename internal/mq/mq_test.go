package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/foodgram/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
	closed  bool
}

func (f *fakeBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	f.channel = channel
	f.data = data
	f.attrs = attrs
	return "msg-1", f.err
}

func (f *fakeBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return handler(ctx, Message{ID: "msg-1", Data: f.data})
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func TestPublishEvent(t *testing.T) {
	backend := &fakeBackend{}
	m := New(backend)

	id, err := m.PublishEvent(context.Background(), TopicRecipeCreated, RecipeCreated{RecipeID: 4, AuthorID: 2, Name: "Soup"})
	if err != nil {
		t.Fatalf("PublishEvent() error = %v", err)
	}
	if id != "msg-1" {
		t.Errorf("id = %q, want msg-1", id)
	}
	if backend.channel != TopicRecipeCreated {
		t.Errorf("channel = %q, want %q", backend.channel, TopicRecipeCreated)
	}
	if backend.attrs[AttrContentType] != "application/json" || backend.attrs[AttrEventType] != TopicRecipeCreated {
		t.Errorf("attrs = %v", backend.attrs)
	}

	event, err := DecodeEvent(backend.data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	var payload RecipeCreated
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.RecipeID != 4 || payload.Name != "Soup" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestPublishEvent_BackendError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("broker down")}
	if _, err := New(backend).PublishEvent(context.Background(), TopicUserRegistered, UserRegistered{UserID: 1}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestSubscribeAndClose(t *testing.T) {
	data, _ := EncodeEvent(TopicUserRegistered, time.Unix(0, 0).UTC(), UserRegistered{UserID: 9})
	backend := &fakeBackend{data: data}
	m := New(backend)

	var got Event
	err := m.Subscribe(context.Background(), TopicUserRegistered, func(_ context.Context, msg Message) error {
		var err error
		got, err = DecodeEvent(msg.Data)
		return err
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if got.Type != TopicUserRegistered {
		t.Errorf("event type = %q", got.Type)
	}

	if err := m.Close(); err != nil || !backend.closed {
		t.Errorf("Close() = %v, closed = %v", err, backend.closed)
	}
}

func TestDecodeEvent_MissingType(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"payload":{}}`)); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestOpen_Disabled(t *testing.T) {
	m, err := Open(context.Background(), config.MQConfig{Backend: config.MQNone})
	if err != nil || m != nil {
		t.Fatalf("Open(none) = %v, %v; want nil, nil", m, err)
	}
}

func TestOpen_RabbitMQRequiresURL(t *testing.T) {
	if _, err := Open(context.Background(), config.MQConfig{Backend: config.MQRabbitMQ}); err == nil {
		t.Fatal("expected error without RABBITMQ_URL")
	}
}

func TestHeadersToAttributes(t *testing.T) {
	attrs := headersToAttributes(map[string]any{"a": "x", "b": []byte("y"), "c": 3})
	if attrs["a"] != "x" || attrs["b"] != "y" || attrs["c"] != "3" {
		t.Errorf("headersToAttributes() = %v", attrs)
	}
	if headersToAttributes(nil) != nil {
		t.Error("expected nil for empty headers")
	}
}

func TestNewPublishing(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	attrs := map[string]string{AttrContentType: "application/json", AttrEventType: TopicRecipeCreated}

	msg := newPublishing([]byte(`{}`), attrs, true, now)
	if msg.Type != TopicRecipeCreated || msg.ContentType != "application/json" {
		t.Errorf("publishing = %+v", msg)
	}
	if msg.DeliveryMode != amqp.Persistent || !msg.Timestamp.Equal(now) || msg.MessageId == "" {
		t.Errorf("publishing = %+v", msg)
	}
	if msg.Headers[AttrEventType] != TopicRecipeCreated {
		t.Errorf("headers = %v", msg.Headers)
	}

	plain := newPublishing([]byte("x"), nil, false, now)
	if plain.ContentType != "application/octet-stream" || plain.DeliveryMode != 0 || plain.Type != "" {
		t.Errorf("publishing = %+v", plain)
	}
}

func TestDeliveryMessage(t *testing.T) {
	msg := deliveryMessage(amqp.Delivery{MessageId: "m1", Type: TopicUserRegistered, Body: []byte("b")})
	if msg.ID != "m1" || string(msg.Data) != "b" || msg.Attributes[AttrEventType] != TopicUserRegistered {
		t.Errorf("message = %+v", msg)
	}

	msg = deliveryMessage(amqp.Delivery{
		Type:    "ignored",
		Headers: amqp.Table{AttrEventType: TopicRecipeCreated},
	})
	if msg.Attributes[AttrEventType] != TopicRecipeCreated {
		t.Errorf("header should win over type property, got %v", msg.Attributes)
	}
}

func TestPubSubMessages(t *testing.T) {
	out := newPubSubMessage([]byte("b"), map[string]string{AttrEventType: TopicRecipeCreated})
	if out.OrderingKey != TopicRecipeCreated {
		t.Errorf("OrderingKey = %q, want %q", out.OrderingKey, TopicRecipeCreated)
	}
	if newPubSubMessage(nil, nil).OrderingKey != "" {
		t.Error("expected no ordering key without an event type")
	}

	in := pubSubMessage(&pubsub.Message{ID: "m1", Data: []byte("b"), OrderingKey: TopicUserRegistered})
	if in.ID != "m1" || in.Attributes[AttrEventType] != TopicUserRegistered {
		t.Errorf("message = %+v", in)
	}
}
