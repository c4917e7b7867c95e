package ingest

import (
	"context"
	"testing"

	"safetyreport_backend/platform/validator"

	"github.com/alicebob/miniredis/v2"
)

type testQueueConfig struct {
	redisURL string
}

func (c testQueueConfig) GetRedisURL() string      { return c.redisURL }
func (c testQueueConfig) GetRedisTLSInsecure() bool { return false }
func (c testQueueConfig) GetQueueName() string     { return "reports" }
func (c testQueueConfig) GetQueueConcurrency() int { return 1 }

func TestEnqueueMessage(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(testQueueConfig{redisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	err = client.EnqueueMessage(context.Background(), MessagePayload{
		SenderKey: "whatsapp:+6591234567",
		ImageRef:  "https://media.example.com/photo.jpg",
	})
	if err != nil {
		t.Fatalf("EnqueueMessage: %v", err)
	}

	found := false
	for _, key := range mr.Keys() {
		if len(key) >= 5 && key[:5] == "asynq" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected asynq task keys in redis, got %v", mr.Keys())
	}
}

func TestMessageTaskRoundTrip(t *testing.T) {
	payload := MessagePayload{
		SenderKey: "whatsapp:+6591234567",
		Text:      "Site Office",
	}

	task, err := NewMessageTask(payload)
	if err != nil {
		t.Fatalf("NewMessageTask: %v", err)
	}
	if task.Type() != TaskMessageReceived {
		t.Fatalf("task type = %q", task.Type())
	}

	parsed, err := ParseMessagePayload(task)
	if err != nil {
		t.Fatalf("ParseMessagePayload: %v", err)
	}
	if parsed != payload {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestMessagePayloadValidation(t *testing.T) {
	val := validator.New()

	valid := []MessagePayload{
		{SenderKey: "whatsapp:+6591234567", Text: "hello"},
		{SenderKey: "whatsapp:+6591234567", ImageRef: "https://media.example.com/a.jpg"},
	}
	for _, p := range valid {
		if err := val.Struct(p); err != nil {
			t.Fatalf("expected %+v to validate, got %v", p, err)
		}
	}

	invalid := []MessagePayload{
		{Text: "no sender"},
		{SenderKey: "whatsapp:+6591234567"},
		{SenderKey: "whatsapp:+6591234567", ImageRef: "not-a-url"},
	}
	for _, p := range invalid {
		if err := val.Struct(p); err == nil {
			t.Fatalf("expected %+v to fail validation", p)
		}
	}
}
