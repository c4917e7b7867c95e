// Package ingest is the queue boundary: inbound user messages arrive as
// asynq tasks enqueued by the messaging webhook and are consumed by the
// conversation worker.
package ingest

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskMessageReceived = "report.message.received"

// MessagePayload is one inbound user message. Exactly one of Text/ImageRef
// is semantically primary.
type MessagePayload struct {
	SenderKey string `json:"senderKey" validate:"required"`
	Text      string `json:"text" validate:"required_without=ImageRef"`
	ImageRef  string `json:"imageRef" validate:"omitempty,url"`
}

func NewMessageTask(payload MessagePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMessageReceived, data), nil
}

func ParseMessagePayload(task *asynq.Task) (MessagePayload, error) {
	var payload MessagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MessagePayload{}, err
	}
	return payload, nil
}
