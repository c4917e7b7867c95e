package ingest

import (
	"context"
	"fmt"

	"safetyreport_backend/internal/conversation/domain"
	"safetyreport_backend/internal/conversation/engine"
	"safetyreport_backend/platform/config"
	"safetyreport_backend/platform/logger"
	"safetyreport_backend/platform/phone"
	"safetyreport_backend/platform/validator"

	"github.com/hibiken/asynq"
)

// Worker consumes inbound message tasks and hands them to the dispatcher.
// Returning an error from a task handler makes asynq redeliver with backoff,
// which is the engine's only retry mechanism.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	dispatcher *engine.Dispatcher
	validate   *validator.Validator
	log        *logger.Logger
}

func NewWorker(cfg config.QueueConfig, dispatcher *engine.Dispatcher, val *validator.Validator, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetQueueConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		dispatcher: dispatcher,
		validate:   val,
		log:        log,
	}

	mux.HandleFunc(TaskMessageReceived, w.handleMessageReceived)

	return w, nil
}

func (w *Worker) handleMessageReceived(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseMessagePayload(task)
	if err != nil {
		w.log.Error("malformed message payload", "error", err.Error())
		return nil
	}

	if err := w.validate.Struct(payload); err != nil {
		// Invalid payloads can never succeed; drop instead of retrying.
		w.log.Error("invalid message payload", "error", err.Error())
		return nil
	}

	msg := domain.Message{
		SenderKey: phone.UserKey(payload.SenderKey),
		Text:      payload.Text,
		ImageRef:  payload.ImageRef,
	}

	return w.dispatcher.Handle(ctx, msg)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("ingest worker stopped", "error", err)
	}
}
