// Command send-test-message enqueues a synthetic inbound message, standing
// in for the messaging webhook during local testing.
//
// Usage:
//
//	send-test-message -to whatsapp:+6591234567 -text "Site Office"
//	send-test-message -to whatsapp:+6591234567 -image https://example.com/hazard.jpg
package main

import (
	"context"
	"flag"
	"time"

	"safetyreport_backend/internal/ingest"
	"safetyreport_backend/platform/config"
	"safetyreport_backend/platform/logger"
)

func main() {
	to := flag.String("to", "", "recipient sender key, e.g. whatsapp:+6591234567")
	text := flag.String("text", "", "message text")
	image := flag.String("image", "", "image URL")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	if *to == "" {
		log.Error("missing -to flag")
		flag.Usage()
		return
	}
	if *text == "" && *image == "" {
		log.Error("one of -text or -image is required")
		flag.Usage()
		return
	}

	client, err := ingest.NewClient(cfg)
	if err != nil {
		log.Error("failed to create queue client", "error", err)
		panic("failed to create queue client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload := ingest.MessagePayload{
		SenderKey: *to,
		Text:      *text,
		ImageRef:  *image,
	}

	if err := client.EnqueueMessage(ctx, payload); err != nil {
		log.Error("failed to enqueue message", "error", err)
		panic("failed to enqueue message: " + err.Error())
	}

	log.Info("message enqueued", "sender_key", *to)
}
