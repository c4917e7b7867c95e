package engine

import (
	"context"

	"safetyreport_backend/internal/ai"
	"safetyreport_backend/internal/conversation/domain"
	"safetyreport_backend/internal/storage"
	"safetyreport_backend/internal/taxonomy"
	"safetyreport_backend/platform/logger"
)

// ImageSaver persists the inbound photo and returns the stored image.
type ImageSaver interface {
	Save(ctx context.Context, mediaURL, senderKey string) (storage.Image, error)
}

// SnapshotProvider supplies the point-in-time taxonomy lookup table.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (taxonomy.Snapshot, error)
}

// StartHandler opens a new conversation from an image message: store the
// photo, classify it, seed the draft.
type StartHandler struct {
	images   ImageSaver
	taxonomy SnapshotProvider
	vision   ai.VisionClassifier
	log      *logger.Logger
}

func NewStartHandler(images ImageSaver, taxonomy SnapshotProvider, vision ai.VisionClassifier, log *logger.Logger) *StartHandler {
	return &StartHandler{images: images, taxonomy: taxonomy, vision: vision, log: log}
}

func (h *StartHandler) Handle(ctx context.Context, state domain.State, msg domain.Message) (Outcome, error) {
	image, err := h.images.Save(ctx, msg.ImageRef, msg.SenderKey)
	if err != nil {
		// Storage trouble is infrastructure, not user input. Let the queue
		// redeliver; no state exists yet so the retry is safe.
		return Outcome{}, err
	}

	snapshot, err := h.taxonomy.Snapshot(ctx)
	if err != nil {
		return Outcome{}, err
	}

	classification, err := h.vision.Classify(ctx, ai.ImageInput{MIMEType: image.MIMEType, Data: image.Data}, snapshot)
	if err != nil {
		// Classifier failure leaves the user at NONE with no draft created.
		h.log.AdapterError("vision_classifier", err)
		return Outcome{Kind: OutcomeStay, Reply: msgResendPhoto}, nil
	}

	draft := domain.Draft{
		ObservationType:    classification.ObservationType,
		ClassificationCode: classification.Code,
		ClassificationName: classification.Name,
		ImageKey:           image.Key,
		ImageURL:           image.URL,
		ImageCapturedAt:    image.CapturedAt,
	}

	return Outcome{
		Kind:  OutcomeAdvance,
		Next:  domain.StateAwaitingLocation,
		Draft: draft,
		Reply: classificationReply(classification.ObservationType, classification.Code, classification.Name),
	}, nil
}
