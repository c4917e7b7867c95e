// Package ai defines the narrow adapter contracts for the AI-assisted steps
// of the reporting conversation, plus their Gemini- and Qdrant-backed
// implementations. Adapters are replaceable external collaborators: handlers
// depend on the interfaces only.
package ai

import (
	"context"
	"errors"

	"safetyreport_backend/internal/taxonomy"
)

// ErrNoMatch is returned by the text mapper when no confident taxonomy match
// exists, including ambiguous ties. The caller re-prompts rather than guess.
var ErrNoMatch = errors.New("no confident taxonomy match")

// ImageInput is raw image data for classification.
type ImageInput struct {
	MIMEType string
	Data     []byte
}

// Classification is a vision-classifier result.
type Classification struct {
	ObservationType string `json:"observationType"`
	Code            string `json:"code"`
	Name            string `json:"name"`
}

// VisionClassifier maps a hazard photo to a taxonomy category.
type VisionClassifier interface {
	Classify(ctx context.Context, image ImageInput, snapshot taxonomy.Snapshot) (Classification, error)
}

// Match is a text-mapper result.
type Match struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// TextMapper resolves a free-text classification correction to the closest
// taxonomy code.
type TextMapper interface {
	MapToTaxonomy(ctx context.Context, text string, snapshot taxonomy.Snapshot) (Match, error)
}

// Snippet is a retrieved protocol fragment.
type Snippet struct {
	Text   string
	Source string
	Score  float64
}

// Retriever searches the knowledge base for protocol snippets relevant to a
// classification and severity. An empty result is not an error.
type Retriever interface {
	Search(ctx context.Context, code, severity string) ([]Snippet, error)
}

// Advice is a generated control measure with its source reference.
type Advice struct {
	Text      string
	SourceRef string
}

// AdviceGenerator produces a short control-measure recommendation from
// retrieved snippets.
type AdviceGenerator interface {
	Generate(ctx context.Context, classification Classification, severity string, snippets []Snippet) (Advice, error)
}
