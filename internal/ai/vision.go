package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"safetyreport_backend/internal/taxonomy"

	"google.golang.org/genai"
)

// GeminiVisionClassifier classifies hazard photos against the taxonomy using
// a multimodal Gemini call.
type GeminiVisionClassifier struct {
	gemini *Gemini
}

func NewGeminiVisionClassifier(g *Gemini) *GeminiVisionClassifier {
	return &GeminiVisionClassifier{gemini: g}
}

const visionPromptTemplate = `You are a construction-site safety officer reviewing a hazard photo.

Classify the photo against this hazard taxonomy:
%s

Reply with ONLY a JSON object, no other text:
{"observationType": "Unsafe Act" or "Unsafe Condition", "code": "<taxonomy code>", "name": "<taxonomy name>"}

Pick the single best-matching taxonomy entry. Use the code and name exactly as listed.`

// Classify sends the image and taxonomy to Gemini and parses the structured
// reply. A result whose code is not in the snapshot is treated as malformed.
func (c *GeminiVisionClassifier) Classify(ctx context.Context, image ImageInput, snapshot taxonomy.Snapshot) (Classification, error) {
	if len(image.Data) == 0 {
		return Classification{}, fmt.Errorf("no image data")
	}

	prompt := fmt.Sprintf(visionPromptTemplate, formatTaxonomy(snapshot))

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{
					InlineData: &genai.Blob{
						MIMEType: image.MIMEType,
						Data:     image.Data,
					},
				},
				genai.NewPartFromText(prompt),
			},
		},
	}

	output, err := c.gemini.generate(ctx, c.gemini.visionModel, contents)
	if err != nil {
		return Classification{}, err
	}

	raw := extractJSON(output)
	if raw == "" {
		return Classification{}, fmt.Errorf("vision classifier returned no JSON: %q", truncate(output, 120))
	}

	var result Classification
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Classification{}, fmt.Errorf("decode vision result: %w", err)
	}

	entry, ok := snapshot.Lookup(result.Code)
	if !ok {
		return Classification{}, fmt.Errorf("vision classifier returned unknown code %q", result.Code)
	}
	result.Code = entry.Code
	result.Name = entry.Name

	if result.ObservationType == "" {
		result.ObservationType = "Unsafe Condition"
	}

	return result, nil
}

func formatTaxonomy(snapshot taxonomy.Snapshot) string {
	var b strings.Builder
	for _, e := range snapshot.Entries {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", e.Code, e.Name, e.Category)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
