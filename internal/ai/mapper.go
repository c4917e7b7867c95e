package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"safetyreport_backend/internal/taxonomy"

	"google.golang.org/genai"
)

// minMapperConfidence is the threshold below which a mapper result is
// treated as NoMatch and the user is re-prompted.
const minMapperConfidence = 0.5

// GeminiTextMapper resolves free-text classification corrections to taxonomy
// codes with a small text-model call.
type GeminiTextMapper struct {
	gemini *Gemini
}

func NewGeminiTextMapper(g *Gemini) *GeminiTextMapper {
	return &GeminiTextMapper{gemini: g}
}

const mapperPromptTemplate = `Map the user's description to the single best category code from this list:
%s
User description: %q

Reply with ONLY a JSON object, no other text:
{"code": "<category code>", "confidence": <0.0-1.0>}

If no category is a reasonable match, or several match equally well, reply:
{"code": "NONE", "confidence": 0}`

// MapToTaxonomy asks the model for the closest code. Low confidence, an
// unknown code, or an explicit NONE all return ErrNoMatch.
func (m *GeminiTextMapper) MapToTaxonomy(ctx context.Context, text string, snapshot taxonomy.Snapshot) (Match, error) {
	prompt := fmt.Sprintf(mapperPromptTemplate, formatTaxonomy(snapshot), text)

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{genai.NewPartFromText(prompt)},
		},
	}

	output, err := m.gemini.generate(ctx, m.gemini.textModel, contents)
	if err != nil {
		return Match{}, err
	}

	match, err := decodeMatch(output, snapshot)
	if err != nil {
		return Match{}, err
	}

	return match, nil
}

func decodeMatch(output string, snapshot taxonomy.Snapshot) (Match, error) {
	raw := extractJSON(output)
	if raw == "" {
		if strings.Contains(strings.ToUpper(output), "NONE") {
			return Match{}, ErrNoMatch
		}
		return Match{}, fmt.Errorf("text mapper returned no JSON: %q", truncate(output, 120))
	}

	var match Match
	if err := json.Unmarshal([]byte(raw), &match); err != nil {
		return Match{}, fmt.Errorf("decode mapper result: %w", err)
	}

	if strings.EqualFold(match.Code, "NONE") || match.Confidence < minMapperConfidence {
		return Match{}, ErrNoMatch
	}

	entry, ok := snapshot.Lookup(match.Code)
	if !ok {
		return Match{}, ErrNoMatch
	}
	match.Code = entry.Code
	match.Name = entry.Name

	return match, nil
}
