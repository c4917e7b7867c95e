package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// maxAdviceChars bounds the generated advice so the final summary stays
// within a single message.
const maxAdviceChars = 600

// GeminiAdviceGenerator produces control-measure advice grounded on retrieved
// protocol snippets.
type GeminiAdviceGenerator struct {
	gemini *Gemini
}

func NewGeminiAdviceGenerator(g *Gemini) *GeminiAdviceGenerator {
	return &GeminiAdviceGenerator{gemini: g}
}

const advicePromptTemplate = `You are a construction-site safety officer.

A %s hazard was reported: %s (%s), severity %s.

Relevant safety protocol excerpts:
%s

Write a concise control-measure recommendation for the site team, 1 to 2
sentences, imperative voice. Base it on the excerpts above where they apply.
Reply with the recommendation only, no preamble.`

// Generate asks the text model for a short recommendation. The source
// reference is taken from the highest-ranked snippet when one exists.
func (a *GeminiAdviceGenerator) Generate(ctx context.Context, classification Classification, severity string, snippets []Snippet) (Advice, error) {
	prompt := fmt.Sprintf(advicePromptTemplate,
		classification.ObservationType,
		classification.Name,
		classification.Code,
		severity,
		formatSnippets(snippets),
	)

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{genai.NewPartFromText(prompt)},
		},
	}

	output, err := a.gemini.generate(ctx, a.gemini.textModel, contents)
	if err != nil {
		return Advice{}, err
	}

	text := strings.TrimSpace(output)
	if len(text) > maxAdviceChars {
		text = text[:maxAdviceChars]
	}

	advice := Advice{Text: text}
	if len(snippets) > 0 {
		advice.SourceRef = snippets[0].Source
	}

	return advice, nil
}

func formatSnippets(snippets []Snippet) string {
	if len(snippets) == 0 {
		return "(no protocol excerpts found; rely on general safety practice)"
	}

	var b strings.Builder
	for i, s := range snippets {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(s.Text))
	}
	return b.String()
}
