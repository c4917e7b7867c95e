package ai

import (
	"context"
	"fmt"

	"safetyreport_backend/platform/ai/embeddings"
	"safetyreport_backend/platform/logger"
	"safetyreport_backend/platform/qdrant"
)

// snippetLimit is how many protocol fragments we feed to the advice
// generator per report.
const snippetLimit = 2

// QdrantRetriever embeds the query and searches the protocol collection.
type QdrantRetriever struct {
	embedder *embeddings.Client
	qdrant   *qdrant.Client
	log      *logger.Logger
}

func NewQdrantRetriever(embedder *embeddings.Client, qc *qdrant.Client, log *logger.Logger) *QdrantRetriever {
	return &QdrantRetriever{embedder: embedder, qdrant: qc, log: log}
}

// Search retrieves the top protocol snippets for a classification. Results
// without usable text payloads are skipped.
func (r *QdrantRetriever) Search(ctx context.Context, code, severity string) ([]Snippet, error) {
	query := fmt.Sprintf("safety protocol for hazard %s, severity %s", code, severity)

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed retrieval query: %w", err)
	}

	results, err := r.qdrant.Search(ctx, vector, snippetLimit)
	if err != nil {
		return nil, fmt.Errorf("search protocols: %w", err)
	}

	snippets := make([]Snippet, 0, len(results))
	for _, res := range results {
		text := payloadString(res.Payload, "text", "chunk_text", "content")
		if text == "" {
			r.log.Warn("retrieval result without text payload", "id", res.ID)
			continue
		}
		snippets = append(snippets, Snippet{
			Text:   text,
			Source: payloadString(res.Payload, "filename", "source"),
			Score:  res.Score,
		})
	}

	return snippets, nil
}

func payloadString(payload map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// NoopRetriever is used when the knowledge base is not configured. Advice is
// then generated from general practice alone.
type NoopRetriever struct{}

func (NoopRetriever) Search(ctx context.Context, code, severity string) ([]Snippet, error) {
	return nil, nil
}
