package ai

import (
	"errors"
	"testing"

	"safetyreport_backend/internal/taxonomy"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"bare object", `{"code": "A15"}`, `{"code": "A15"}`},
		{"fenced", "```json\n{\"code\": \"A15\"}\n```", `{"code": "A15"}`},
		{"fenced without language", "```\n{\"code\": \"A15\"}\n```", `{"code": "A15"}`},
		{"leading prose", `Sure! Here you go: {"code": "A15"}`, `{"code": "A15"}`},
		{"no object", "I cannot classify this image.", ""},
		{"unclosed fence", "```json\n{\"code\": \"A1\"}", `{"code": "A1"}`},
	}

	for _, tc := range cases {
		if got := extractJSON(tc.input); got != tc.want {
			t.Fatalf("%s: extractJSON(%q) = %q, want %q", tc.name, tc.input, got, tc.want)
		}
	}
}

func mapperSnapshot() taxonomy.Snapshot {
	return taxonomy.Snapshot{
		Entries: []taxonomy.Entry{
			{Code: "A1", Name: "Confined Spaces", Category: "Work at Risk"},
			{Code: "A15", Name: "Working at Height", Category: "Work at Risk"},
		},
	}
}

func TestDecodeMatchAcceptsConfidentResult(t *testing.T) {
	match, err := decodeMatch(`{"code": "a15", "confidence": 0.92}`, mapperSnapshot())
	if err != nil {
		t.Fatalf("decodeMatch: %v", err)
	}
	if match.Code != "A15" || match.Name != "Working at Height" {
		t.Fatalf("match = %+v", match)
	}
}

func TestDecodeMatchRejectsLowConfidence(t *testing.T) {
	_, err := decodeMatch(`{"code": "A15", "confidence": 0.3}`, mapperSnapshot())
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestDecodeMatchRejectsExplicitNone(t *testing.T) {
	_, err := decodeMatch(`{"code": "NONE", "confidence": 0}`, mapperSnapshot())
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}

	_, err = decodeMatch("NONE", mapperSnapshot())
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch for bare NONE reply, got %v", err)
	}
}

func TestDecodeMatchRejectsUnknownCode(t *testing.T) {
	_, err := decodeMatch(`{"code": "Z9", "confidence": 0.95}`, mapperSnapshot())
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestDecodeMatchMalformedReply(t *testing.T) {
	_, err := decodeMatch("the hazard is probably scaffolding", mapperSnapshot())
	if err == nil || errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected a decode error, got %v", err)
	}
}
