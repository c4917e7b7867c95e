// Package taxonomy provides the hazard-category lookup table used by the
// conversation engine. The taxonomy is owned by an external configuration
// collaborator; the engine only ever reads a point-in-time snapshot of it.
package taxonomy

import "strings"

// Entry is a single hazard category.
type Entry struct {
	Code     string `json:"code" yaml:"code"`
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
}

// Label returns the human-facing "code name" form used in prompts.
func (e Entry) Label() string {
	return e.Code + " " + e.Name
}

// Snapshot is a point-in-time copy of the taxonomy and related config lists.
type Snapshot struct {
	Entries   []Entry  `json:"entries"`
	Locations []string `json:"locations"`
}

// Lookup finds an entry by code, case-insensitively.
func (s Snapshot) Lookup(code string) (Entry, bool) {
	needle := strings.ToUpper(strings.TrimSpace(code))
	for _, e := range s.Entries {
		if strings.ToUpper(e.Code) == needle {
			return e, true
		}
	}
	return Entry{}, false
}
