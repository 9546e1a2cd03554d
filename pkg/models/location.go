package models

import "strings"

// LocationRef is one row of the location reference file. Any field may be
// empty to represent a higher-level entry (a state-only or county-only row).
type LocationRef struct {
	State        string `json:"state,omitempty"`
	County       string `json:"county,omitempty"`
	City         string `json:"city,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`

	CorruptRecord string `json:"-"`
	SourceFile    string `json:"-"`
}

// Level returns how deep in the hierarchy this entry reaches.
func (l LocationRef) Level() string {
	switch {
	case l.Neighborhood != "":
		return "neighborhood"
	case l.City != "":
		return "city"
	case l.County != "":
		return "county"
	case l.State != "":
		return "state"
	default:
		return "none"
	}
}

// Hierarchy renders the entry as "state > county > city > neighborhood",
// omitting empty levels.
func (l LocationRef) Hierarchy() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{l.State, l.County, l.City, l.Neighborhood} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " > ")
}
