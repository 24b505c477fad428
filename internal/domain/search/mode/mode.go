package mode

import (
	"fmt"
	"strings"
)

// Mode is the retrieval strategy of a request.
type Mode string

// Mode constants.
const (
	// Basic searches once per input and composes an answer.
	Basic Mode = "basic"
	// Advanced expands every input into several sub-queries before searching.
	Advanced Mode = "advanced"
	// SearchOnly returns ranked articles without calling the answer generator.
	SearchOnly Mode = "search"
)

// All returns every supported mode.
func All() []Mode { return []Mode{Basic, Advanced, SearchOnly} }

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Basic || m == Advanced || m == SearchOnly
}

func (m Mode) String() string { return string(m) }

// Expands reports whether the mode runs the query expander.
func (m Mode) Expands() bool { return m == Advanced }

// Generates reports whether the mode composes an answer.
func (m Mode) Generates() bool { return m != SearchOnly }

// Parse normalizes a mode name. Empty input defaults to Basic, "pro" is an alias of Advanced.
func Parse(s string) (Mode, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "":
		return Basic, nil
	case "pro":
		return Advanced, nil
	}
	m := Mode(v)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid mode %q", s)
	}
	return m, nil
}
