package language

import (
	"fmt"
	"strings"
)

// Language identifies a corpus partition. A single request never spans two partitions.
type Language string

// Supported corpus languages.
const (
	Russian Language = "ru"
	Kyrgyz  Language = "kg"
)

// All returns every supported language in a stable order.
func All() []Language { return []Language{Russian, Kyrgyz} }

// IsValid checks if the language is one of the supported values.
func (l Language) IsValid() bool {
	return l == Russian || l == Kyrgyz
}

// Parse normalizes a language code. Empty input defaults to Russian.
// "ky" is accepted as the ISO 639-1 alias of Kyrgyz.
func Parse(s string) (Language, error) {
	code := strings.ToLower(strings.TrimSpace(s))
	switch code {
	case "":
		return Russian, nil
	case "ky":
		return Kyrgyz, nil
	}
	l := Language(code)
	if !l.IsValid() {
		return "", fmt.Errorf("unsupported language %q", s)
	}
	return l, nil
}

func (l Language) String() string { return string(l) }
