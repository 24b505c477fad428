package request

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kailas-cloud/lawrag/internal/domain/language"
	"github.com/kailas-cloud/lawrag/internal/domain/search/mode"
)

// Request limits.
const (
	// MaxQueryLength is the maximum allowed question length in bytes.
	MaxQueryLength = 8192
	MaxUserIDLen   = 128
)

// Kind is the input modality of a request.
type Kind string

// Input kinds.
const (
	Text     Kind = "text"
	Document Kind = "document"
	Image    Kind = "image"
)

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	return k == Text || k == Document || k == Image
}

// IsFile reports whether the input has to go through the extractor.
func (k Kind) IsFile() bool { return k == Document || k == Image }

// Request is a validated retrieval request.
type Request struct {
	userID  string
	kind    Kind
	query   string
	fileURL string
	mode    mode.Mode
	lang    language.Language
}

// New validates and normalizes request parameters.
// Defaults: kind=text (document when a file URL is given), mode=basic, language=ru.
// Text requests need a question; file requests need an absolute http(s) URL and may carry
// an optional question.
func New(userID string, kind Kind, query, fileURL string, m mode.Mode, lang language.Language) (Request, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Request{}, fmt.Errorf("user_id is required")
	}
	if len(userID) > MaxUserIDLen {
		return Request{}, fmt.Errorf("user_id too long (max %d chars)", MaxUserIDLen)
	}
	if kind == "" {
		kind = Text
		if fileURL != "" {
			kind = Document
		}
	}
	if !kind.IsValid() {
		return Request{}, fmt.Errorf("invalid input kind: %q", kind)
	}
	if m == "" {
		m = mode.Basic
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("invalid mode: %q", m)
	}
	if lang == "" {
		lang = language.Russian
	}
	if !lang.IsValid() {
		return Request{}, fmt.Errorf("unsupported language: %q", lang)
	}
	query = strings.TrimSpace(query)
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}

	switch {
	case kind == Text && query == "":
		return Request{}, fmt.Errorf("query is required")
	case kind == Text && fileURL != "":
		return Request{}, fmt.Errorf("file_url is not allowed for text requests")
	case kind.IsFile():
		if err := validateFileURL(fileURL); err != nil {
			return Request{}, err
		}
	}

	return Request{
		userID:  userID,
		kind:    kind,
		query:   query,
		fileURL: fileURL,
		mode:    m,
		lang:    lang,
	}, nil
}

func validateFileURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("file_url is required for file requests")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid file_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("file_url must be an absolute http(s) URL")
	}
	return nil
}

// UserID returns the accounting subject.
func (r *Request) UserID() string { return r.userID }

// Kind returns the input modality.
func (r *Request) Kind() Kind { return r.kind }

// Query returns the user question. May be empty for file requests.
func (r *Request) Query() string { return r.query }

// FileURL returns the document or image location.
func (r *Request) FileURL() string { return r.fileURL }

// Mode returns the retrieval strategy.
func (r *Request) Mode() mode.Mode { return r.mode }

// Language returns the corpus partition to search.
func (r *Request) Language() language.Language { return r.lang }
