// Package extract turns a document or image URL into plain-text paragraphs.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lawrag/internal/domain"
	"github.com/kailas-cloud/lawrag/internal/domain/prompt"
	"github.com/kailas-cloud/lawrag/internal/domain/search/request"
)

// Size limits.
const (
	DefaultMaxDocumentBytes = 20 << 20
	DefaultMaxImageBytes    = 10 << 20
	defaultMaxTextChars     = 60000
	defaultDownloadTimeout  = 30 * time.Second
)

const splitHint = "Break it into items/paragraphs."

var imageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Config holds extractor limits.
type Config struct {
	MaxDocumentBytes int64
	MaxImageBytes    int64
	// MaxTextChars caps the PDF text layer sent to the model.
	MaxTextChars    int
	DownloadTimeout time.Duration
}

// Extractor downloads a file, detects its format from content and asks the model
// to split it into paragraphs. PDFs go through the local text layer, images through vision.
type Extractor struct {
	client *http.Client
	gen    domain.Generator
	cfg    Config
	logger *zap.Logger
}

// New creates an extractor. client may be nil.
func New(client *http.Client, gen domain.Generator, cfg Config, logger *zap.Logger) *Extractor {
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = defaultMaxTextChars
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = defaultDownloadTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.DownloadTimeout}
	}
	return &Extractor{client: client, gen: gen, cfg: cfg, logger: logger}
}

// Extract returns the paragraphs of the file at fileURL.
// The size limit follows the declared kind; the format is detected from content.
func (e *Extractor) Extract(ctx context.Context, fileURL string, kind request.Kind) ([]string, error) {
	limit := e.cfg.MaxDocumentBytes
	if kind == request.Image {
		limit = e.cfg.MaxImageBytes
	}

	data, err := e.download(ctx, fileURL, limit)
	if err != nil {
		return nil, err
	}

	mt := mimetype.Detect(data)
	e.logger.Debug("File downloaded",
		zap.String("kind", string(kind)),
		zap.String("mime", mt.String()),
		zap.Int("bytes", len(data)),
	)

	switch {
	case mt.Is("application/pdf"):
		return e.fromPDF(ctx, data)
	case isImage(mt):
		return e.fromImage(ctx, mt.String(), data)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, mt.String())
	}
}

func (e *Extractor) download(ctx context.Context, fileURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", domain.ErrExtraction, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("download file: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: download file: %w", domain.ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download file: status %d", domain.ErrExtraction, resp.StatusCode)
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", domain.ErrSizeExceeded, resp.ContentLength, limit)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("read file: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: read file: %w", domain.ErrExtraction, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", domain.ErrSizeExceeded, limit)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", domain.ErrExtraction)
	}
	return data, nil
}

func (e *Extractor) fromPDF(ctx context.Context, data []byte) ([]string, error) {
	text, err := pdfText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: pdf has no text layer", domain.ErrExtraction)
	}
	if r := []rune(text); len(r) > e.cfg.MaxTextChars {
		e.logger.Warn("PDF text truncated",
			zap.Int("chars", len(r)),
			zap.Int("limit", e.cfg.MaxTextChars),
		)
		text = string(r[:e.cfg.MaxTextChars])
	}

	return e.split(ctx, domain.Completion{
		Operation:    "extract",
		Instructions: prompt.DataExtraction,
		Input:        splitHint + "\n\n" + text,
		JSONOutput:   true,
	})
}

func (e *Extractor) fromImage(ctx context.Context, mime string, data []byte) ([]string, error) {
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	return e.split(ctx, domain.Completion{
		Operation:    "extract",
		Instructions: prompt.ImageExtraction,
		Input:        splitHint,
		JSONOutput:   true,
		Images:       []string{dataURL},
	})
}

func (e *Extractor) split(ctx context.Context, c domain.Completion) ([]string, error) {
	res, err := e.gen.Complete(ctx, c)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("split paragraphs: %w", err)
		}
		return nil, fmt.Errorf("%w: split paragraphs: %w", domain.ErrExtraction, err)
	}

	paragraphs, err := parsePoints(res.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}
	return paragraphs, nil
}

type pointsResponse struct {
	Points []struct {
		Paragraph string `json:"paragraph"`
	} `json:"points"`
}

// parsePoints reads {"points":[{"paragraph":"..."}]} and drops blank paragraphs.
func parsePoints(raw string) ([]string, error) {
	var resp pointsResponse
	if err := json.Unmarshal([]byte(prompt.TrimJSON(raw)), &resp); err != nil {
		return nil, fmt.Errorf("parse paragraphs: %w", err)
	}
	out := make([]string, 0, len(resp.Points))
	for _, p := range resp.Points {
		if s := strings.TrimSpace(p.Paragraph); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no paragraphs extracted")
	}
	return out, nil
}

// pdfText reads the plain text layer. ledongthuc/pdf panics on some malformed files.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func isImage(mt *mimetype.MIME) bool {
	for _, t := range imageTypes {
		if mt.Is(t) {
			return true
		}
	}
	return false
}
