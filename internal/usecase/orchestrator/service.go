package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lawrag/internal/domain"
	"github.com/kailas-cloud/lawrag/internal/domain/cost"
	"github.com/kailas-cloud/lawrag/internal/domain/prompt"
	"github.com/kailas-cloud/lawrag/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/lawrag/internal/logger"
	"github.com/kailas-cloud/lawrag/internal/metrics"
	"github.com/kailas-cloud/lawrag/internal/usecase/assemble"
)

// Defaults.
const (
	DefaultTopK              = 3
	DefaultExpansions        = 3
	DefaultMaxArticles       = 10
	DefaultMaxParagraphs     = 20
	DefaultMaxRawHits        = 300
	DefaultSearchConcurrency = 8
	DefaultExpandConcurrency = 4
	DefaultRequestTimeout    = 90 * time.Second

	refundTimeout = 5 * time.Second
)

// Config bounds the work done per request.
type Config struct {
	TopK       int
	Expansions int
	// MaxArticles caps the assembled context. Negative disables the cap.
	MaxArticles   int
	MaxParagraphs int
	// MaxRawHits bounds sub-queries × TopK. Negative disables the bound.
	MaxRawHits        int
	SearchConcurrency int
	ExpandConcurrency int
	// RequestTimeout bounds the whole pipeline. Negative disables it.
	RequestTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.Expansions <= 0 {
		c.Expansions = DefaultExpansions
	}
	if c.MaxArticles == 0 {
		c.MaxArticles = DefaultMaxArticles
	}
	if c.MaxParagraphs <= 0 {
		c.MaxParagraphs = DefaultMaxParagraphs
	}
	if c.MaxRawHits == 0 {
		c.MaxRawHits = DefaultMaxRawHits
	}
	if c.SearchConcurrency <= 0 {
		c.SearchConcurrency = DefaultSearchConcurrency
	}
	if c.ExpandConcurrency <= 0 {
		c.ExpandConcurrency = DefaultExpandConcurrency
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// maxSubQueries is the sub-query budget derived from MaxRawHits. Zero means unbounded.
func (c *Config) maxSubQueries() int {
	if c.MaxRawHits < 0 {
		return 0
	}
	return max(c.MaxRawHits/c.TopK, 1)
}

// Deps are the collaborators of the orchestrator. Extractor, Expander, Answerer and
// Accounting may be nil. Without an Extractor file requests fail with domain.ErrNotReady,
// and so do generating modes without an Answerer. Without an Expander advanced mode
// searches verbatim and the response is marked degraded. Without Accounting requests are free.
type Deps struct {
	Extractor  Extractor
	Expander   Expander
	Embedder   domain.Embedder
	Store      Store
	Answerer   Answerer
	Accounting Accounting
	Costs      cost.Matrix
}

// Service runs retrieval requests through the mode-specific pipeline.
// Collaborators are shared; per-request state lives in run.
type Service struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New creates an orchestrator.
func New(deps Deps, cfg Config, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	return &Service{deps: deps, cfg: cfg, logger: logger}
}

// Ask prices the request, charges the user and runs the pipeline.
// Failures come back as *domain.StageError naming the state that failed; the charge is
// refunded on failure and when nothing was found.
func (s *Service) Ask(ctx context.Context, req request.Request) (*Response, error) {
	log := logpkg.FromContext(ctx, s.logger).With(
		zap.String("user_id", req.UserID()),
		zap.String("mode", req.Mode().String()),
		zap.String("kind", string(req.Kind())),
		zap.String("language", req.Language().String()),
	)

	price, err := s.deps.Costs.Of(req.Mode(), req.Kind())
	if err != nil {
		return nil, s.reject(req, log, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
	}
	if err := s.charge(ctx, req.UserID(), price); err != nil {
		return nil, s.reject(req, log, err)
	}

	runCtx := ctx
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	runCtx, usage := domain.NewContextWithUsage(runCtx)

	r := newRun(s, req, log)
	err = r.execute(runCtx)

	r.resp.Stats.EmbeddingTokens = int64(usage.EmbeddingTokens())
	r.resp.Stats.GenerationTokens = int64(usage.GenerationTokens())

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s: %w", domain.ErrTimeout, s.cfg.RequestTimeout, err)
		}
		failed := r.state
		r.enter(StateFailed)
		s.refund(ctx, req.UserID(), price, log)

		metrics.AskRequestsTotal.WithLabelValues(req.Mode().String(), string(req.Kind()), status(err)).Inc()
		log.Warn("Request failed",
			zap.String("state", failed.String()),
			zap.Duration("duration", r.elapsed()),
			zap.Error(err),
		)
		return nil, domain.NewStageError(failed.String(), err)
	}

	r.resp.Cost = price
	outcome := "ok"
	if !r.resp.Found {
		outcome = "not_found"
		if price > 0 && s.refund(ctx, req.UserID(), price, log) {
			r.resp.Cost = 0
			r.warn("nothing found, charge refunded")
		}
	}

	metrics.AskRequestsTotal.WithLabelValues(req.Mode().String(), string(req.Kind()), outcome).Inc()
	log.Info("Request completed",
		zap.Bool("found", r.resp.Found),
		zap.Bool("degraded", r.resp.Degraded),
		zap.Int("sub_queries", len(r.resp.SubQueries)),
		zap.Int("articles", r.resp.Context.Len()),
		zap.Int("cost", r.resp.Cost),
		zap.Duration("duration", r.elapsed()),
	)
	return r.resp, nil
}

// reject reports a request that failed before any work was started.
func (s *Service) reject(req request.Request, log *zap.Logger, err error) error {
	metrics.AskRequestsTotal.WithLabelValues(req.Mode().String(), string(req.Kind()), status(err)).Inc()
	log.Info("Request rejected", zap.Error(err))
	return domain.NewStageError(StateIdle.String(), err)
}

func (s *Service) charge(ctx context.Context, userID string, price int) error {
	if s.deps.Accounting == nil || price <= 0 {
		return nil
	}

	ok, err := s.deps.Accounting.HasBalance(ctx, userID, price)
	if err != nil {
		return classify(err, domain.ErrStore)
	}
	if !ok {
		return fmt.Errorf("%w: cost %d", domain.ErrInsufficientBalance, price)
	}
	if err := s.deps.Accounting.Deduct(ctx, userID, price); err != nil {
		return classify(err, domain.ErrStore)
	}

	metrics.CreditsTotal.WithLabelValues("charge").Add(float64(price))
	return nil
}

// refund returns the charge. Runs detached from the request context so a timed out
// request still gets its credits back. Reports whether the refund went through.
func (s *Service) refund(ctx context.Context, userID string, price int, log *zap.Logger) bool {
	if price <= 0 || s.deps.Accounting == nil {
		return false
	}
	rf, ok := s.deps.Accounting.(Refunder)
	if !ok {
		return false
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refundTimeout)
	defer cancel()

	if err := rf.Refund(ctx, userID, price); err != nil {
		log.Error("Refund failed", zap.Int("cost", price), zap.Error(err))
		return false
	}
	metrics.CreditsTotal.WithLabelValues("refund").Add(float64(price))
	return true
}

// run is the per-request pipeline state.
type run struct {
	svc        *Service
	req        request.Request
	resp       *Response
	log        *zap.Logger
	state      State
	started    time.Time
	stateSince time.Time
}

func newRun(s *Service, req request.Request, log *zap.Logger) *run {
	now := time.Now()
	resp := &Response{
		Mode:     req.Mode(),
		Kind:     req.Kind(),
		Language: req.Language(),
	}
	return &run{
		svc:        s,
		req:        req,
		resp:       resp,
		log:        log,
		state:      StateIdle,
		started:    now,
		stateSince: now,
	}
}

func (r *run) enter(next State) {
	now := time.Now()
	metrics.AskStageDuration.WithLabelValues(r.state.String()).Observe(now.Sub(r.stateSince).Seconds())
	r.log.Debug("State transition",
		zap.String("from", r.state.String()),
		zap.String("to", next.String()),
		zap.Duration("took", now.Sub(r.stateSince)),
	)
	r.state = next
	r.stateSince = now
}

// advance moves to next unless the request context is already done. A collaborator that
// ignores cancellation and returns late still fails the stage it overran.
func (r *run) advance(ctx context.Context, next State) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", r.state, err)
	}
	r.enter(next)
	return nil
}

func (r *run) elapsed() time.Duration { return time.Since(r.started) }

func (r *run) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.resp.Warnings = append(r.resp.Warnings, msg)
	r.log.Warn(msg)
}

func (r *run) execute(ctx context.Context) error {
	cfg := &r.svc.cfg
	lang := r.req.Language()
	question := r.req.Query()
	seeds := []string{question}

	if r.req.Kind().IsFile() {
		if err := r.advance(ctx, StateExtracting); err != nil {
			return err
		}
		paragraphs, err := r.extract(ctx)
		if err != nil {
			return err
		}
		seeds = paragraphs

		if strings.TrimSpace(question) == "" {
			question = prompt.DefaultDocumentQuestion(lang)
		}
		question = prompt.DocumentQuestion(question, paragraphs)
	}

	subQueries := seeds
	if r.req.Mode().Expands() {
		if err := r.advance(ctx, StateExpanding); err != nil {
			return err
		}
		expanded, err := r.expand(ctx, seeds)
		if err != nil {
			return err
		}
		subQueries = expanded
	}
	if limit := cfg.maxSubQueries(); limit > 0 && len(subQueries) > limit {
		r.warn("%d of %d sub-queries dropped: raw hit limit %d", len(subQueries)-limit, len(subQueries), cfg.MaxRawHits)
		subQueries = subQueries[:limit]
	}
	r.resp.SubQueries = subQueries

	if err := r.advance(ctx, StateEmbedding); err != nil {
		return err
	}
	vectors, err := r.embed(ctx, subQueries)
	if err != nil {
		return err
	}

	if err := r.advance(ctx, StateSearching); err != nil {
		return err
	}
	batches, err := r.search(ctx, subQueries, vectors)
	if err != nil {
		return err
	}

	if err := r.advance(ctx, StateAssembling); err != nil {
		return err
	}
	assembled := assemble.Assemble(batches, cfg.MaxArticles)
	r.resp.Context = assembled
	r.resp.Found = !assembled.IsEmpty()

	if r.req.Mode().Generates() && r.resp.Found {
		if err := r.advance(ctx, StateGenerating); err != nil {
			return err
		}
		if r.svc.deps.Answerer == nil {
			return fmt.Errorf("%w: answer generator not configured", domain.ErrNotReady)
		}
		r.resp.Stats.Generations++
		answer, err := r.svc.deps.Answerer.Generate(ctx, question, assembled, lang)
		if err != nil {
			return classify(err, domain.ErrGeneration)
		}
		r.resp.Answer = answer
	}

	if err := r.advance(ctx, StateDone); err != nil {
		return err
	}
	return nil
}

func (r *run) extract(ctx context.Context) ([]string, error) {
	if r.svc.deps.Extractor == nil {
		return nil, fmt.Errorf("%w: extractor not configured", domain.ErrNotReady)
	}

	r.resp.Stats.Extractions++
	paragraphs, err := r.svc.deps.Extractor.Extract(ctx, r.req.FileURL(), r.req.Kind())
	if err != nil {
		return nil, classify(err, domain.ErrExtraction)
	}
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("%w: no paragraphs extracted", domain.ErrExtraction)
	}

	if limit := r.svc.cfg.MaxParagraphs; len(paragraphs) > limit {
		r.warn("document truncated to %d of %d paragraphs", limit, len(paragraphs))
		paragraphs = paragraphs[:limit]
	}
	return paragraphs, nil
}

func (r *run) embed(ctx context.Context, subQueries []string) ([][]float32, error) {
	if w, ok := r.svc.deps.Embedder.(domain.Warmer); ok {
		if err := w.EnsureReady(ctx); err != nil {
			return nil, classify(err, domain.ErrNotReady)
		}
	}

	r.resp.Stats.EmbedCalls++
	r.resp.Stats.EmbeddedTexts += len(subQueries)
	res, err := domain.EmbedAll(ctx, r.svc.deps.Embedder, subQueries)
	if err != nil {
		return nil, classify(err, domain.ErrEmbedding)
	}
	if len(res.Embeddings) != len(subQueries) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d sub-queries",
			domain.ErrEmbedding, len(res.Embeddings), len(subQueries))
	}
	return res.Embeddings, nil
}

// classify keeps errors that already carry a taxonomy sentinel or a context error,
// and tags the rest with fallback.
func classify(err, fallback error) error {
	for _, known := range []error{
		domain.ErrInvalidRequest, domain.ErrNotReady, domain.ErrExtraction,
		domain.ErrGeneration, domain.ErrEmbedding, domain.ErrStore,
		domain.ErrInsufficientBalance, domain.ErrTimeout,
		context.DeadlineExceeded, context.Canceled,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", fallback, err)
}

// status is the metrics label of a failure.
func status(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, domain.ErrExtraction):
		return "extraction_error"
	case errors.Is(err, domain.ErrEmbedding):
		return "embedding_error"
	case errors.Is(err, domain.ErrStore):
		return "store_error"
	case errors.Is(err, domain.ErrGeneration):
		return "generation_error"
	case errors.Is(err, domain.ErrNotReady):
		return "not_ready"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
