package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lawrag/internal/domain"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
	"github.com/kailas-cloud/lawrag/internal/domain/search/mode"
	"github.com/kailas-cloud/lawrag/internal/domain/search/request"
	"github.com/kailas-cloud/lawrag/internal/metrics"
	healthuc "github.com/kailas-cloud/lawrag/internal/usecase/health"
	"github.com/kailas-cloud/lawrag/internal/usecase/orchestrator"
)

const maxBodyBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the lawrag HTTP API.
type Server struct {
	asker         Asker
	balances      Balances
	health        HealthChecker
	apiKeys       []string
	logger        *zap.Logger
	validate      *validator.Validate
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. balances may be nil when accounting is disabled.
func NewServer(asker Asker, balances Balances, health HealthChecker, apiKeys []string, logger *zap.Logger) *Server {
	s := &Server{
		asker:    asker,
		balances: balances,
		health:   health,
		apiKeys:  apiKeys,
		logger:   logger,
		validate: newValidator(),
	}
	// Timeout first: a timed out request also carries the error of the stage it interrupted.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, CodeTimeout),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInsufficientBalance, http.StatusPaymentRequired, CodeInsufficientBalance),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, CodeUnsupportedFormat),
		sentinelHandler(domain.ErrSizeExceeded, http.StatusRequestEntityTooLarge, CodeFileTooLarge),
		sentinelHandler(domain.ErrExtraction, http.StatusUnprocessableEntity, CodeExtractionFailed),
		sentinelHandler(domain.ErrEmbedding, http.StatusBadGateway, CodeEmbeddingError),
		sentinelHandler(domain.ErrGeneration, http.StatusBadGateway, CodeGenerationError),
		sentinelHandler(domain.ErrStore, http.StatusServiceUnavailable, CodeStoreError),
		sentinelHandler(domain.ErrNotReady, http.StatusServiceUnavailable, CodeNotReady),
	}
	return s
}

// Routes builds the router with the middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.apiKeys))
	r.Use(metrics.Middleware())

	r.Post("/v1/ask", s.Ask)
	r.Get("/v1/balance/{user_id}", s.GetBalance)
	r.Post("/v1/balance/{user_id}/topup", s.TopUp)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	return r
}

// Ask handles POST /v1/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var body AskRequest
	if !s.decode(w, r, &body) {
		return
	}

	req, err := askFromDTO(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	resp, err := s.asker.Ask(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setUsageHeaders(w, &resp.Stats)
	writeJSON(w, http.StatusOK, askToDTO(resp))
}

// GetBalance handles GET /v1/balance/{user_id}.
func (s *Server) GetBalance(w http.ResponseWriter, r *http.Request) {
	if s.balances == nil {
		writeError(w, http.StatusNotImplemented, CodeNotImplemented, "accounting is disabled")
		return
	}
	userID := chi.URLParam(r, "user_id")

	balance, err := s.balances.Balance(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{UserID: userID, Balance: balance})
}

// TopUp handles POST /v1/balance/{user_id}/topup.
func (s *Server) TopUp(w http.ResponseWriter, r *http.Request) {
	if s.balances == nil {
		writeError(w, http.StatusNotImplemented, CodeNotImplemented, "accounting is disabled")
		return
	}
	var body TopUpRequest
	if !s.decode(w, r, &body) {
		return
	}
	userID := chi.URLParam(r, "user_id")

	balance, err := s.balances.TopUp(r.Context(), userID, body.Amount)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	metrics.CreditsTotal.WithLabelValues("topup").Add(float64(body.Amount))
	writeJSON(w, http.StatusOK, BalanceResponse{UserID: userID, Balance: balance})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	// Degraded still serves retrieval, only an unhealthy store takes the instance out.
	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decode reads a JSON body and validates it. Writes the error response and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Code:    CodeValidationFailed,
				Message: "request validation failed",
				Fields:  validationFields(verrs),
			})
			return false
		}
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return false
	}
	return true
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationFields(errs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		switch e.Tag() {
		case "required":
			fields[e.Field()] = "is required"
		case "oneof":
			fields[e.Field()] = "must be one of: " + e.Param()
		case "max", "lte":
			fields[e.Field()] = "must be at most " + e.Param()
		case "gt":
			fields[e.Field()] = "must be greater than " + e.Param()
		case "url":
			fields[e.Field()] = "must be a valid URL"
		default:
			fields[e.Field()] = "failed on '" + e.Tag() + "'"
		}
	}
	return fields
}

func askFromDTO(body AskRequest) (request.Request, error) {
	m, err := mode.Parse(body.Mode)
	if err != nil {
		return request.Request{}, err
	}
	lang, err := language.Parse(body.Language)
	if err != nil {
		return request.Request{}, err
	}
	return request.New(body.UserID, request.Kind(body.Kind), body.Query, body.FileURL, m, lang)
}

func askToDTO(resp *orchestrator.Response) AskResponse {
	hits := resp.Context.Hits()
	articles := make([]ArticleResult, len(hits))
	for i := range hits {
		a := &hits[i].Article
		articles[i] = ArticleResult{
			Source:   a.Source(),
			Section:  a.Section(),
			Chapter:  a.Chapter(),
			Title:    a.Title(),
			Text:     a.Text(),
			Score:    hits[i].Score,
			SubQuery: hits[i].SubQuery,
		}
	}

	subQueries := resp.SubQueries
	if subQueries == nil {
		subQueries = []string{}
	}

	return AskResponse{
		Mode:       resp.Mode.String(),
		Kind:       string(resp.Kind),
		Language:   resp.Language.String(),
		Answer:     resp.Answer,
		Found:      resp.Found,
		Degraded:   resp.Degraded,
		Cost:       resp.Cost,
		Articles:   articles,
		SubQueries: subQueries,
		Warnings:   resp.Warnings,
		Usage: UsageStats{
			Searches:         resp.Stats.Searches,
			RawHits:          resp.Stats.RawHits,
			EmbeddedTexts:    resp.Stats.EmbeddedTexts,
			Generations:      resp.Stats.Generations,
			EmbeddingTokens:  resp.Stats.EmbeddingTokens,
			GenerationTokens: resp.Stats.GenerationTokens,
		},
	}
}

func setUsageHeaders(w http.ResponseWriter, st *orchestrator.Stats) {
	if st.EmbeddingTokens > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.FormatInt(st.EmbeddingTokens, 10))
	}
	if st.GenerationTokens > 0 {
		w.Header().Set("X-Generation-Tokens", strconv.FormatInt(st.GenerationTokens, 10))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns the message of the most specific known sentinel, never the raw chain.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrTimeout,
		domain.ErrInvalidRequest,
		domain.ErrInsufficientBalance,
		domain.ErrUnsupportedFormat,
		domain.ErrSizeExceeded,
		domain.ErrExtraction,
		domain.ErrEmbedding,
		domain.ErrUngroundedCitation,
		domain.ErrGeneration,
		domain.ErrStore,
		domain.ErrNotReady,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeJSON(w, status, ErrorResponse{
			Code:    code,
			Message: msg,
			Stage:   domain.FailedStage(err),
		})
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
