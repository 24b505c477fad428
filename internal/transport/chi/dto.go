package chi

// ErrorCode is a machine-readable API error code.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeValidationFailed    ErrorCode = "validation_failed"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeInsufficientBalance ErrorCode = "insufficient_balance"
	CodeUnsupportedFormat   ErrorCode = "unsupported_format"
	CodeFileTooLarge        ErrorCode = "file_too_large"
	CodeExtractionFailed    ErrorCode = "extraction_failed"
	CodeEmbeddingError      ErrorCode = "embedding_provider_error"
	CodeGenerationError     ErrorCode = "generation_error"
	CodeStoreError          ErrorCode = "store_error"
	CodeTimeout             ErrorCode = "timeout"
	CodeNotReady            ErrorCode = "not_ready"
	CodeNotImplemented      ErrorCode = "not_implemented"
	CodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Stage   string            `json:"stage,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	UserID   string `json:"user_id" validate:"required,max=128"`
	Mode     string `json:"mode" validate:"omitempty,oneof=basic advanced pro search"`
	Kind     string `json:"kind" validate:"omitempty,oneof=text document image"`
	Query    string `json:"query" validate:"max=8192"`
	FileURL  string `json:"file_url" validate:"omitempty,url"`
	Language string `json:"language" validate:"omitempty,oneof=ru kg ky"`
}

// AskResponse is the body of a successful POST /v1/ask.
type AskResponse struct {
	Mode       string          `json:"mode"`
	Kind       string          `json:"kind"`
	Language   string          `json:"language"`
	Answer     string          `json:"answer,omitempty"`
	Found      bool            `json:"found"`
	Degraded   bool            `json:"degraded,omitempty"`
	Cost       int             `json:"cost"`
	Articles   []ArticleResult `json:"articles"`
	SubQueries []string        `json:"sub_queries"`
	Warnings   []string        `json:"warnings,omitempty"`
	Usage      UsageStats      `json:"usage"`
}

// ArticleResult is one article of the assembled context.
type ArticleResult struct {
	Source   string  `json:"source_doc"`
	Section  string  `json:"section,omitempty"`
	Chapter  string  `json:"chapter,omitempty"`
	Title    string  `json:"article_title"`
	Text     string  `json:"article_text"`
	Score    float64 `json:"score"`
	SubQuery string  `json:"sub_query"`
}

// UsageStats reports collaborator calls and tokens spent on a request.
type UsageStats struct {
	Searches         int   `json:"searches"`
	RawHits          int   `json:"raw_hits"`
	EmbeddedTexts    int   `json:"embedded_texts"`
	Generations      int   `json:"generations"`
	EmbeddingTokens  int64 `json:"embedding_tokens"`
	GenerationTokens int64 `json:"generation_tokens"`
}

// TopUpRequest is the body of POST /v1/balance/{user_id}/topup.
type TopUpRequest struct {
	Amount int `json:"amount" validate:"required,gt=0,lte=1000000"`
}

// BalanceResponse reports a user balance.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
