package domain

import "context"

// Generator is the generative model contract shared by the expander, the answer generator
// and the extractor.
type Generator interface {
	Complete(ctx context.Context, req Completion) (CompletionResult, error)
}

// Completion is a single-turn model request.
type Completion struct {
	// Operation labels the call for metrics and logs (expand, answer, extract).
	Operation    string
	Instructions string
	Input        string
	// JSONOutput asks the model for a JSON object response.
	JSONOutput bool
	// Images are data or http(s) URLs attached to the user turn.
	Images []string
}

// CompletionResult carries the model output and token usage.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
