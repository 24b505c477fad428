package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lawrag/internal/domain"
	"github.com/kailas-cloud/lawrag/internal/domain/article"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
	"github.com/kailas-cloud/lawrag/internal/domain/search/hit"
	"github.com/kailas-cloud/lawrag/internal/domain/search/result"
)

type mockGenerator struct {
	text  string
	err   error
	calls []domain.Completion
}

func (m *mockGenerator) Complete(_ context.Context, c domain.Completion) (domain.CompletionResult, error) {
	m.calls = append(m.calls, c)
	return domain.CompletionResult{Text: m.text}, m.err
}

func testContext() result.Context {
	return result.New([]hit.Hit{
		{Article: article.Reconstruct("Трудовой кодекс", "", "Глава 13", "Статья 81. Расторжение", "текст 81", language.Russian, nil), Score: 0.9},
		{Article: article.Reconstruct("Трудовой кодекс", "", "", "Статья 80", "текст 80", language.Russian, nil), Score: 0.8},
	})
}

func TestGenerate_RendersContextInOrder(t *testing.T) {
	gen := &mockGenerator{text: "  ответ по статье 81  "}
	s := New(gen, Config{}, zap.NewNop())

	got, err := s.Generate(context.Background(), "Как уволиться?", testContext(), language.Russian)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ответ по статье 81" {
		t.Errorf("unexpected answer %q", got)
	}
	if len(gen.calls) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(gen.calls))
	}
	in := gen.calls[0].Input
	if strings.Index(in, "текст 81") > strings.Index(in, "текст 80") {
		t.Error("articles rendered out of context order")
	}
	if !strings.Contains(in, "Вопрос: Как уволиться?") {
		t.Error("question missing from prompt")
	}
	if gen.calls[0].Operation != "answer" {
		t.Errorf("unexpected operation %q", gen.calls[0].Operation)
	}
}

func TestGenerate_ModelErrorNotRetried(t *testing.T) {
	gen := &mockGenerator{err: errors.New("503")}
	s := New(gen, Config{}, zap.NewNop())

	_, err := s.Generate(context.Background(), "q", testContext(), language.Russian)
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if len(gen.calls) != 1 {
		t.Errorf("expected exactly one attempt, got %d", len(gen.calls))
	}
}

func TestGenerate_EmptyAnswer(t *testing.T) {
	s := New(&mockGenerator{text: " \n"}, Config{}, zap.NewNop())

	if _, err := s.Generate(context.Background(), "q", testContext(), language.Russian); !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerate_TimeoutKept(t *testing.T) {
	s := New(&mockGenerator{err: context.DeadlineExceeded}, Config{}, zap.NewNop())

	_, err := s.Generate(context.Background(), "q", testContext(), language.Russian)
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected bare deadline, got %v", err)
	}
}

func TestGenerate_CitationValidation(t *testing.T) {
	cases := []struct {
		name    string
		answer  string
		wantErr bool
	}{
		{"grounded", "Согласно Статье 81 и статья 80 ...", false},
		{"english grounded", "See Article 81.", false},
		{"kyrgyz grounded", "81-берене боюнча", false},
		{"ungrounded", "Согласно статье 77 ...", true},
		{"kyrgyz ungrounded", "12-берене", true},
		{"no citations", "Обратитесь к работодателю.", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(&mockGenerator{text: tc.answer}, Config{ValidateCitations: true}, zap.NewNop())

			_, err := s.Generate(context.Background(), "q", testContext(), language.Russian)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrUngroundedCitation) || !errors.Is(err, domain.ErrGeneration) {
					t.Fatalf("expected ErrUngroundedCitation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGenerate_CitationValidationOff(t *testing.T) {
	s := New(&mockGenerator{text: "Согласно статье 77"}, Config{}, zap.NewNop())

	if _, err := s.Generate(context.Background(), "q", testContext(), language.Russian); err != nil {
		t.Fatalf("validation is off, got %v", err)
	}
}
