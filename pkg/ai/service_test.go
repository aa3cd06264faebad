package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	requestdomain "fupm-backend/internal/request/domain"

	"go.uber.org/zap"
)

type stubGenerator struct {
	out     string
	err     error
	calls   int
	prompts []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string, _ int) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	return s.out, s.err
}

func TestExtractContextSwallowsMalformedOutput(t *testing.T) {
	svc := NewFollowupService(&stubGenerator{out: "not json at all"}, zap.NewNop())

	got, err := svc.ExtractContext(context.Background(), []string{"body"})
	if err != nil {
		t.Fatalf("expected malformed output to be swallowed, got %v", err)
	}
	if got.RecipientName != nil || got.Amount != nil || got.Context != "" {
		t.Fatalf("expected empty context, got %+v", got)
	}
}

func TestExtractContextPropagatesTransportError(t *testing.T) {
	svc := NewFollowupService(&stubGenerator{err: errors.New("boom")}, zap.NewNop())
	if _, err := svc.ExtractContext(context.Background(), []string{"body"}); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestGenerateFollowupTrimsAndRejectsEmpty(t *testing.T) {
	svc := NewFollowupService(&stubGenerator{out: "  Checking in on the invoice.\n"}, zap.NewNop())
	body, err := svc.GenerateFollowup(context.Background(), requestdomain.FollowupParams{FollowupNumber: 1})
	if err != nil || body != "Checking in on the invoice." {
		t.Fatalf("unexpected body=%q err=%v", body, err)
	}

	svc = NewFollowupService(&stubGenerator{out: "   "}, zap.NewNop())
	if _, err := svc.GenerateFollowup(context.Background(), requestdomain.FollowupParams{FollowupNumber: 1}); !errors.Is(err, ErrEmptyGeneration) {
		t.Fatalf("expected ErrEmptyGeneration, got %v", err)
	}
}

func TestClassifyPaid(t *testing.T) {
	svc := NewFollowupService(&stubGenerator{out: " True "}, zap.NewNop())
	paid, err := svc.ClassifyPaid(context.Background(), []string{"Payment sent, receipt attached"})
	if err != nil || !paid {
		t.Fatalf("expected paid, got paid=%v err=%v", paid, err)
	}
}

func TestFallbackUsesOllamaWhenGeminiFails(t *testing.T) {
	g := &stubGenerator{err: errors.New("Gemini API error (429): quota")}
	o := &stubGenerator{out: "from ollama"}
	f := NewFallbackService(g, o, zap.NewNop())

	out, err := f.Generate(context.Background(), "p", 10)
	if err != nil || out != "from ollama" {
		t.Fatalf("unexpected out=%q err=%v", out, err)
	}
	if g.calls != 1 || o.calls != 1 {
		t.Fatalf("expected one call each, gemini=%d ollama=%d", g.calls, o.calls)
	}
}

func TestFallbackPrefersGemini(t *testing.T) {
	g := &stubGenerator{out: "from gemini"}
	o := &stubGenerator{out: "from ollama"}
	f := NewFallbackService(g, o, zap.NewNop())

	out, _ := f.Generate(context.Background(), "p", 10)
	if out != "from gemini" || o.calls != 0 {
		t.Fatalf("expected gemini only, out=%q ollama calls=%d", out, o.calls)
	}
}

func TestOllamaGenerate(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		_, _ = w.Write([]byte(`{"response":"hello there","done":true}`))
	}))
	defer srv.Close()

	o := NewOllamaService(srv.URL, "llama3")
	out, err := o.Generate(context.Background(), "prompt text", 120)
	if err != nil || out != "hello there" {
		t.Fatalf("unexpected out=%q err=%v", out, err)
	}
	if !strings.Contains(body, `"num_predict":120`) || !strings.Contains(body, `"stream":false`) {
		t.Fatalf("unexpected request body %s", body)
	}
}

func TestErrorClassification(t *testing.T) {
	if !isQuotaError(errors.New("RESOURCE_EXHAUSTED")) {
		t.Fatalf("expected quota error")
	}
	if !isConnectionError(errors.New("dial tcp 127.0.0.1:11434: connection refused")) {
		t.Fatalf("expected connection error")
	}
	if isConnectionError(nil) || isQuotaError(nil) {
		t.Fatalf("nil is not an error")
	}
}
