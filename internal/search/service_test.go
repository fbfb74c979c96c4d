package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"contractops/api/internal/store"
)

type fakeFallback struct {
	contracts []store.Contract
	err       error
}

func (f *fakeFallback) SearchContracts(ctx context.Context, query string, limit int) ([]store.Contract, error) {
	return f.contracts, f.err
}

func TestSearchFallsBackToStore(t *testing.T) {
	svc := NewService(nil, &fakeFallback{
		contracts: []store.Contract{{ID: 7, ProjectID: 5, Title: "NDA", Content: "confidential terms", Status: "draft"}},
	})

	resp := svc.Search(context.Background(), "terms", 10)
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Results[0].ID != 7 || resp.Results[0].Snippet != "confidential terms" {
		t.Fatalf("result = %+v", resp.Results[0])
	}
}

func TestSearchFallbackErrorYieldsEmptyResponse(t *testing.T) {
	svc := NewService(nil, &fakeFallback{err: errors.New("db down")})

	resp := svc.Search(context.Background(), "terms", 10)
	if resp.Results == nil || len(resp.Results) != 0 || resp.Total != 0 {
		t.Fatalf("expected empty non-nil results, got %+v", resp)
	}
}

func TestSnippetShortContentUntouched(t *testing.T) {
	if got := snippet("  a short clause  "); got != "a short clause" {
		t.Fatalf("snippet = %q", got)
	}
}

func TestSnippetTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ü", 300)
	got := snippet(long)
	if !utf8.ValidString(got) {
		t.Fatalf("snippet is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "…")); n != 200 {
		t.Fatalf("kept %d runes, want 200", n)
	}
	for _, r := range got {
		if r != 'ü' && r != '…' {
			t.Fatalf("unexpected rune %q in snippet", r)
		}
	}
}
