package gitrepo

import (
	"strings"
	"testing"
)

func TestEnsureContractRepoCreatesBaseline(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.EnsureContractRepo(7, "initial draft", "Ada Lovelace"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	history, err := svc.History(7, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 baseline commit, got %d", len(history))
	}
	if history[0].Author != "Ada Lovelace" {
		t.Fatalf("author = %q", history[0].Author)
	}
	if !strings.Contains(history[0].Message, "baseline") {
		t.Fatalf("message = %q", history[0].Message)
	}
}

func TestEnsureContractRepoIsIdempotent(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.EnsureContractRepo(7, "initial", "system"); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if err := svc.EnsureContractRepo(7, "different content", "system"); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	history, err := svc.History(7, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected existing repo untouched, got %d commits", len(history))
	}
}

func TestCommitContentAndHistory(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.EnsureContractRepo(7, "v1", "system"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := svc.CommitContent(7, "v2", "collaboration", "Realtime content update"); err != nil {
		t.Fatalf("commit v2: %v", err)
	}
	info, err := svc.CommitContent(7, "v3", "collaboration", "Realtime content update")
	if err != nil {
		t.Fatalf("commit v3: %v", err)
	}
	if info.Hash == "" {
		t.Fatal("expected commit hash")
	}

	history, err := svc.History(7, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 commits, got %d", len(history))
	}
	// Newest first.
	if history[0].Hash != info.Hash {
		t.Fatalf("history[0] = %s, want latest commit %s", history[0].Hash, info.Hash)
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.EnsureContractRepo(7, "v1", "system"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for _, content := range []string{"v2", "v3", "v4"} {
		if _, err := svc.CommitContent(7, content, "system", "update"); err != nil {
			t.Fatalf("commit %s: %v", content, err)
		}
	}

	history, err := svc.History(7, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 commits with limit, got %d", len(history))
	}
}

func TestContentAt(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.EnsureContractRepo(7, "first revision", "system"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	second, err := svc.CommitContent(7, "second revision", "system", "update")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	content, err := svc.ContentAt(7, second.Hash)
	if err != nil {
		t.Fatalf("content at %s: %v", second.Hash, err)
	}
	if content != "second revision" {
		t.Fatalf("content = %q", content)
	}

	history, err := svc.History(7, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	baseline := history[len(history)-1]
	content, err = svc.ContentAt(7, baseline.Hash)
	if err != nil {
		t.Fatalf("content at baseline: %v", err)
	}
	if content != "first revision" {
		t.Fatalf("baseline content = %q", content)
	}
}

func TestHistoryUnknownContract(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.History(99, 0); err == nil {
		t.Fatal("expected error for unknown contract repo")
	}
}
