package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	plain := NewID("")
	if len(plain) != 32 {
		t.Fatalf("bare id length = %d, want 32 hex chars", len(plain))
	}

	token := NewID("tok")
	if !strings.HasPrefix(token, "tok_") {
		t.Fatalf("prefixed id = %q, want tok_ prefix", token)
	}
	if len(token) != len("tok_")+32 {
		t.Fatalf("prefixed id length = %d", len(token))
	}

	if NewID("tok") == token {
		t.Fatal("two ids should not collide")
	}
}
