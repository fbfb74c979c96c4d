package realtime

import (
	"strings"
	"testing"
)

func TestParseInboundJoin(t *testing.T) {
	env, err := ParseInbound([]byte(`{"type":"join","userId":3,"contractId":7}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Type != TypeJoin || env.UserID != 3 || env.ContractID != 7 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestParseInboundJoinWithoutIdentifiers(t *testing.T) {
	// Missing identifiers are a routing decision, not a parse error.
	env, err := ParseInbound([]byte(`{"type":"join"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.UserID != 0 || env.ContractID != 0 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestParseInboundCursorMoveRequiresPosition(t *testing.T) {
	if _, err := ParseInbound([]byte(`{"type":"cursor_move","userId":3}`)); err == nil {
		t.Fatal("expected error for cursor_move without position")
	}

	env, err := ParseInbound([]byte(`{"type":"cursor_move","position":{"line":2,"character":14}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Position == nil || env.Position.Line != 2 || env.Position.Character != 14 {
		t.Fatalf("unexpected position: %+v", env.Position)
	}
}

func TestParseInboundContentChangeRequiresContent(t *testing.T) {
	if _, err := ParseInbound([]byte(`{"type":"content_change","contractId":7}`)); err == nil {
		t.Fatal("expected error for content_change without content")
	}

	// Empty string content is a legal full replacement and must be kept
	// distinct from absent content.
	env, err := ParseInbound([]byte(`{"type":"content_change","contractId":7,"content":""}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Content == nil || *env.Content != "" {
		t.Fatalf("expected empty-string content, got %v", env.Content)
	}
}

func TestParseInboundRejectsUnknownTypes(t *testing.T) {
	cases := map[string]string{
		"unknown type": `{"type":"shout","userId":3}`,
		"missing type": `{"userId":3}`,
		"outbound":     `{"type":"presence_update","userId":3}`,
		"not json":     `nope`,
	}
	for name, raw := range cases {
		if _, err := ParseInbound([]byte(raw)); err == nil {
			t.Errorf("%s: expected error for %s", name, raw)
		}
	}
}

func TestParseInboundRejectsOutboundKinds(t *testing.T) {
	for _, kind := range []string{TypePresenceUpdate, TypeCursorUpdate, TypeContentUpdate, TypeError} {
		_, err := ParseInbound([]byte(`{"type":"` + kind + `"}`))
		if err == nil || !strings.Contains(err.Error(), "unknown message type") {
			t.Errorf("kind %s: expected unknown-type error, got %v", kind, err)
		}
	}
}
