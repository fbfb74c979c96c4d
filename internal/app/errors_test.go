package app

import "testing"

func TestDomainErrorString(t *testing.T) {
	err := domainError(404, "NOT_FOUND", "Contract not found", nil)
	if got := err.Error(); got != "NOT_FOUND: Contract not found" {
		t.Fatalf("Error() = %q", got)
	}

	bare := &DomainError{Code: "CONFLICT"}
	if got := bare.Error(); got != "CONFLICT" {
		t.Fatalf("Error() without message = %q", got)
	}

	var nilErr *DomainError
	if got := nilErr.Error(); got != "" {
		t.Fatalf("nil Error() = %q", got)
	}
}
