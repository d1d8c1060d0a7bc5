package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestWrapMatchesByCode(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := fmt.Errorf("load invoices: %w", Wrap(CodeStoreFailure, cause, "查询发票失败"))

	if !HasCode(err, CodeStoreFailure) {
		t.Fatalf("expected store failure code in chain: %v", err)
	}
	if HasCode(err, CodeStoreUnavailable) {
		t.Fatalf("unexpected store unavailable match")
	}
	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if CodeOf(err) != CodeStoreFailure {
		t.Fatalf("unexpected code: %s", CodeOf(err))
	}
}

func TestAttributesDefaults(t *testing.T) {
	if !ShouldAlert(New(CodeAgentFailure, "")) {
		t.Fatalf("agent failures should alert by default")
	}
	if ShouldAlert(New(CodeAgentFailure, "", WithAlert(false))) {
		t.Fatalf("override should disable alert")
	}
	if !RetryableError(New(CodeRunInProgress, "")) {
		t.Fatalf("run in progress should be retryable")
	}
	if got := New(CodeMissingUser, "").Message(); got != "user identity required" {
		t.Fatalf("unexpected default message: %q", got)
	}
	if SeverityOf(New(CodeStoreUnavailable, "", WithSeverity(SeverityInfo))) != SeverityInfo {
		t.Fatalf("severity override ignored")
	}
}

func TestUnknownCodeFallsBack(t *testing.T) {
	attr := AttributesOf(Code("NOT_REGISTERED"))
	if attr.Severity != SeverityCritical {
		t.Fatalf("expected unknown attributes, got %+v", attr)
	}

	Register("CUSTOM", Attributes{Message: "custom", Severity: SeverityInfo})
	if AttributesOf("CUSTOM").Message != "custom" {
		t.Fatalf("registered code not visible")
	}
}

func TestMetadataIsCopied(t *testing.T) {
	err := New(CodeAgentFailure, "cfo", WithMetadata("agent", "CFO"))
	meta := err.Metadata()
	meta["agent"] = "changed"
	if err.Metadata()["agent"] != "CFO" {
		t.Fatalf("metadata must be copied")
	}
}
