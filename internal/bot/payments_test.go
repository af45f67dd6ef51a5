package bot

import (
	"strings"
	"testing"
)

func TestInvoicePayloadRoundTrip(t *testing.T) {
	raw := invoicePayload(purposeDuplicate, "cats_by_bot")
	purpose, extra, ok := parsePayload(raw)
	if !ok {
		t.Fatalf("parsePayload(%q) rejected its own output", raw)
	}
	if purpose != purposeDuplicate || extra != "cats_by_bot" {
		t.Fatalf("round trip = (%q, %q), want (%q, %q)", purpose, extra, purposeDuplicate, "cats_by_bot")
	}
}

func TestInvoicePayloadNonceUnique(t *testing.T) {
	a := invoicePayload(purposeBuyPack, "emoji")
	b := invoicePayload(purposeBuyPack, "emoji")
	if a == b {
		t.Fatal("two payloads for the same purchase must differ")
	}
}

func TestParsePayloadRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "bpack", "bpack:emoji", "noise without colons"} {
		if _, _, ok := parsePayload(raw); ok {
			t.Errorf("parsePayload(%q) = ok, want rejection", raw)
		}
	}
}

func TestParsePayloadKeepsColonsInNonce(t *testing.T) {
	// Only the first two separators split; the nonce may carry anything.
	purpose, extra, ok := parsePayload("duplicate:some_slug:uuid:with:colons")
	if !ok || purpose != "duplicate" || extra != "some_slug" {
		t.Fatalf("parse = (%q, %q, %v)", purpose, extra, ok)
	}
	if !strings.HasPrefix("duplicate:some_slug:uuid:with:colons", purpose+":"+extra+":") {
		t.Fatal("payload structure changed")
	}
}
