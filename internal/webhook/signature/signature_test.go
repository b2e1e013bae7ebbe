package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/smallbiznis/communa/internal/webhook/domain"
	"github.com/smallbiznis/communa/internal/webhook/signature"
)

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyBareDigest(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := sign("whsec_test", payload)

	if err := signature.Verify(payload, header, "whsec_test"); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyV1Header(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := fmt.Sprintf("t=1700000000,v1=%s", sign("whsec_test", payload))

	if err := signature.Verify(payload, header, "whsec_test"); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := sign("whsec_other", payload)

	if err := signature.Verify(payload, header, "whsec_test"); err != domain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","amount":100}`)
	header := sign("whsec_test", payload)
	tampered := []byte(`{"id":"evt_1","amount":999}`)

	if err := signature.Verify(tampered, header, "whsec_test"); err != domain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	if err := signature.Verify([]byte(`{}`), "", "whsec_test"); err != domain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsMissingSecret(t *testing.T) {
	payload := []byte(`{}`)
	if err := signature.Verify(payload, sign("whsec_test", payload), ""); err != domain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsMalformedHex(t *testing.T) {
	if err := signature.Verify([]byte(`{}`), "v1=not-hex", "whsec_test"); err != domain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
