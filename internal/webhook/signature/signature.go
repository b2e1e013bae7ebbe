package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/smallbiznis/communa/internal/webhook/domain"
)

// Verify checks the delivery signature against the shared secret. The
// header is either a bare hex digest or a comma separated list of k=v
// pairs where v1 entries carry candidate digests.
func Verify(payload []byte, header, secret string) error {
	if secret == "" {
		return domain.ErrInvalidSignature
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates(header) {
		decoded, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

func candidates(header string) []string {
	if !strings.Contains(header, "=") {
		return []string{header}
	}

	var out []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "v1" {
			out = append(out, strings.TrimSpace(value))
		}
	}
	return out
}
