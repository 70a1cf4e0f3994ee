package payos

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Sign computes the gateway checksum: a keyed HMAC-SHA256 over the
// alphabetically sorted field set formatted as key=value pairs joined by "&",
// hex-encoded. The signature field itself and nil values are excluded.
func Sign(checksumKey string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, fields[k]))
	}
	canonical := strings.Join(pairs, "&")

	mac := hmac.New(sha256.New, []byte(checksumKey))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the received signature matches the checksum
// recomputed over fields, using a constant-time comparison.
func VerifySignature(checksumKey string, fields map[string]string, signature string) bool {
	expected := Sign(checksumKey, fields)
	return hmac.Equal([]byte(expected), []byte(signature))
}
