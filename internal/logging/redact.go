package logging

import (
	"encoding/hex"
	"log/slog"

	"github.com/zeebo/blake3"
)

// Fingerprint returns a short blake3 digest of secret, safe to log.
// Equal secrets produce equal fingerprints, so a rotated token is visible
// in the logs without the token itself.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:6])
}

// Secret returns a log attribute carrying the fingerprint of value.
func Secret(key, value string) slog.Attr {
	return slog.String(key+"_fp", Fingerprint(value))
}
