package items

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// shellQuote single-quotes s for safe interpolation into a remote command
// line, the same way internal/transport quotes paths on upload.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
