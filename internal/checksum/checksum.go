// Package checksum fingerprints package files.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Descriptor returns the digest of an XML descriptor with a leading byte
// order mark dropped and CRLF line endings folded to LF, so a file re-saved
// by an editor on another platform keeps its checksum.
func Descriptor(data []byte) string {
	data = bytes.TrimPrefix(data, bom)
	if bytes.Contains(data, []byte("\r\n")) {
		data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	}
	return Sum(data)
}
