package mail

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const idPrefix = "msg:"

// MessageID returns a stable ID for the message file at path, so reclassifying a changed file
// replaces its history entry.
func MessageID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return idPrefix + hex.EncodeToString(sum[:])
}
