// Package mail extracts classifiable text from message files.
package mail

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
)

// MaxMessageBytes bounds how much of a message file is read.
const MaxMessageBytes = 10 << 20

// ErrNotText is returned for content that sniffs as binary, such as an attachment saved
// with a message extension.
var ErrNotText = errors.New("not a text message")

// DefaultExtensions are the file types treated as messages.
var DefaultExtensions = []string{".eml", ".txt", ".msg"}

// MatchExtension reports whether path has one of extensions, compared case-insensitively with
// or without the leading dot. An empty list matches everything.
func MatchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return lo.ContainsBy(extensions, func(e string) bool {
		return strings.TrimPrefix(strings.ToLower(e), ".") == ext
	})
}

// Extractor extracts plain text from message files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, MaxMessageBytes))
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts text from content based on the given extension.
// Binary content is rejected with ErrNotText. .eml and .msg content is parsed as an
// RFC 5322 message, falling back to plain text when it has no headers. Anything else is
// plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	if mt, ok := sniffText(content); !ok {
		return "", fmt.Errorf("%w: detected %s", ErrNotText, mt)
	}
	switch ext {
	case ".eml", ".msg":
		if text, ok := parseMessage(content); ok {
			return validUTF8(text), nil
		}
		return validUTF8(string(content)), nil
	default:
		return validUTF8(string(content)), nil
	}
}

// sniffText reports whether content is text or a message. Empty content counts as text.
func sniffText(content []byte) (string, bool) {
	if len(content) == 0 {
		return "", true
	}
	detected := mimetype.Detect(content)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/plain") || m.Is("message/rfc822") {
			return detected.String(), true
		}
	}
	return detected.String(), false
}

// validUTF8 replaces invalid UTF-8 sequences with the replacement character.
func validUTF8(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return strings.TrimSpace(s)
}
