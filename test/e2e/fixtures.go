package e2e

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"os"
	"path/filepath"
	"strings"
)

const fixtureBoundary = "mailsift-e2e-boundary"

// WriteMessage writes m into dir in its encoding and returns the file path.
// The file name is the message ID plus the extension for the encoding.
func WriteMessage(dir string, m E2EMessage) (string, error) {
	content, ext, err := RenderMessage(m)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, m.ID+ext)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// WriteCorpus writes every message of c into dir.
func WriteCorpus(dir string, c *Corpus) error {
	for _, m := range c.Messages {
		if _, err := WriteMessage(dir, m); err != nil {
			return err
		}
	}
	return nil
}

// RenderMessage returns the file bytes and extension for m.
func RenderMessage(m E2EMessage) ([]byte, string, error) {
	switch m.Encoding {
	case EncodingText:
		return []byte(m.Text() + "\n"), ".txt", nil
	case EncodingPlain:
		var b bytes.Buffer
		writeHeaders(&b, m.Subject)
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(m.Body + "\r\n")
		return b.Bytes(), ".eml", nil
	case EncodingQuotedPrintable:
		var b bytes.Buffer
		writeHeaders(&b, mime.QEncoding.Encode("utf-8", m.Subject))
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
		b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
		qp := quotedprintable.NewWriter(&b)
		if _, err := qp.Write([]byte(m.Body)); err != nil {
			return nil, "", err
		}
		if err := qp.Close(); err != nil {
			return nil, "", err
		}
		b.WriteString("\r\n")
		return b.Bytes(), ".eml", nil
	case EncodingMultipart:
		var b bytes.Buffer
		writeHeaders(&b, m.Subject)
		b.WriteString("MIME-Version: 1.0\r\n")
		fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", fixtureBoundary)
		fmt.Fprintf(&b, "--%s\r\n", fixtureBoundary)
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		fmt.Fprintf(&b, "<html><body><p>%s</p></body></html>\r\n", m.Body)
		fmt.Fprintf(&b, "--%s\r\n", fixtureBoundary)
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		b.WriteString(wrapBase64(m.Body))
		fmt.Fprintf(&b, "--%s--\r\n", fixtureBoundary)
		return b.Bytes(), ".eml", nil
	default:
		return nil, "", fmt.Errorf("unknown encoding %v", m.Encoding)
	}
}

func writeHeaders(b *bytes.Buffer, subject string) {
	b.WriteString("From: sender@example.com\r\n")
	b.WriteString("To: inbox@example.com\r\n")
	fmt.Fprintf(b, "Subject: %s\r\n", subject)
}

func wrapBase64(s string) string {
	enc := base64.StdEncoding.EncodeToString([]byte(s))
	var b strings.Builder
	for len(enc) > 76 {
		b.WriteString(enc[:76] + "\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc + "\r\n")
	return b.String()
}
