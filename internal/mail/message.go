package mail

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// charsetReader transcodes r from charset to UTF-8. Unlabelled, UTF-8 and US-ASCII input is
// returned as is.
func charsetReader(charset string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8", "us-ascii":
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(r), nil
}

// parseMessage returns the subject and text body of an RFC 5322 message. ok is false when
// content does not start with a header block.
func parseMessage(content []byte) (string, bool) {
	msg, err := netmail.ReadMessage(bytes.NewReader(content))
	if err != nil || len(msg.Header) == 0 {
		return "", false
	}

	subject := msg.Header.Get("Subject")
	if decoded, err := wordDecoder.DecodeHeader(subject); err == nil {
		subject = decoded
	}

	body, _ := textBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	switch {
	case subject == "":
		return body, true
	case body == "":
		return subject, true
	default:
		return subject + "\n\n" + body, true
	}
}

// textBody returns the best text part of a body: the first text/plain part, else the first
// other text/* part.
func textBody(contentType, encoding string, r io.Reader) (string, bool) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return "", false
		}
		mr := multipart.NewReader(r, boundary)
		var fallback string
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			text, ok := textBody(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			if !ok {
				continue
			}
			pt, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
			if pt == "" || pt == "text/plain" || strings.HasPrefix(pt, "multipart/") {
				return text, true
			}
			if fallback == "" {
				fallback = text
			}
		}
		return fallback, fallback != ""
	}

	if !strings.HasPrefix(mediaType, "text/") {
		return "", false
	}
	body := decodeTransfer(encoding, r)
	// Unknown charsets are read raw and cleaned up by validUTF8.
	if cr, err := charsetReader(params["charset"], body); err == nil {
		body = cr
	}
	data, err := io.ReadAll(body)
	if err != nil && len(data) == 0 {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}
