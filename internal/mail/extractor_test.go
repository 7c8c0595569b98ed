package mail

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("  Hello world\nLine 2\n"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Hello world\nLine 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_invalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("hello\x80world"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "hello�world" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_simpleMessage(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"To: b@example.com\r\n" +
		"Subject: You are a winner\r\n" +
		"\r\n" +
		"Claim your lottery prize today.\r\n"
	got, err := NewExtractor().ExtractBytes([]byte(raw), ".eml")
	if err != nil {
		t.Fatal(err)
	}
	want := "You are a winner\n\nClaim your lottery prize today."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractBytes_encodedSubjectAndQP(t *testing.T) {
	raw := "Subject: =?UTF-8?Q?Caf=C3=A9_meeting?=\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"See you at the caf=C3=A9 at noon.=\r\n" +
		" Bring notes.\r\n"
	got, err := NewExtractor().ExtractBytes([]byte(raw), ".eml")
	if err != nil {
		t.Fatal(err)
	}
	want := "Café meeting\n\nSee you at the café at noon. Bring notes."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractBytes_transcodesCharsets(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "latin1 quoted-printable body",
			raw: "Subject: Menu\r\n" +
				"Content-Type: text/plain; charset=ISO-8859-1\r\n" +
				"Content-Transfer-Encoding: quoted-printable\r\n" +
				"\r\n" +
				"Caf=E9 cr=E8me\r\n",
			want: "Menu\n\nCafé crème",
		},
		{
			name: "windows-1252 encoded subject",
			raw: "Subject: =?windows-1252?Q?=93Sale=94_ends?=\r\n" +
				"Content-Type: text/plain; charset=windows-1252\r\n" +
				"Content-Transfer-Encoding: base64\r\n" +
				"\r\n" +
				"gFRvZGF5IG9ubHk=\r\n",
			want: "\u201cSale\u201d ends\n\n\u20acToday only",
		},
		{
			name: "unknown charset kept",
			raw: "Subject: Hi\r\n" +
				"Content-Type: text/plain; charset=x-no-such-charset\r\n" +
				"\r\n" +
				"plain ascii\r\n",
			want: "Hi\n\nplain ascii",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewExtractor().ExtractBytes([]byte(tt.raw), ".eml")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_multipartPrefersPlain(t *testing.T) {
	raw := "Subject: Newsletter\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
		"\r\n" +
		"--b1\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html body</p>\r\n" +
		"--b1\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"cGxhaW4gYm9keQ==\r\n" +
		"--b1--\r\n"
	got, err := NewExtractor().ExtractBytes([]byte(raw), ".eml")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Newsletter\n\nplain body" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_multipartSkipsAttachments(t *testing.T) {
	raw := "Content-Type: multipart/mixed; boundary=outer\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: application/pdf\r\n" +
		"\r\n" +
		"%PDF-1.4\r\n" +
		"--outer\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<b>only html</b>\r\n" +
		"--outer--\r\n"
	got, err := NewExtractor().ExtractBytes([]byte(raw), ".eml")
	if err != nil {
		t.Fatal(err)
	}
	if got != "<b>only html</b>" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_emlWithoutHeaders(t *testing.T) {
	got, err := NewExtractor().ExtractBytes([]byte("just some text without headers"), ".eml")
	if err != nil {
		t.Fatal(err)
	}
	if got != "just some text without headers" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.EML")
	if err := os.WriteFile(path, []byte("Subject: hi\n\nbody\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "hi\n\nbody" {
		t.Errorf("got %q", got)
	}

	if _, err := NewExtractor().Extract(filepath.Join(dir, "missing.eml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMessageID(t *testing.T) {
	id1 := MessageID("/mail/inbox/a.eml")
	if id1 != MessageID("/mail/inbox/./a.eml") {
		t.Error("paths should normalize to the same ID")
	}
	if id1 == MessageID("/mail/inbox/b.eml") {
		t.Error("different paths should give different IDs")
	}
	if !strings.HasPrefix(id1, idPrefix) {
		t.Errorf("ID should have prefix %q: %q", idPrefix, id1)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.eml", []string{".eml", ".txt"}, true},
		{"/a/b.EML", []string{".eml"}, true},
		{"/a/b.eml", []string{"eml"}, true},
		{"/a/b.pdf", []string{".eml"}, false},
		{"/a/b", []string{".eml"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		if got := MatchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("MatchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestExtractBytes_rejectsBinary(t *testing.T) {
	e := NewExtractor()
	samples := map[string][]byte{
		"pdf": []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"),
		"png": {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'},
		"nul": []byte("Subject: hi\x00\x01\x02\x03"),
	}
	for name, content := range samples {
		t.Run(name, func(t *testing.T) {
			if _, err := e.ExtractBytes(content, ".eml"); !errors.Is(err, ErrNotText) {
				t.Errorf("err = %v, want ErrNotText", err)
			}
		})
	}
	if got, err := e.ExtractBytes(nil, ".txt"); err != nil || got != "" {
		t.Errorf("empty content: %q, %v", got, err)
	}
}
