package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "heading and paragraph",
			in:   "# 소나기\n\n소년은 *개울가에서* 소녀를 보았다.",
			want: "소나기\n\n소년은 개울가에서 소녀를 보았다.",
		},
		{
			name: "soft breaks join",
			in:   "line one\nline two",
			want: "line one line two",
		},
		{
			name: "code dropped",
			in:   "Before.\n\n```go\nfmt.Println()\n```\n\nAfter.",
			want: "Before.\n\nAfter.",
		},
		{
			name: "list items are blocks",
			in:   "- one\n- two\n  - nested",
			want: "one\n\ntwo\n\nnested",
		},
		{
			name: "link text kept",
			in:   "Read [the docs](https://example.com) and `go test`.",
			want: "Read the docs and go test.",
		},
		{
			name: "quote",
			in:   "> quoted words",
			want: "quoted words",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/post", true},
		{"http://localhost:4000", true},
		{"ftp://example.com", false},
		{"example.com", false},
		{"그냥 텍스트", false},
		{"https://", false},
	}
	for _, tt := range tests {
		if got := IsURL(tt.in); got != tt.want {
			t.Errorf("IsURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	md := filepath.Join(dir, "story.md")
	if err := os.WriteFile(md, []byte("---\ntitle: x\n---\n# Heading\n\nBody."), 0o600); err != nil {
		t.Fatal(err)
	}
	txt := filepath.Join(dir, "story.txt")
	if err := os.WriteFile(txt, []byte("# not a heading\r\n\r\nBody.\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	l := NewLoader()

	doc, err := l.Load(context.Background(), md)
	if err != nil {
		t.Fatalf("Load(md) error = %v", err)
	}
	if doc.Text != "Heading\n\nBody." {
		t.Errorf("Load(md) text = %q", doc.Text)
	}
	if doc.Name != md {
		t.Errorf("Load(md) name = %q, want %q", doc.Name, md)
	}

	doc, err = l.Load(context.Background(), txt)
	if err != nil {
		t.Fatalf("Load(txt) error = %v", err)
	}
	if doc.Text != "# not a heading\n\nBody." {
		t.Errorf("Load(txt) text = %q", doc.Text)
	}

	if _, err := l.Load(context.Background(), filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("Load(missing) should fail")
	}
}

func TestLoadStdin(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "첫 문장.\n\n둘째 문장.\n", "첫 문장.\n\n둘째 문장."},
		{"markdown", "# Title\n\n- a\n- b\n", "Title\n\na\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Loader{Stdin: strings.NewReader(tt.in)}
			doc, err := l.Load(context.Background(), "-")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if doc.Text != tt.want || doc.Name != "stdin" {
				t.Errorf("Load() = %+v, want %q", doc, tt.want)
			}
		})
	}

	l := &Loader{Stdin: strings.NewReader("  \n\n ")}
	if _, err := l.Load(context.Background(), "-"); !errors.Is(err, ErrEmpty) {
		t.Errorf("Load(blank) error = %v, want ErrEmpty", err)
	}
}

func TestLoadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/post.md":
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			_, _ = w.Write([]byte("## Notes\n\n**Bold** text."))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("Just text."))
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := &Loader{Client: srv.Client()}
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"/post.md", "Notes\n\nBold text.", false},
		{"/plain", "Just text.", false},
		{"/page", "", true},
		{"/missing", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			doc, err := l.Load(context.Background(), srv.URL+tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if doc.Text != tt.want {
				t.Errorf("Load() text = %q, want %q", doc.Text, tt.want)
			}
		})
	}
}
