// Package source loads the text to read from a file, stdin or a URL.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

// maxSize bounds how much is read from any source.
const maxSize = 4 << 20

// ErrEmpty is returned when a source holds no readable text.
var ErrEmpty = errors.New("source is empty")

// Document is loaded text ready for segmentation.
type Document struct {
	Name string // file path, URL or "stdin"
	Text string
}

// Loader reads documents.
type Loader struct {
	Client *http.Client
	Stdin  io.Reader
}

// NewLoader returns a loader reading stdin from os.Stdin.
func NewLoader() *Loader {
	return &Loader{
		Client: &http.Client{Timeout: 30 * time.Second},
		Stdin:  os.Stdin,
	}
}

// Load resolves arg: "-" reads stdin, http(s) URLs are fetched and anything
// else is a file path. Markdown is reduced to plain text.
func (l *Loader) Load(ctx context.Context, arg string) (Document, error) {
	switch {
	case arg == "-":
		b, err := io.ReadAll(io.LimitReader(l.Stdin, maxSize))
		if err != nil {
			return Document{}, fmt.Errorf("unable to read stdin: %w", err)
		}
		return finish("stdin", b, looksLikeMarkdown(b))

	case IsURL(arg):
		return l.fetch(ctx, arg)
	}

	path, err := homedir.Expand(arg)
	if err != nil {
		return Document{}, fmt.Errorf("unable to expand path: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("unable to open file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	b, err := io.ReadAll(io.LimitReader(f, maxSize))
	if err != nil {
		return Document{}, fmt.Errorf("unable to read file: %w", err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return finish(path, b, IsMarkdownFile(path))
}

func (l *Loader) fetch(ctx context.Context, raw string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return Document{}, err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("unable to get url: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxSize))
	if err != nil {
		return Document{}, fmt.Errorf("unable to read response: %w", err)
	}

	md := IsMarkdownFile(resp.Request.URL.Path)
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		switch mt {
		case "text/markdown", "text/x-markdown":
			md = true
		case "text/plain":
		default:
			if !md {
				return Document{}, fmt.Errorf("unsupported content type %s", mt)
			}
		}
	}
	return finish(raw, b, md)
}

func finish(name string, b []byte, markdown bool) (Document, error) {
	text := string(removeFrontmatter(b))
	if markdown {
		text = PlainText(text)
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return Document{}, ErrEmpty
	}
	return Document{Name: name, Text: text}, nil
}

// IsURL reports whether s is an http or https URL.
func IsURL(s string) bool {
	u, err := url.ParseRequestURI(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var markdownExts = map[string]bool{
	".md": true, ".mdown": true, ".mkdn": true, ".mkd": true, ".markdown": true,
}

// IsMarkdownFile reports whether the path has a markdown extension.
func IsMarkdownFile(path string) bool {
	return markdownExts[strings.ToLower(filepath.Ext(path))]
}

var (
	frontmatter = regexp.MustCompile(`(?s)\A---\r?\n.*?\r?\n---\r?\n`)
	mdMarkers   = regexp.MustCompile(`(?m)^(#{1,6} |[-*] |> |` + "```" + `)`)
)

func removeFrontmatter(b []byte) []byte {
	if loc := frontmatter.FindIndex(b); loc != nil {
		return b[loc[1]:]
	}
	return b
}

// looksLikeMarkdown guesses for piped input, which has no name.
func looksLikeMarkdown(b []byte) bool {
	return len(mdMarkers.FindAllIndex(b, 3)) >= 2
}
