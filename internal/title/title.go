// Package title names a reading from its text.
package title

import (
	"context"
	"regexp"
	"strings"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// Generator produces a title for text.
type Generator interface {
	Generate(ctx context.Context, text string) (string, error)
}

var (
	edges   = regexp.MustCompile(`^[*#\s]+|[*#\s]+$`)
	quotes  = regexp.MustCompile("[\"'「」«»()`]")
	emoji   = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}]`)
	spacing = regexp.MustCompile(`\s{2,}`)
)

// Clean strips markdown emphasis, quotes and emoji from a generated title.
func Clean(s string) string {
	s = strings.TrimSpace(edges.ReplaceAllString(s, ""))
	s = quotes.ReplaceAllString(s, "")
	s = emoji.ReplaceAllString(s, "")
	s = spacing.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Resolve returns a cleaned title from g, or ttypes.FallbackTitle with an
// error of kind TitleGenerationFailed. Cancellation is passed through.
func Resolve(ctx context.Context, g Generator, text string) (string, error) {
	const op = "generate title"

	raw, err := g.Generate(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return ttypes.FallbackTitle, ttypes.Cancelled(op, ctx.Err())
		}
		return ttypes.FallbackTitle, ttypes.NewError(ttypes.KindTitleGenerationFailed, op, err)
	}

	cleaned := Clean(raw)
	if cleaned == "" {
		return ttypes.FallbackTitle, ttypes.NewError(ttypes.KindTitleGenerationFailed, op, nil)
	}
	return cleaned, nil
}
