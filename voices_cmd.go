package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud/internal/catalog"
	"github.com/dgnsrekt/readaloud/ui"
)

var (
	voicesMaterials bool

	voicesCmd = &cobra.Command{
		Use:     "voices [QUERY]",
		Short:   "List the voices readaloud can read with",
		Long:    paragraph(fmt.Sprintf("\n%s the voices in the catalog, best matches first when a query is given.", keyword("List"))),
		Example: paragraph("readaloud voices\nreadaloud voices 루빈\nreadaloud voices --materials"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog()
			if err != nil {
				return err
			}

			var md string
			if voicesMaterials {
				md = materialsMarkdown(cat)
			} else {
				query := ""
				if len(args) > 0 {
					query = args[0]
				}
				md = voicesMarkdown(cat, query)
			}
			return renderMarkdown(cmd.OutOrStdout(), md)
		},
	}
)

func voicesMarkdown(cat *catalog.Catalog, query string) string {
	var b strings.Builder
	b.WriteString("| | Voice | ID | |\n|---|---|---|---|\n")
	for _, m := range ui.FilterVoices(cat.Voices, query) {
		v := cat.Voices[m.Index]
		mark := ""
		if v.Name == cat.DefaultVoice().Name {
			mark = "★"
		}
		fmt.Fprintf(&b, "| %s | %s | `%s` | %s |\n", mark, v.Name, v.ID, v.Description)
	}
	return b.String()
}

func materialsMarkdown(cat *catalog.Catalog) string {
	var b strings.Builder
	for _, m := range cat.Materials {
		fmt.Fprintf(&b, "## %s\n\n", m.Name)
		voice := "random"
		if m.Voice != "" {
			voice = m.Voice
		}
		fmt.Fprintf(&b, "*%s* · %d texts · voice: %s\n\n", m.Kind, len(m.Texts), voice)
	}
	return b.String()
}

func renderMarkdown(w io.Writer, md string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(int(width)), //nolint:gosec
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("unable to render markdown: %w", err)
	}
	if _, err := fmt.Fprint(w, out); err != nil {
		return fmt.Errorf("unable to write to writer: %w", err)
	}
	return nil
}

func init() {
	voicesCmd.Flags().BoolVar(&voicesMaterials, "materials", false, "list the preset texts instead")
}
