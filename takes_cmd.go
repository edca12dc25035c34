package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/readaloud/internal/source"
	"github.com/dgnsrekt/readaloud/internal/take"
	"github.com/dgnsrekt/readaloud/internal/words"
)

var (
	takesMaxLength int
	takesSynthesis bool

	takesCmd = &cobra.Command{
		Use:     "takes [SOURCE]",
		Short:   "Show how a text is split into takes",
		Long:    paragraph(fmt.Sprintf("\n%s how a text is split into takes, without reading it aloud.", keyword("Show"))),
		Example: paragraph("readaloud takes story.md\necho 'Hello. World.' | readaloud takes -"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := "-"
			if len(args) > 0 {
				arg = args[0]
			}
			doc, err := source.NewLoader().Load(cmd.Context(), arg)
			if err != nil {
				return err
			}

			maxLength := takesMaxLength
			if !cmd.Flags().Changed("max-length") {
				maxLength = viper.GetInt("take.max_length")
			}
			return printTakes(cmd.OutOrStdout(), take.Segment(doc.Text, maxLength), takesSynthesis)
		},
	}
)

func printTakes(w io.Writer, takes []take.Take, synthesis bool) error {
	block := -1
	for _, t := range takes {
		if t.Block != block && block >= 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		block = t.Block

		text := t.Display
		if synthesis {
			text = t.Synthesis
		}
		header := fmt.Sprintf("%s  %d chars  %d words", t.Name(), utf8.RuneCountInString(t.Raw), len(words.Weigh(t.Display)))
		if t.Empty() {
			header += "  (silent)"
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n", keyword(header), strings.TrimSpace(text)); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	takesCmd.Flags().IntVar(&takesMaxLength, "max-length", take.DefaultMaxLength, "longest take in characters")
	takesCmd.Flags().BoolVar(&takesSynthesis, "synthesis", false, "show the text sent for synthesis")
}
