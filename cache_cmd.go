package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud/internal/cache"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Show the audio cache",
		Long:  paragraph(fmt.Sprintf("\n%s how much synthesized audio is kept for reuse.", keyword("Show"))),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newCache(log.Default())
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			dir, _ := cacheDir()
			return printCacheStats(cmd.OutOrStdout(), dir, c.Stats())
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newCache(log.Default())
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			freed := c.Stats().Disk.Size
			if err := c.Clear(); err != nil {
				return fmt.Errorf("unable to clear cache: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Freed %s\n", humanize.Bytes(uint64(max(freed, 0)))) //nolint:gosec
			return err
		},
	}
)

func printCacheStats(w io.Writer, dir string, s cache.ManagerStats) error {
	_, err := fmt.Fprintf(w, "%s %s\n%s %s of %s, %s entries\n",
		keyword("Directory:"), dir,
		keyword("Disk:"),
		humanize.Bytes(uint64(max(s.Disk.Size, 0))),     //nolint:gosec
		humanize.Bytes(uint64(max(s.Disk.Capacity, 0))), //nolint:gosec
		humanize.Comma(s.Disk.ItemCount),
	)
	return err
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
