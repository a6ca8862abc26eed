package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"afterlife.app/publisher/core/config"
	"afterlife.app/publisher/internal/fetcher"
	"afterlife.app/publisher/internal/format"
	"afterlife.app/publisher/internal/transport"
)

func newPreviewCmd() *cobra.Command {
	var (
		notes  string
		poster string
	)

	cmd := &cobra.Command{
		Use:   "preview <codename>",
		Short: "Render the release post for a device without touching Telegram",
		Long: "Fetches {OTA_BASE_URL}/<codename>/updates.json and prints the caption\n" +
			"and buttons exactly as they would be published.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codename, ok := fetcher.ParseCodename(args[0])
			if !ok {
				return fmt.Errorf("invalid codename %q", args[0])
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			rec, err := fetcher.New(cfg.OTA.BaseURL, nil).Fetch(cmd.Context(), codename)
			if err != nil {
				return fmt.Errorf("failed to fetch data for %s: %w", codename, err)
			}

			if rec.MaintainerName != "" {
				poster = rec.MaintainerName
			}
			f := format.New(linksFrom(cfg.Links))
			printPreview(cmd.OutOrStdout(), f.Post(rec, poster, format.ParseNotes(notes)), f.ReleaseKeyboard(rec))
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "release notes, one per line")
	cmd.Flags().StringVar(&poster, "poster", "maintainer", "poster name used when upstream has no maintainer")
	return cmd
}

func printPreview(w io.Writer, caption string, kb transport.Keyboard) {
	fmt.Fprintln(w, caption)
	fmt.Fprintln(w)
	for _, row := range kb {
		for _, b := range row {
			fmt.Fprintf(w, "[%s] %s\n", b.Text, b.URL)
		}
	}
}
