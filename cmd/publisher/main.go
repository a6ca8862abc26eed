// publisher is the AfterlifeOS release announcement bot.
//
// Usage:
//
//	publisher serve
//	publisher preview <codename> [--notes "line1\nline2"]
//	publisher webhook set|delete|info
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "publisher",
		Short: "Preview and publish AfterlifeOS release posts to Telegram",
		Long: "publisher runs the Telegram bot that turns a device's OTA metadata\n" +
			"into a release announcement and posts it to the updates channel.",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage: true,
		Version:      version,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newPreviewCmd())
	root.AddCommand(newWebhookCmd())
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
