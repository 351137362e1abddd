package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/catalog-select/internal/tui"
	"github.com/Sternrassler/catalog-select/pkg/logging"
)

func newTUICmd(opts *rootOptions) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse and select records in the terminal",
		Long: `Opens an interactive table of the current page.

Keys: ←/→ change page, ↑/↓ move, space toggles the highlighted record,
n asks for a count and selects that many leading records, c clears the
selection, r reloads the page, q quits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// the alternate screen owns the terminal
			var out io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			cfg := opts.cfg.LoggerConfig(out)
			cfg.Pretty = false
			logging.Setup(cfg)

			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return tui.Run(cmd.Context(), a.ctl)
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file while the UI runs")

	return cmd
}
