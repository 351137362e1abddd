package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/catalog-select/pkg/catalog"
	"github.com/Sternrassler/catalog-select/pkg/logging"
	"github.com/Sternrassler/catalog-select/pkg/selection"
)

// selectResult is the --json output of the select command.
type selectResult struct {
	Selection  []int64 `json:"selection"`
	Cursor     int     `json:"cursor"`
	TotalCount int     `json:"total_count"`
	Partial    bool    `json:"partial"`
	Error      string  `json:"error,omitempty"`
}

func newSelectCmd(opts *rootOptions) *cobra.Command {
	var (
		count   string
		asJSON  bool
		records bool
	)

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Select the first N records and print their IDs",
		Long: `Walks the catalog from page 0 and prints the IDs of the first N records,
one per line. When a page fetch fails the IDs collected before the failure
are printed and the command exits non-zero.`,
		Example: `  catalog-select select --count 15
  catalog-select select --count 40 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			walkErr := a.ctl.SelectFirstNInput(cmd.Context(), count)
			if selection.IsInvalidInput(walkErr) {
				return walkErr
			}

			st := a.ctl.State()
			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, st, walkErr); err != nil {
					return err
				}
			} else {
				writeIDs(out, st, records)
			}

			rl := a.client.RateLimitState()
			logging.NewLogger("catalog-select").Debug().
				Bool("rate_limit_known", rl.Known).
				Int("rate_limit_remaining", rl.Remaining).
				Msg("Select finished")

			if walkErr != nil {
				return fmt.Errorf("partial selection of %d records: %w", len(st.Selection), walkErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&count, "count", "n", "", "Number of leading records to select (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&records, "records", false, "Also print the records of the page holding the last selected ID")
	_ = cmd.MarkFlagRequired("count")

	return cmd
}

func writeJSON(w io.Writer, st selection.State, walkErr error) error {
	res := selectResult{
		Selection:  st.Selection,
		Cursor:     st.Cursor,
		TotalCount: st.TotalCount,
		Partial:    walkErr != nil,
	}
	if walkErr != nil {
		res.Error = walkErr.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func writeIDs(w io.Writer, st selection.State, withRecords bool) {
	for _, id := range st.Selection {
		fmt.Fprintln(w, id)
	}
	if !withRecords {
		return
	}
	fmt.Fprintf(w, "\npage %d of %d\n", st.Cursor+1, max(st.PageCount, 1))
	for _, rec := range st.Records {
		fmt.Fprintln(w, formatRecord(rec))
	}
}

func formatRecord(rec catalog.Record) string {
	if rec.ArtistDisplay == "" {
		return fmt.Sprintf("%d\t%s", rec.ID, rec.Title)
	}
	return fmt.Sprintf("%d\t%s\t%s", rec.ID, rec.Title, rec.ArtistDisplay)
}
