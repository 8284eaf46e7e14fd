package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/mmusim/datarecording"
	"github.com/sarchlab/mmusim/tracing"
)

var traceCmd = &cobra.Command{
	Use:   "trace <trace.sqlite3>",
	Short: "Print the events recorded with --trace-db.",
	Long: "`trace` prints the recorded events in order, indented like the " +
		"live trace. Use --limit and --offset to page through long traces.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := loadConfig(cmd)
		if err != nil {
			atexit.Fatalf("Error: %v", err)
		}

		reader, err := datarecording.NewReader(args[0], c.SQLiteDriver)
		if err != nil {
			atexit.Fatalf("Error opening %s: %v", args[0], err)
		}
		defer reader.Close()

		flags := cmd.Flags()
		page := tracePage{}
		page.what, _ = flags.GetString("what")
		page.limit, _ = flags.GetInt("limit")
		page.offset, _ = flags.GetInt("offset")

		shown, total, err := printTrace(
			cmd.Context(), reader, cmd.OutOrStdout(), page)
		if err != nil {
			atexit.Fatalf("Error reading %s: %v", args[0], err)
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d events\n", shown, total)
	},
}

func init() {
	traceCmd.Flags().String("sqlite-driver", "",
		"SQLite driver of the trace database: sqlite3 or sqlite.")
	traceCmd.Flags().String("what", "",
		"Only print events of this kind, such as TLBMiss.")
	traceCmd.Flags().Int("limit", 0, "Print at most this many events.")
	traceCmd.Flags().Int("offset", 0, "Skip this many events first.")
	rootCmd.AddCommand(traceCmd)
}

// tracePage selects the recorded events to print.
type tracePage struct {
	what   string
	limit  int
	offset int
}

func (p tracePage) params() datarecording.QueryParams {
	params := datarecording.QueryParams{
		OrderBy: "Seq",
		Limit:   p.limit,
		Offset:  p.offset,
	}

	if p.what != "" {
		params.Where = "What = ?"
		params.Args = []any{p.what}
	}

	return params
}

// printTrace writes one page of events, one per line, and returns the number
// of events printed and the number of events matching the page filter.
func printTrace(
	ctx context.Context,
	reader datarecording.DataReader,
	out io.Writer,
	page tracePage,
) (int, int, error) {
	if page.limit < 0 || page.offset < 0 {
		return 0, 0, fmt.Errorf("limit and offset must not be negative")
	}

	reader.MapTable(tracing.EventTableName, tracing.EventEntry{})

	events, total, err := reader.Query(
		ctx, tracing.EventTableName, page.params())
	if err != nil {
		return 0, 0, err
	}

	for _, e := range events {
		event := e.(*tracing.EventEntry)

		_, err = fmt.Fprintf(out, "%s%s\n",
			strings.Repeat("  ", event.Depth), event.Message)
		if err != nil {
			return 0, 0, err
		}
	}

	return len(events), total, nil
}
