// Package cli provides output formatting and an HTTP client for the mailsift command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/mailsift/internal/models"
	"github.com/hyperjump/mailsift/internal/sifter"
	"github.com/hyperjump/mailsift/pkg/utils"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteResult writes a single classification outcome.
func WriteResult(w io.Writer, res *models.ClassifyResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "%s (%.1f%% confidence, %s engine, %dms)\n",
		strings.ToUpper(res.Prediction), res.Confidence*100, res.Engine, res.TookMs)
	if len(res.Signals) > 0 {
		fmt.Fprintf(w, "signals: %s\n", strings.Join(res.Signals, ", "))
	}
	if res.ID != "" {
		fmt.Fprintf(w, "id: %s\n", res.ID)
	}
	return nil
}

// WriteHistory writes a page of stored classifications, as a table in text mode.
func WriteHistory(w io.Writer, history *models.HistoryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, history)
	}
	if len(history.Items) == 0 {
		fmt.Fprintln(w, "No classifications recorded.")
		return nil
	}
	table := newTable(w, "Time", "Verdict", "Confidence", "Engine", "Source", "Excerpt")
	for _, c := range history.Items {
		table.Append([]string{
			c.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			c.Prediction,
			fmt.Sprintf("%.1f%%", c.Confidence*100),
			string(c.Engine),
			utils.Truncate(c.Source, 32),
			utils.Excerpt(c.Excerpt, 60),
		})
	}
	table.Render()
	spam := lo.CountBy(history.Items, func(c *models.Classification) bool { return c.Prediction == "spam" })
	fmt.Fprintf(w, "\n%d shown (%d spam, %d ham) of %d total\n",
		len(history.Items), spam, len(history.Items)-spam, history.Total)
	return nil
}

// newTable returns a borderless, left-aligned table.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// WriteStatus writes classifier and storage status.
func WriteStatus(w io.Writer, status *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "state:              %s\n", status.State)
	if status.LoadError != "" {
		fmt.Fprintf(w, "load_error:         %s\n", status.LoadError)
	}
	if status.Dimensions > 0 {
		fmt.Fprintf(w, "embedding_dims:     %d\n", status.Dimensions)
	}
	fmt.Fprintf(w, "classified:         %d   # messages in history\n", status.Classified)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # history database on disk\n", *status.DiskUsageBytes)
	}
	if status.Provider != "" || status.WeightsPath != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		if status.Provider != "" {
			fmt.Fprintf(w, "embedding_provider: %s\n", status.Provider)
		}
		if status.WeightsPath != "" {
			fmt.Fprintf(w, "weights_path:       %s\n", status.WeightsPath)
		}
	}
	return nil
}

// WriteDirectories writes the watched mail-drop directories.
func WriteDirectories(w io.Writer, dirs []string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string][]string{"directories": dirs})
	}
	if len(dirs) == 0 {
		fmt.Fprintln(w, "No directories watched.")
		return nil
	}
	for _, d := range dirs {
		fmt.Fprintln(w, d)
	}
	return nil
}

// WriteScan writes per-file outcomes of a directory scan followed by a summary.
func WriteScan(w io.Writer, outcomes []sifter.FileOutcome, format OutputFormat) error {
	if format == OutputJSON {
		if outcomes == nil {
			outcomes = []sifter.FileOutcome{}
		}
		return writeJSON(w, outcomes)
	}
	var spam, ham, failed int
	for _, o := range outcomes {
		if o.Response == nil {
			failed++
			fmt.Fprintf(w, "ERROR           %s: %s\n", o.Path, o.Error)
			continue
		}
		if o.Response.Prediction == "spam" {
			spam++
		} else {
			ham++
		}
		fmt.Fprintf(w, "%-4s  %6.1f%%  %s\n", strings.ToUpper(o.Response.Prediction), o.Response.Confidence*100, o.Path)
	}
	fmt.Fprintf(w, "\n%d messages: %d spam, %d ham, %d failed\n", len(outcomes), spam, ham, failed)
	return nil
}
