package assignctl

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// Printer renders API responses in the selected format.
type Printer struct {
	w      io.Writer
	format string
}

func NewPrinter(w io.Writer, format string) (*Printer, error) {
	switch strings.ToLower(format) {
	case OutputTable, OutputJSON, OutputYAML:
		return &Printer{w: w, format: strings.ToLower(format)}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (table, json, yaml)", format)
	}
}

// Print writes v as JSON or YAML, or calls table for the table format.
func (p *Printer) Print(v any, table func(tw *tabwriter.Writer)) error {
	switch p.format {
	case OutputJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML:
		// Round-trip through JSON so YAML keys match the API field names.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

// colorStatus highlights batch statuses, classifications and dispatch results.
func colorStatus(status string) string {
	switch status {
	case "completed", "added", "triggered":
		return green(status)
	case "failed", "error", "trigger_failed":
		return red(status)
	case "paused", "cancelled", "skipped_duplicate", "skipped_klant", "skipped_ai_error":
		return yellow(status)
	case "processing", "pending":
		return cyan(status)
	default:
		return status
	}
}
