package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"
)

// historyFilterOptions mirrors internal/handlers' historyParams flag surface
// (spec section 4.8).
type historyFilterOptions struct {
	Last   string
	Type   string
	Domain string
	Status int
	Level  string
	Limit  int
	Offset int
}

func (f historyFilterOptions) params() map[string]any {
	return map[string]any{
		"last":   f.Last,
		"type":   f.Type,
		"domain": f.Domain,
		"status": f.Status,
		"level":  f.Level,
		"limit":  f.Limit,
		"offset": f.Offset,
	}
}

func addHistoryFilterFlags(cmd *cobra.Command, f *historyFilterOptions, withType bool) {
	cmd.Flags().StringVar(&f.Last, "last", "", "Only events recorded within this duration, e.g. 10m")
	if withType {
		cmd.Flags().StringVar(&f.Type, "type", "", "Only events of this type")
	}
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Maximum number of events to return (0 = unlimited)")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "Number of matching events to skip")
}

func printEvents(o *DevtoolsOptions, result json.RawMessage) {
	printResult(o, result, func(raw []byte) string {
		var r struct {
			Events []json.RawMessage `json:"events"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return string(raw)
		}
		out := ""
		for _, e := range r.Events {
			out += string(e) + "\n"
		}
		return out
	})
}

// NewHistoryCommand groups the session-history query operations from spec
// section 4.8: events, network, console, and export.
func NewHistoryCommand(o *DevtoolsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query a session's recorded event history",
		Long:  templates.LongDesc(`Query the append-only event log a session records as it is driven (spec section 4.3).`),
	}
	cmd.AddCommand(newHistoryEventsCommand(o))
	cmd.AddCommand(newHistoryNetworkCommand(o))
	cmd.AddCommand(newHistoryConsoleCommand(o))
	cmd.AddCommand(newHistoryExportCommand(o))
	return cmd
}

func newHistoryEventsCommand(o *DevtoolsOptions) *cobra.Command {
	var f historyFilterOptions
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List every recorded event, optionally filtered by type",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := callMethod(o, "history.events", f.params())
			if err != nil {
				return err
			}
			printEvents(o, result)
			return nil
		},
	}
	addHistoryFilterFlags(cmd, &f, true)
	return cmd
}

func newHistoryNetworkCommand(o *DevtoolsOptions) *cobra.Command {
	var f historyFilterOptions
	cmd := &cobra.Command{
		Use:   "network",
		Short: "List recorded network request/response events",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := f.params()
			result, err := callMethod(o, "history.network", params)
			if err != nil {
				return err
			}
			printEvents(o, result)
			return nil
		},
	}
	addHistoryFilterFlags(cmd, &f, false)
	cmd.Flags().StringVar(&f.Domain, "domain", "", "Only requests to this host")
	cmd.Flags().IntVar(&f.Status, "status", 0, "Only responses with this HTTP status code")
	return cmd
}

func newHistoryConsoleCommand(o *DevtoolsOptions) *cobra.Command {
	var f historyFilterOptions
	cmd := &cobra.Command{
		Use:   "console",
		Short: "List recorded console and uncaught-error events",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := callMethod(o, "history.console", f.params())
			if err != nil {
				return err
			}
			printEvents(o, result)
			return nil
		},
	}
	addHistoryFilterFlags(cmd, &f, false)
	cmd.Flags().StringVar(&f.Level, "level", "", "Only messages at this console level, e.g. warning or error")
	return cmd
}

func newHistoryExportCommand(o *DevtoolsOptions) *cobra.Command {
	var f historyFilterOptions
	var format string
	var archive bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Convert a session's recorded events into a replayable script",
		Long:  templates.LongDesc(`Export the recorded interaction/navigation history as a Playwright script (internal/export).`),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := f.params()
			params["format"] = format
			params["archive"] = archive
			result, err := callMethod(o, "history.export", params)
			if err != nil {
				return err
			}
			printResult(o, result, func(raw []byte) string {
				var r struct {
					Script     string `json:"script"`
					ArchiveURL string `json:"archive_url"`
				}
				if err := json.Unmarshal(raw, &r); err != nil {
					return string(raw)
				}
				out := r.Script
				if r.ArchiveURL != "" {
					out += fmt.Sprintf("\n// archived at %s\n", r.ArchiveURL)
				}
				return out
			})
			return nil
		},
	}
	addHistoryFilterFlags(cmd, &f, true)
	cmd.Flags().StringVar(&format, "format", "playwright", "Export format (only playwright is currently supported)")
	cmd.Flags().BoolVar(&archive, "archive", false, "Additionally upload the script via the configured storage backend")
	return cmd
}

// NewAnalyzeCommand implements spec section 4.8's analyze(trace) operation.
func NewAnalyzeCommand(o *DevtoolsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [TRACE-FILE]",
		Short: "Compute Core Web Vitals from a recorded trace file",
		Long:  templates.LongDesc(`Parse a trace's NDJSON artifact and report LCP/CLS/TTFB ratings (internal/analyze).`),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := callMethod(o, "analyze", map[string]any{"trace": args[0]})
			if err != nil {
				return err
			}
			printResult(o, result, func(raw []byte) string {
				var r struct {
					Metrics []struct {
						Name   string  `json:"metric"`
						Value  float64 `json:"value"`
						Rating string  `json:"grade"`
					} `json:"metrics"`
				}
				if err := json.Unmarshal(raw, &r); err != nil {
					return string(raw)
				}
				out := ""
				for _, m := range r.Metrics {
					out += fmt.Sprintf("%-6s %10.2f  %s\n", m.Name, m.Value, m.Rating)
				}
				return out
			})
			return nil
		},
	}
	return cmd
}
