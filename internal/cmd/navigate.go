package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"
)

// NavigateOptions carries the `navigate` command's flags.
type NavigateOptions struct {
	*DevtoolsOptions

	URL     string
	WaitFor string
}

var navigateExample = templates.Examples(`
	# Navigate the user-profile session to example.test
	dtctl navigate --user-profile https://example.test/

	# Navigate and wait for network idle
	dtctl navigate --wait-for network-idle https://example.test/`)

// NewNavigateCommand implements spec section 4.8's navigate(url, wait_for?)
// operation as a leaf command.
func NewNavigateCommand(o *DevtoolsOptions) *cobra.Command {
	opts := &NavigateOptions{DevtoolsOptions: o}

	cmd := &cobra.Command{
		Use:                   "navigate [URL]",
		DisableFlagsInUseLine: true,
		Short:                 "Navigate the active page to a URL",
		Long:                  templates.LongDesc(`Navigate the session's active page and await the requested readiness condition.`),
		Example:               navigateExample,
		Args:                  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.URL = args[0]
			return opts.Run()
		},
	}

	cmd.Flags().StringVar(&opts.WaitFor, "wait-for", "load", "Readiness condition: load, domcontentloaded, a selector, or network-idle")

	return cmd
}

func (o *NavigateOptions) Run() error {
	result, err := callMethod(o.DevtoolsOptions, "navigate", map[string]any{
		"url":      o.URL,
		"wait_for": o.WaitFor,
	})
	if err != nil {
		return err
	}
	printResult(o.DevtoolsOptions, result, func(raw []byte) string {
		var r struct {
			FinalURL string `json:"final_url"`
			Status   int    `json:"status"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return string(raw)
		}
		return fmt.Sprintf("navigated to %s (status %d)", r.FinalURL, r.Status)
	})
	return nil
}
