package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// NewScreenshotCommand implements spec section 4.8's screenshot operation.
func NewScreenshotCommand(o *DevtoolsOptions) *cobra.Command {
	var t targetOptions
	var fullPage bool
	var format string
	var quality int

	cmd := &cobra.Command{
		Use:   "screenshot",
		Short: "Capture a screenshot of the page or an element",
		Long:  templates.LongDesc(`Capture a PNG/JPEG/WebP screenshot, optionally clipped to a selector or full-page.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := t.params()
			params["full_page"] = fullPage
			params["format"] = format
			params["quality"] = quality
			result, err := callMethod(o, "screenshot", params)
			if err != nil {
				return err
			}
			printResult(o, result, func(raw []byte) string {
				var r struct {
					Path string `json:"path"`
				}
				if err := json.Unmarshal(raw, &r); err != nil {
					return string(raw)
				}
				return fmt.Sprintf("screenshot written to %s", r.Path)
			})
			return nil
		},
	}
	addTargetFlags(cmd, &t)
	cmd.Flags().BoolVar(&fullPage, "full-page", false, "Capture the full CSS layout size rather than just the viewport")
	cmd.Flags().StringVar(&format, "format", "png", "Image format: png, jpeg, or webp")
	cmd.Flags().IntVar(&quality, "quality", 90, "Image quality 1-100 (jpeg/webp only)")
	return cmd
}

// NewDescribeCommand implements spec section 4.8's describe operation.
func NewDescribeCommand(o *DevtoolsOptions) *cobra.Command {
	var interactive, form, navigation, media, text, container bool
	var limit int
	var withBounds, withSelectors bool

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Enumerate the page's interactable elements and assign ref ids",
		Long:  templates.LongDesc(`List interactable/form/navigation/media/text/container elements, assigning each a stable ref id for later --ref targeting.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filters []string
			if interactive {
				filters = append(filters, "interactive")
			}
			if form {
				filters = append(filters, "form")
			}
			if navigation {
				filters = append(filters, "navigation")
			}
			if media {
				filters = append(filters, "media")
			}
			if text {
				filters = append(filters, "text")
			}
			if container {
				filters = append(filters, "container")
			}

			result, err := callMethod(o, "describe", map[string]any{
				"filters":        filters,
				"limit":          limit,
				"with_bounds":    withBounds,
				"with_selectors": withSelectors,
			})
			if err != nil {
				return err
			}
			printResult(o, result, func(raw []byte) string {
				var r struct {
					Elements []struct {
						Ref   string `json:"ref"`
						Role  string `json:"role"`
						Label string `json:"label"`
						Text  string `json:"text"`
					} `json:"elements"`
				}
				if err := json.Unmarshal(raw, &r); err != nil {
					return string(raw)
				}
				var out string
				for _, e := range r.Elements {
					out += fmt.Sprintf("%-4s %-10s %s\n", e.Ref, e.Role, firstNonEmpty(e.Label, e.Text))
				}
				return out
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&interactive, "interactable", false, "Include interactable elements (buttons, links, ...)")
	cmd.Flags().BoolVar(&form, "form", false, "Include form fields")
	cmd.Flags().BoolVar(&navigation, "navigation", false, "Include navigation links")
	cmd.Flags().BoolVar(&media, "media", false, "Include media elements")
	cmd.Flags().BoolVar(&text, "text", false, "Include text elements")
	cmd.Flags().BoolVar(&container, "container", false, "Include container elements")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of elements to return")
	cmd.Flags().BoolVar(&withBounds, "with-bounds", false, "Include each element's bounding box")
	cmd.Flags().BoolVar(&withSelectors, "with-selectors", false, "Include each element's resolved CSS selector")
	return cmd
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NewA11yCommand implements spec section 4.8's a11y(depth?, interactable?) operation.
func NewA11yCommand(o *DevtoolsOptions) *cobra.Command {
	var depth int
	var interactable bool
	cmd := &cobra.Command{
		Use:   "a11y",
		Short: "Render the page's accessibility tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := callMethod(o, "a11y", map[string]any{
				"depth":        depth,
				"interactable": interactable,
			})
			if err != nil {
				return err
			}
			printResult(o, result, nil)
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "Maximum tree depth to render (0 = default of 10)")
	cmd.Flags().BoolVar(&interactable, "interactable", false, "Prune to interactable nodes only")
	return cmd
}

// NewTraceCommand implements spec section 4.8's trace(url, out) operation.
func NewTraceCommand(o *DevtoolsOptions) *cobra.Command {
	var out string
	var archive bool
	cmd := &cobra.Command{
		Use:   "trace [URL]",
		Short: "Record a performance trace while navigating to URL",
		Long:  templates.LongDesc(`Start a trace, navigate to URL, await load, stop the trace, and write the NDJSON artifact to --out.`),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return newExitError(wire.CodeInvalidParams, "--out is required")
			}
			result, err := callMethod(o, "trace", map[string]any{
				"url":     args[0],
				"out":     out,
				"archive": archive,
			})
			if err != nil {
				return err
			}
			printResult(o, result, func(raw []byte) string {
				var r struct {
					Path       string `json:"path"`
					EventCount int    `json:"event_count"`
				}
				if err := json.Unmarshal(raw, &r); err != nil {
					return string(raw)
				}
				return fmt.Sprintf("trace written to %s (%d events)", r.Path, r.EventCount)
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Path to write the trace NDJSON artifact")
	cmd.Flags().BoolVar(&archive, "archive", false, "Additionally upload the artifact via the configured storage backend")
	return cmd
}
