package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"
)

// targetOptions carries the --selector/--ref precedence pair spec section
// 4.6 defines: a non-empty --selector always wins over --ref.
type targetOptions struct {
	Selector string
	Ref      string
}

func (t targetOptions) params() map[string]any {
	return map[string]any{"selector": t.Selector, "ref": t.Ref}
}

func addTargetFlags(cmd *cobra.Command, t *targetOptions) {
	cmd.Flags().StringVar(&t.Selector, "selector", "", "CSS selector for the target element")
	cmd.Flags().StringVar(&t.Ref, "ref", "", "Element ref id from a prior describe, e.g. i0")
}

// runSimple calls method with base merged into the target params, printing
// the raw JSON result as a one-line summary in text mode.
func runSimple(o *DevtoolsOptions, method string, base map[string]any, summary string) error {
	result, err := callMethod(o, method, base)
	if err != nil {
		return err
	}
	printResult(o, result, func(raw []byte) string {
		return fmt.Sprintf("%s: %s", summary, string(raw))
	})
	return nil
}

// NewClickCommand implements spec section 4.8's click operation.
func NewClickCommand(o *DevtoolsOptions) *cobra.Command {
	var t targetOptions
	cmd := &cobra.Command{
		Use:   "click",
		Short: "Click an element",
		Long:  templates.LongDesc(`Resolve a target element and dispatch a click event.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimple(o, "click", t.params(), "clicked")
		},
	}
	addTargetFlags(cmd, &t)
	return cmd
}

// NewHoverCommand implements spec section 4.8's hover operation.
func NewHoverCommand(o *DevtoolsOptions) *cobra.Command {
	var t targetOptions
	cmd := &cobra.Command{
		Use:   "hover",
		Short: "Hover over an element",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimple(o, "hover", t.params(), "hovered")
		},
	}
	addTargetFlags(cmd, &t)
	return cmd
}

// NewScrollCommand implements spec section 4.8's scroll operation.
func NewScrollCommand(o *DevtoolsOptions) *cobra.Command {
	var t targetOptions
	var deltaX, deltaY float64
	cmd := &cobra.Command{
		Use:   "scroll",
		Short: "Scroll an element or the page into view",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := t.params()
			params["delta_x"] = deltaX
			params["delta_y"] = deltaY
			return runSimple(o, "scroll", params, "scrolled")
		},
	}
	addTargetFlags(cmd, &t)
	cmd.Flags().Float64Var(&deltaX, "delta-x", 0, "Horizontal scroll delta in pixels")
	cmd.Flags().Float64Var(&deltaY, "delta-y", 0, "Vertical scroll delta in pixels")
	return cmd
}

// NewFillCommand implements spec section 4.8's fill operation.
func NewFillCommand(o *DevtoolsOptions) *cobra.Command {
	var t targetOptions
	var value string
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Focus a form field and replace its value",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := t.params()
			params["value"] = value
			return runSimple(o, "fill", params, "filled")
		},
	}
	addTargetFlags(cmd, &t)
	cmd.Flags().StringVar(&value, "value", "", "Value to set")
	return cmd
}

// NewTypeCommand implements spec section 4.8's type operation.
func NewTypeCommand(o *DevtoolsOptions) *cobra.Command {
	var t targetOptions
	var text string
	var delayMS int
	cmd := &cobra.Command{
		Use:   "type",
		Short: "Focus a field and emit per-character key events",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := t.params()
			params["text"] = text
			params["delay_ms"] = delayMS
			return runSimple(o, "type", params, "typed")
		},
	}
	addTargetFlags(cmd, &t)
	cmd.Flags().StringVar(&text, "text", "", "Text to type")
	cmd.Flags().IntVar(&delayMS, "delay", 0, "Delay between keystrokes, in milliseconds")
	return cmd
}

// NewSelectCommand implements spec section 4.8's select operation.
func NewSelectCommand(o *DevtoolsOptions) *cobra.Command {
	var t targetOptions
	var label, value string
	var index int
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Choose an option in a <select> element",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := t.params()
			if label != "" {
				params["label"] = label
			}
			if value != "" {
				params["value"] = value
			}
			if cmd.Flags().Changed("index") {
				params["index"] = index
			}
			return runSimple(o, "select", params, "selected")
		},
	}
	addTargetFlags(cmd, &t)
	cmd.Flags().StringVar(&label, "label", "", "Option label to select")
	cmd.Flags().StringVar(&value, "value", "", "Option value to select")
	cmd.Flags().IntVar(&index, "index", 0, "Option index to select")
	return cmd
}

// NewPressCommand implements spec section 4.8's press(key) operation.
func NewPressCommand(o *DevtoolsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "press [KEY]",
		Short: "Dispatch a named key press (Enter, Tab, Escape, a printable character, or Ctrl+K-style combos)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimple(o, "press", map[string]any{"key": args[0]}, "pressed")
		},
	}
	return cmd
}
