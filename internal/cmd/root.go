// Package cmd implements dtctl, the command-line client for devtoolsd (spec
// section 6's CLI surface). Every leaf command opens the daemon's local
// control socket, sends one framed request, prints the result, and maps the
// daemon's error code to a process exit code. Argument parsing and terminal
// formatting are themselves out of scope for the daemon's correctness
// requirements (spec.md §1) but are still written in the teacher's idiom:
// a shared DevtoolsOptions struct, cobra.Command, and
// cli-runtime's templates/iooption/printer helpers.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"
)

var (
	rootLong = templates.LongDesc(`
		dtctl drives a running devtoolsd daemon: navigate, click, fill forms,
		capture screenshots, describe a page's interactable elements, trace
		performance, and query a session's recorded history.`)

	rootExamples = templates.Examples(`
		# Navigate the user-profile session to a URL
		dtctl navigate --user-profile https://example.test/

		# Click an element discovered by describe
		dtctl describe --interactable
		dtctl click --ref i0`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// DevtoolsOptions carries the flags shared by every dtctl leaf command.
type DevtoolsOptions struct {
	iooption.IOStreams

	JSON        bool
	UserProfile bool
	SessionID   string
	Timeout     time.Duration
}

// NewDevtoolsOptions provides an initialised DevtoolsOptions instance.
func NewDevtoolsOptions(streams iooption.IOStreams) *DevtoolsOptions {
	return &DevtoolsOptions{IOStreams: streams}
}

// NewRootCommand creates the `dtctl` command with default arguments.
func NewRootCommand() *cobra.Command {
	options := NewDevtoolsOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	return NewRootCommandWithArgs(options)
}

// NewRootCommandWithArgs creates the `dtctl` command and its nested
// children, all sharing o for target-selection and output flags.
func NewRootCommandWithArgs(o *DevtoolsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "dtctl [command]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "Control a running devtoolsd browser-automation daemon",
		Long:                  rootLong,
		Example:               rootExamples,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}

	printerOpts := printer.WarningPrinterOptions{Color: true}
	warn := printer.NewWarningPrinter(o.ErrOut, printerOpts)
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(warn))

	pflags := cmd.PersistentFlags()
	pflags.BoolVar(&o.JSON, "json", false, "Emit structured JSON output instead of formatted text")
	pflags.BoolVar(&o.UserProfile, "user-profile", false, "Target the single persistent user-profile session, creating it if absent")
	pflags.StringVar(&o.SessionID, "session", "", "Target a specific session id")
	pflags.DurationVar(&o.Timeout, "timeout", 30*time.Second, "Per-request deadline")

	cmd.AddCommand(NewNavigateCommand(o))
	cmd.AddCommand(NewClickCommand(o))
	cmd.AddCommand(NewHoverCommand(o))
	cmd.AddCommand(NewScrollCommand(o))
	cmd.AddCommand(NewFillCommand(o))
	cmd.AddCommand(NewTypeCommand(o))
	cmd.AddCommand(NewSelectCommand(o))
	cmd.AddCommand(NewPressCommand(o))
	cmd.AddCommand(NewScreenshotCommand(o))
	cmd.AddCommand(NewDescribeCommand(o))
	cmd.AddCommand(NewA11yCommand(o))
	cmd.AddCommand(NewTraceCommand(o))
	cmd.AddCommand(NewHistoryCommand(o))
	cmd.AddCommand(NewAnalyzeCommand(o))
	cmd.AddCommand(NewSessionInfoCommand(o))

	// The global normalisation function ensures that all flags specified meet
	// the desired format, changing users' input if necessary.
	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}
