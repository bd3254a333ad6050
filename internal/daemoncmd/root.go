// Package daemoncmd implements devtoolsd's command surface: a single
// `serve` subcommand, built in the teacher's Options/Complete/Validate/Run
// idiom from internal/cmd/serve.go, generalised from the teacher's one-shot
// HAR capture HTTP server to the daemon's persistent session pool, control
// socket, and extension gateway (spec section 5).
package daemoncmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"
)

var (
	version = ""
	commit  = ""
)

// NewRootCommand creates the `devtoolsd` command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "devtoolsd",
		Version:       versionInfo(),
		Short:         "A local browser-automation daemon controlling Chrome via CDP",
		Long:          templates.LongDesc(`devtoolsd launches and supervises Chrome sessions, recording every interaction and exposing them over a control socket and an extension-facing HTTP/WebSocket gateway (spec section 1-5).`),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.AddCommand(NewServeCommand(NewServeOptions()))
	return cmd
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}
