package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"
)

// NewSessionInfoCommand implements spec section 4.6's open question on
// session-info: it merely reports whether a session exists and its current
// status, never creating one, unlike every other --user-profile command.
func NewSessionInfoCommand(o *DevtoolsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session-info",
		Short: "Report whether a session exists, without creating one",
		Long: templates.LongDesc(`
			Report a session's existence and lifecycle status (active, busy,
			detached, or none) by --session id or --user-profile. Unlike every
			other command, this never acquires or creates a session.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := callMethod(o, "session.info", map[string]any{})
			if err != nil {
				return err
			}
			printResult(o, result, func(raw []byte) string {
				var r struct {
					Exists    bool   `json:"exists"`
					SessionID string `json:"session_id"`
					Status    string `json:"status"`
				}
				if err := json.Unmarshal(raw, &r); err != nil {
					return string(raw)
				}
				if !r.Exists {
					return "no matching session"
				}
				if r.Status == "" {
					return fmt.Sprintf("%s: recovered from disk, status unknown (daemon restarted)", r.SessionID)
				}
				return fmt.Sprintf("%s: %s", r.SessionID, r.Status)
			})
			return nil
		},
	}
	return cmd
}
