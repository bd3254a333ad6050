package daemoncmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"
	"github.com/tomasbasham/devtoolsd/internal/config"
	"github.com/tomasbasham/devtoolsd/internal/daemon"
)

// ServeOptions carries the `serve` command's flags (spec section 6).
type ServeOptions struct {
	ConfigDir      string
	HTTPAddr       string
	ReapInterval   time.Duration
	RequestTimeout time.Duration
}

var (
	serveLong = templates.LongDesc(`
		Start devtoolsd: recover any sessions orphaned by a previous process,
		then listen on the control socket (dtctl's transport) and the
		extension gateway (the loopback HTTP/WebSocket surface the browser
		extension talks to) until interrupted.`)

	serveExample = templates.Examples(`
		# Start with defaults
		devtoolsd serve

		# Bind the extension gateway to a non-default port
		devtoolsd serve --http 127.0.0.1:9333`)
)

// NewServeOptions provides an initialised ServeOptions instance.
func NewServeOptions() *ServeOptions {
	return &ServeOptions{}
}

// NewServeCommand implements spec section 5's startup sequence as a leaf
// command, in the teacher's Options/Complete/Validate/Run idiom.
func NewServeCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the devtoolsd daemon",
		Long:    serveLong,
		Example: serveExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run()
		},
	}

	cmd.Flags().StringVar(&o.ConfigDir, "config-dir", "", "Override the daemon's config directory (default: $DEVTOOLSD_HOME or the OS user-config directory)")
	cmd.Flags().StringVar(&o.HTTPAddr, "http", "127.0.0.1:9222", "Address the extension gateway listens on")
	cmd.Flags().DurationVar(&o.ReapInterval, "reap-interval", time.Minute, "How often to check for idle sessions to release")
	cmd.Flags().DurationVar(&o.RequestTimeout, "request-timeout", 30*time.Second, "Per-request deadline for control-socket commands")

	return cmd
}

func (o *ServeOptions) Complete(cmd *cobra.Command, args []string) error {
	if o.ConfigDir == "" {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		o.ConfigDir = dir
	}
	return nil
}

func (o *ServeOptions) Validate() error {
	return nil
}

func (o *ServeOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(daemon.Options{
		ConfigDir:      o.ConfigDir,
		HTTPAddr:       o.HTTPAddr,
		ReapInterval:   o.ReapInterval,
		RequestTimeout: o.RequestTimeout,
		Version:        version,
	})
	if err != nil {
		return err
	}

	return d.Run(ctx)
}
