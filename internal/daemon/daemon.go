// Package daemon wires together the daemon's components (spec section 5):
// config, the session pool, the RPC dispatcher, the extension gateway, the
// idle reaper, and graceful shutdown. It plays the role the teacher's
// internal/server package played for a single HTTP listener, generalised to
// the daemon's two listeners (control socket + extension gateway) plus its
// background reaper goroutine.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tomasbasham/devtoolsd/internal/config"
	"github.com/tomasbasham/devtoolsd/internal/gateway"
	"github.com/tomasbasham/devtoolsd/internal/handlers"
	"github.com/tomasbasham/devtoolsd/internal/rpc"
	"github.com/tomasbasham/devtoolsd/internal/session"
	"github.com/tomasbasham/devtoolsd/internal/storage"
)

// Options configures a daemon run, mirroring the recognised config.toml
// keys (spec section 6) plus the flags `devtoolsd serve` exposes directly.
type Options struct {
	ConfigDir      string
	HTTPAddr       string
	ReapInterval   time.Duration
	RequestTimeout time.Duration
	Version        string

	// Logger receives the daemon's structured lifecycle log lines, in the
	// teacher's style of a single injected *log.Logger rather than a global.
	Logger *log.Logger
}

// Daemon owns the running pool, dispatcher, and gateway for one devtoolsd
// process.
type Daemon struct {
	opts Options
	cfg  *config.Config
	pool *session.Pool
	disp *rpc.Dispatcher
	gw   *gateway.Gateway

	socketPath string
}

// New loads config.toml from opts.ConfigDir, recovers any orphaned sessions
// left by a previous process, and assembles the dispatcher and gateway. It
// does not start listening; call Run for that.
func New(opts Options) (*Daemon, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "devtoolsd: ", log.LstdFlags)
	}
	if opts.ReapInterval <= 0 {
		opts.ReapInterval = time.Minute
	}
	if opts.HTTPAddr == "" {
		opts.HTTPAddr = "127.0.0.1:9222"
	}

	cfg, err := config.Load(filepath.Join(opts.ConfigDir, "config.toml"))
	if err != nil {
		return nil, err
	}

	sessionsDir := filepath.Join(opts.ConfigDir, "sessions")
	pool := session.New(cfg, opts.ConfigDir, sessionsDir)
	if err := pool.RecoverOrphans(); err != nil {
		return nil, fmt.Errorf("daemon: failed to recover orphaned sessions: %w", err)
	}

	disp := rpc.New(pool, opts.RequestTimeout)
	handlers.Register(disp)
	handlers.RegisterIntrospection(disp, pool, opts.Version)

	uploader, err := newUploader(cfg, opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	handlers.Configure(uploader)

	gw := gateway.New(pool, 1000)

	return &Daemon{
		opts:       opts,
		cfg:        cfg,
		pool:       pool,
		disp:       disp,
		gw:         gw,
		socketPath: filepath.Join(opts.ConfigDir, "devtoolsd.sock"),
	}, nil
}

// newUploader builds the configured storage.Uploader. A gcs_bucket config
// key selects GCSUploader; otherwise archival falls back to a LocalUploader
// under ConfigDir/artifacts (spec section 4.9), keeping the --archive flag
// usable even without cloud credentials configured.
func newUploader(cfg *config.Config, configDir string) (storage.Uploader, error) {
	if cfg.Storage.GCSBucket != "" {
		uploader, err := storage.NewGCSUploader(context.Background(), cfg.Storage.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("daemon: failed to initialise GCS uploader: %w", err)
		}
		return uploader, nil
	}
	uploader, err := storage.NewLocalUploader(filepath.Join(configDir, "artifacts"))
	if err != nil {
		return nil, fmt.Errorf("daemon: failed to initialise local uploader: %w", err)
	}
	return uploader, nil
}

// Run starts the control socket and extension gateway, and the idle
// reaper, blocking until ctx is cancelled. On cancellation it stops
// accepting new work on both listeners, gives the gateway up to 5s to drain
// in-flight HTTP requests (in-flight control-socket requests have their
// context cancelled instead), then releases every session (spec section 5,
// Startup/shutdown).
func (d *Daemon) Run(ctx context.Context) error {
	if err := os.MkdirAll(d.opts.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("daemon: failed to create config dir: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.opts.Logger.Printf("control socket listening on %s", d.socketPath)
		if err := d.disp.ListenAndServe(runCtx, d.socketPath); err != nil {
			errCh <- fmt.Errorf("rpc: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.opts.Logger.Printf("extension gateway listening on %s", d.opts.HTTPAddr)
		if err := d.gw.ListenAndServe(runCtx, d.opts.HTTPAddr); err != nil {
			errCh <- fmt.Errorf("gateway: %w", err)
		}
	}()

	go d.pool.RunReaper(runCtx, d.opts.ReapInterval)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		wg.Wait()
		d.pool.Shutdown()
		return err
	}

	cancel()
	wg.Wait()
	d.opts.Logger.Printf("shutting down, releasing sessions")
	d.pool.Shutdown()
	os.Remove(d.socketPath)
	return nil
}
