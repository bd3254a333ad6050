// Package session implements the daemon's session lifecycle (spec section
// 4.4): launch, attach, keep-alive, reconnect-never, retire.
package session

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomasbasham/devtoolsd/internal/cdp"
	"github.com/tomasbasham/devtoolsd/internal/collector"
	"github.com/tomasbasham/devtoolsd/internal/config"
	"github.com/tomasbasham/devtoolsd/internal/ref"
	"github.com/tomasbasham/devtoolsd/internal/store"
	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// Session is one (browser process, profile directory, storage directory,
// event log, collector set) tuple, per spec section 3.
type Session struct {
	ID        string
	Kind      wire.SessionKind
	Profile   string // empty for ephemeral sessions
	CreatedAt time.Time
	Dir       string

	mu           sync.Mutex
	status       wire.SessionStatus
	lastActivity time.Time
	busySem      chan struct{}

	Transport  *cdp.Transport
	Store      store.Store
	Refs       *ref.Registry
	Collectors *collector.Set
}

// Status returns the session's current lifecycle state under its lock.
func (s *Session) Status() wire.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Touch records activity, refreshing the idle-reap clock.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// AcquireBusy blocks until the exclusive "busy" lock is held, for
// operations that mutate global browser state (trace start/stop,
// emulation, navigation). Concurrent exclusive operations serialize rather
// than fail, per spec section 5. Returns an error if ctx is cancelled first
// or the session is no longer active.
func (s *Session) AcquireBusy(ctx context.Context) error {
	s.mu.Lock()
	if s.status != wire.SessionActive && s.status != wire.SessionBusy {
		s.mu.Unlock()
		return wire.Errorf(wire.CodeSessionGone, nil, "session %s is not active", s.ID)
	}
	s.mu.Unlock()

	select {
	case <-s.busySem:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.status = wire.SessionBusy
	s.mu.Unlock()
	return nil
}

// ReleaseBusy releases the exclusive lock acquired by AcquireBusy.
func (s *Session) ReleaseBusy() {
	s.mu.Lock()
	if s.status == wire.SessionBusy {
		s.status = wire.SessionActive
	}
	s.mu.Unlock()
	s.busySem <- struct{}{}
}

// MarkDetached transitions the session to detached: CDP connection closed,
// browser died, or the reap timer fired with no live pages.
func (s *Session) MarkDetached() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == wire.SessionDestroyed {
		return
	}
	s.status = wire.SessionDetached
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Pool manages the set of live sessions (spec section 4.4).
type Pool struct {
	cfg       *config.Config
	rootDir   string
	configDir string // parent of rootDir; holds session.toml

	mu       sync.Mutex
	sessions map[string]*Session
	byProfile map[string]string // profile path -> session id
	inflight map[string]chan struct{} // (kind,profile) creation barrier

	idleTimeout time.Duration
}

// New creates a Pool rooted at rootDir (spec's "sessions/" parent directory)
// under configDir, the daemon's config directory, where session.toml
// records the current user-profile session's id (spec section 6).
func New(cfg *config.Config, configDir, rootDir string) *Pool {
	return &Pool{
		cfg:         cfg,
		rootDir:     rootDir,
		configDir:   configDir,
		sessions:    make(map[string]*Session),
		byProfile:   make(map[string]string),
		inflight:    make(map[string]chan struct{}),
		idleTimeout: time.Hour,
	}
}

// Acquire returns the existing matching session or creates one, guaranteeing
// at-most-one creation per (kind, profile) under concurrent callers.
func (p *Pool) Acquire(ctx context.Context, kind wire.SessionKind, profile string) (*Session, error) {
	key := string(kind) + "\x00" + profile

	for {
		p.mu.Lock()
		if kind == wire.SessionUserProfile {
			if id, ok := p.byProfile[profile]; ok {
				if sess, ok := p.sessions[id]; ok && sess.Status() != wire.SessionDestroyed {
					p.mu.Unlock()
					sess.Touch()
					return sess, nil
				}
			}
		}
		if wait, inProgress := p.inflight[key]; inProgress {
			p.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		barrier := make(chan struct{})
		p.inflight[key] = barrier
		p.mu.Unlock()

		sess, err := p.create(ctx, kind, profile)

		p.mu.Lock()
		delete(p.inflight, key)
		close(barrier)
		if err == nil {
			p.sessions[sess.ID] = sess
			if kind == wire.SessionUserProfile {
				p.byProfile[profile] = sess.ID
			}
		}
		p.mu.Unlock()

		if err == nil && kind == wire.SessionUserProfile {
			config.SaveSessionPointer(p.configDir, config.SessionPointer{SessionID: sess.ID})
		}

		return sess, err
	}
}

// create runs the creation protocol from spec section 4.4, steps 1-7.
func (p *Pool) create(ctx context.Context, kind wire.SessionKind, profile string) (*Session, error) {
	id := uuid.NewString()
	dir := filepath.Join(p.rootDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wire.Errorf(wire.CodeSessionLaunchFailed, err, "failed to allocate storage directory")
	}

	port, err := pickPort(p.cfg.Server.CDPPortRange)
	if err != nil {
		os.RemoveAll(dir)
		return nil, wire.Errorf(wire.CodeSessionLaunchFailed, err, "failed to allocate a CDP port")
	}

	userDataDir := profile
	if kind == wire.SessionEphemeral {
		userDataDir = filepath.Join(dir, "profile")
	}

	navTimeout := time.Duration(p.cfg.Performance.NavigationTimeoutSeconds) * time.Second
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	launchCtx, cancel := context.WithTimeout(ctx, navTimeout)
	defer cancel()

	transport, err := cdp.New(launchCtx, cdp.Options{
		Port:        port,
		UserDataDir: userDataDir,
		Headless:    p.cfg.Browser.Headless,
	})
	if err != nil {
		os.RemoveAll(dir)
		return nil, wire.Errorf(wire.CodeSessionLaunchFailed, err, "browser did not become ready within %s", navTimeout)
	}

	eventStore, err := store.Open(dir, id)
	if err != nil {
		transport.Close()
		os.RemoveAll(dir)
		return nil, wire.Errorf(wire.CodeSessionLaunchFailed, err, "failed to open event store")
	}

	sess := &Session{
		ID:           id,
		Kind:         kind,
		Profile:      profile,
		CreatedAt:    time.Now(),
		Dir:          dir,
		status:       wire.SessionActive,
		lastActivity: time.Now(),
		busySem:      make(chan struct{}, 1),
		Transport:    transport,
		Store:        eventStore,
		Refs:         ref.NewRegistry(),
	}
	sess.busySem <- struct{}{}

	sess.Collectors = collector.Attach(transport, eventStore, collector.Options{
		MaxInFlightRequests: 5000,
		MaxQueueDepth:       10000,
	})

	return sess, nil
}

// Lookup returns the session with the given id, or nil.
func (p *Pool) Lookup(id string) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[id]
}

// AcquireUserProfile returns the daemon's single persistent user-profile
// session, creating it against the configured browser.user_data_dir if none
// exists yet (spec section 4.6's "create if absent" acquisition rule; also
// dtctl's --user-profile flag help).
func (p *Pool) AcquireUserProfile(ctx context.Context) (*Session, error) {
	return p.Acquire(ctx, wire.SessionUserProfile, p.cfg.Browser.UserDataDir)
}

// SoleUserProfile returns the single user-profile session, if exactly one
// exists. Per spec's open question, this method only reports; it never
// creates a session.
func (p *Pool) SoleUserProfile() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sess := range p.sessions {
		if sess.Kind == wire.SessionUserProfile {
			return sess
		}
	}
	return nil
}

// UserProfilePointer returns the session id session.toml records as the
// current user-profile session, if any. It does not imply that session is
// still active: per spec's open question, session-info must be able to
// report a detached session recovered from disk, not just a live one.
func (p *Pool) UserProfilePointer() (string, bool, error) {
	ptr, err := config.LoadSessionPointer(p.configDir)
	if err != nil {
		return "", false, err
	}
	return ptr.SessionID, ptr.SessionID != "", nil
}

// Release destroys a session: closes CDP, kills the browser, detaches
// collectors, closes the store, removes transient files. Idempotent.
func (p *Pool) Release(id string) error {
	p.mu.Lock()
	sess, ok := p.sessions[id]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	delete(p.sessions, id)
	if sess.Kind == wire.SessionUserProfile {
		delete(p.byProfile, sess.Profile)
	}
	p.mu.Unlock()

	return destroy(sess)
}

func destroy(sess *Session) error {
	sess.mu.Lock()
	if sess.status == wire.SessionDestroyed {
		sess.mu.Unlock()
		return nil
	}
	sess.status = wire.SessionDestroyed
	sess.mu.Unlock()

	if sess.Collectors != nil {
		sess.Collectors.Detach()
	}
	if sess.Transport != nil {
		sess.Transport.Close()
	}
	if sess.Store != nil {
		sess.Store.Close()
	}
	return nil
}

// Reap destroys sessions whose last-activity exceeds the idle timeout.
func (p *Pool) Reap() {
	cutoff := time.Now().Add(-p.idleTimeout)

	p.mu.Lock()
	var stale []string
	for id, sess := range p.sessions {
		if sess.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	p.mu.Unlock()

	for _, id := range stale {
		p.Release(id)
	}
}

// RunReaper runs Reap on a ticker until ctx is cancelled.
func (p *Pool) RunReaper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			p.Reap()
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown destroys every session, used on daemon termination.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	ids := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.Release(id)
	}
}

// RecoverOrphans scans rootDir on daemon startup for session directories
// left behind by a previous process and marks them detached so their
// stores remain queryable (spec section 5, Startup/shutdown).
func (p *Pool) RecoverOrphans() error {
	entries, err := os.ReadDir(p.rootDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: failed to scan %q: %w", p.rootDir, err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		dir := filepath.Join(p.rootDir, id)
		eventStore, err := store.Open(dir, id)
		if err != nil {
			continue
		}
		sess := &Session{
			ID:      id,
			Dir:     dir,
			status:  wire.SessionDetached,
			busySem: make(chan struct{}, 1),
			Store:   eventStore,
			Refs:    ref.NewRegistry(),

			// Start the idle clock now, so the first reap does not
			// destroy the recovered session straight away.
			lastActivity: time.Now(),
		}
		sess.busySem <- struct{}{}
		p.mu.Lock()
		p.sessions[id] = sess
		p.mu.Unlock()
	}
	return nil
}

// pickPort scans a "lo-hi" range for the first free TCP port.
func pickPort(rangeSpec string) (int, error) {
	lo, hi, err := parseRange(rangeSpec)
	if err != nil {
		return 0, err
	}
	for port := lo; port <= hi; port++ {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		l, err := net.Listen("tcp", addr)
		if err != nil {
			continue
		}
		l.Close()
		return port, nil
	}
	return 0, fmt.Errorf("session: no free port in range %d-%d", lo, hi)
}

func parseRange(spec string) (int, int, error) {
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("session: invalid port range %q", spec)
	}
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("session: invalid port range %q: %w", spec, err)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("session: invalid port range %q: %w", spec, err)
	}
	return lo, hi, nil
}
