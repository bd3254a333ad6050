// Package config loads the daemon's config.toml and tracks the current
// user-profile session pointer in session.toml, both under the user's
// config directory as laid out in spec section 6.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DialogBehavior is the default policy for unhandled JS dialogs.
type DialogBehavior string

const (
	DialogDismiss DialogBehavior = "dismiss"
	DialogAccept  DialogBehavior = "accept"
	DialogNone    DialogBehavior = "none"
)

// Config mirrors the recognised keys in spec section 6, field-for-field.
type Config struct {
	Browser struct {
		Headless     bool   `toml:"headless"`
		Port         int    `toml:"port"`
		UserDataDir  string `toml:"user_data_dir"`
	} `toml:"browser"`

	Performance struct {
		NavigationTimeoutSeconds int `toml:"navigation_timeout_seconds"`
	} `toml:"performance"`

	Output struct {
		DefaultScreenshotFormat string `toml:"default_screenshot_format"`
		ScreenshotQuality       int    `toml:"screenshot_quality"`
	} `toml:"output"`

	Server struct {
		CDPPortRange string `toml:"cdp_port_range"`
		HTTPPortRange string `toml:"http_port_range"`
		WSPortRange   string `toml:"ws_port_range"`
	} `toml:"server"`

	Filters struct {
		NetworkExcludeTypes   []string `toml:"network_exclude_types"`
		NetworkExcludeDomains []string `toml:"network_exclude_domains"`
		ConsoleLevels         []string `toml:"console_levels"`
		NetworkMaxBodySize    int64    `toml:"network_max_body_size"`
	} `toml:"filters"`

	Dialog struct {
		Behavior DialogBehavior `toml:"behavior"`
	} `toml:"dialog"`

	Storage struct {
		GCSBucket string `toml:"gcs_bucket"`
	} `toml:"storage"`
}

// Default returns a Config populated with the daemon's built-in defaults,
// applied before any config.toml on disk is merged in.
func Default() *Config {
	c := &Config{}
	c.Browser.Headless = true
	c.Browser.Port = 9222
	c.Performance.NavigationTimeoutSeconds = 30
	c.Output.DefaultScreenshotFormat = "png"
	c.Output.ScreenshotQuality = 90
	c.Server.CDPPortRange = "9222-9299"
	c.Server.HTTPPortRange = "9300-9399"
	c.Server.WSPortRange = "9400-9499"
	c.Dialog.Behavior = DialogDismiss
	return c
}

// Load reads config.toml at path, if present, merging recognised keys over
// the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %q: %w", path, err)
	}
	return cfg, nil
}

// Dir returns the daemon's config directory, honouring $DEVTOOLSD_HOME for
// tests and alternate installs, else the OS user-config directory.
func Dir() (string, error) {
	if v := os.Getenv("DEVTOOLSD_HOME"); v != "" {
		return v, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: failed to resolve user config dir: %w", err)
	}
	return filepath.Join(base, "devtoolsd"), nil
}

// SessionPointer is the content of session.toml: a pointer to the current
// user-profile session, if one exists on disk.
type SessionPointer struct {
	SessionID string `toml:"session_id"`
}

// LoadSessionPointer reads session.toml under dir. A missing file returns a
// zero-value pointer and no error.
func LoadSessionPointer(dir string) (SessionPointer, error) {
	var p SessionPointer
	path := filepath.Join(dir, "session.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return p, nil
	}
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return p, fmt.Errorf("config: failed to parse %q: %w", path, err)
	}
	return p, nil
}

// SaveSessionPointer writes session.toml under dir, creating dir if needed.
func SaveSessionPointer(dir string, p SessionPointer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: failed to create %q: %w", dir, err)
	}
	f, err := os.Create(filepath.Join(dir, "session.toml"))
	if err != nil {
		return fmt.Errorf("config: failed to create session.toml: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(p)
}
