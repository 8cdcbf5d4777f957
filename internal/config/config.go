// Package config resolves run configuration from flags, environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"pageswarm/internal/profile"
	"pageswarm/internal/runner"
	"pageswarm/internal/session"
)

const EnvPrefix = "PAGESWARM"

// Flag and config-file keys.
const (
	KeyURL             = "url"
	KeyUsers           = "users"
	KeyOut             = "out"
	KeyTimeout         = "timeout"
	KeyHeadless        = "headless"
	KeyMaxHops         = "max-hops"
	KeyProfiles        = "profiles"
	KeyNoProfiles      = "no-profiles"
	KeyProfilesFile    = "profiles-file"
	KeySeed            = "seed"
	KeyChrome          = "chrome"
	KeyNoSandbox       = "no-sandbox"
	KeyTUI             = "tui"
	KeyMetricsAddr     = "metrics-addr"
	KeyHistory         = "history"
	KeyNoHistory       = "no-history"
	KeyLogLevel        = "log-level"
	KeyLaunchRate      = "launch-rate"
	KeyProtocolTimeout = "protocol-timeout"
	KeyNavSelectors    = "nav-selectors"
)

type Config struct {
	TargetURL         string
	Users             int
	OutputDir         string
	NavigationTimeout time.Duration
	Headless          bool
	MaxHops           int
	SimulateProfiles  bool
	ProfilesFile      string
	// NavSelectors replaces the built-in navigation selectors when set.
	NavSelectors []string
	// Seed 0 picks a time-based seed at load.
	Seed       int64
	ChromePath string
	NoSandbox  bool
	// ProtocolTimeout bounds browser calls other than navigation.
	ProtocolTimeout time.Duration
	// LaunchRate caps browser startups per second; 0 means unlimited.
	LaunchRate  float64
	TUI         bool
	MetricsAddr string
	// HistoryPath empty means the default location.
	HistoryPath string
	NoHistory   bool
	LogLevel    string
}

func Default() Config {
	return Config{
		TargetURL:         "https://www.example.com/",
		Users:             10,
		OutputDir:         "./test-results",
		NavigationTimeout: 30 * time.Second,
		Headless:          true,
		MaxHops:           3,
		SimulateProfiles:  true,
		ProtocolTimeout:   60 * time.Second,
		LogLevel:          "info",
	}
}

// RegisterFlags declares every run flag with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP(KeyURL, "u", d.TargetURL, "Target URL")
	fs.IntP(KeyUsers, "n", d.Users, "Number of concurrent simulated users")
	fs.StringP(KeyOut, "o", d.OutputDir, "Output directory for screenshots and results.csv")
	fs.Duration(KeyTimeout, d.NavigationTimeout, "Navigation timeout per page load")
	fs.Bool(KeyHeadless, d.Headless, "Run Chrome headless")
	fs.Int(KeyMaxHops, d.MaxHops, "Maximum link navigations per user after the first page")
	fs.Bool(KeyProfiles, d.SimulateProfiles, "Apply a random client profile to each user")
	fs.Bool(KeyNoProfiles, false, "Disable client profiles (same as --profiles=false)")
	fs.String(KeyProfilesFile, "", "YAML file with a custom profile catalog")
	fs.Int64(KeySeed, 0, "Random seed (0 = time based)")
	fs.String(KeyChrome, "", "Path to the Chrome executable")
	fs.Bool(KeyNoSandbox, false, "Launch Chrome with --no-sandbox (containers)")
	fs.Duration(KeyProtocolTimeout, d.ProtocolTimeout, "Bound on every other browser call (screenshots, queries, emulation)")
	fs.StringArray(KeyNavSelectors, nil, "Navigation link selector, repeatable, tried in order (default: built-in list)")
	fs.Float64(KeyLaunchRate, 0, "Maximum browser launches per second (0 = unlimited)")
	fs.Bool(KeyTUI, false, "Show the live dashboard instead of console lines")
	fs.String(KeyMetricsAddr, "", "Serve Prometheus metrics on this address during the run (e.g. :9100)")
	fs.String(KeyHistory, "", "Run history file (default $HOME/.pageswarm/history.db)")
	fs.Bool(KeyNoHistory, false, "Do not record this run in history")
	fs.String(KeyLogLevel, d.LogLevel, "Log level (debug, info, warn, error)")
}

// Bind wires flags and PAGESWARM_* environment variables into v.
func Bind(v *viper.Viper, fs *pflag.FlagSet) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v.BindPFlags(fs)
}

// Load reads the resolved values out of v.
func Load(v *viper.Viper) Config {
	c := Config{
		TargetURL:         v.GetString(KeyURL),
		Users:             v.GetInt(KeyUsers),
		OutputDir:         v.GetString(KeyOut),
		NavigationTimeout: v.GetDuration(KeyTimeout),
		Headless:          v.GetBool(KeyHeadless),
		MaxHops:           v.GetInt(KeyMaxHops),
		SimulateProfiles:  v.GetBool(KeyProfiles) && !v.GetBool(KeyNoProfiles),
		ProfilesFile:      v.GetString(KeyProfilesFile),
		Seed:              v.GetInt64(KeySeed),
		ChromePath:        v.GetString(KeyChrome),
		NoSandbox:         v.GetBool(KeyNoSandbox),
		ProtocolTimeout:   v.GetDuration(KeyProtocolTimeout),
		NavSelectors:      v.GetStringSlice(KeyNavSelectors),
		LaunchRate:        v.GetFloat64(KeyLaunchRate),
		TUI:               v.GetBool(KeyTUI),
		MetricsAddr:       v.GetString(KeyMetricsAddr),
		HistoryPath:       v.GetString(KeyHistory),
		NoHistory:         v.GetBool(KeyNoHistory),
		LogLevel:          v.GetString(KeyLogLevel),
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.TargetURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("url: scheme must be http or https, got %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, errors.New("url: host is required"))
	}

	if c.Users < 1 {
		errs = append(errs, fmt.Errorf("users must be at least 1, got %d", c.Users))
	}
	if c.NavigationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.NavigationTimeout))
	}
	if c.MaxHops < 0 {
		errs = append(errs, fmt.Errorf("max-hops must not be negative, got %d", c.MaxHops))
	}
	if c.ProtocolTimeout <= 0 {
		errs = append(errs, fmt.Errorf("protocol-timeout must be positive, got %s", c.ProtocolTimeout))
	}
	if c.LaunchRate < 0 {
		errs = append(errs, fmt.Errorf("launch-rate must not be negative, got %g", c.LaunchRate))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("out is required"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log-level: %w", err))
	}

	return errors.Join(errs...)
}

// SessionConfig is the read-only view every session gets.
func (c Config) SessionConfig() session.Config {
	return session.Config{
		TargetURL:         c.TargetURL,
		NavigationTimeout: c.NavigationTimeout,
		MaxHops:           c.MaxHops,
		SimulateProfiles:  c.SimulateProfiles,
		NavSelectors:      c.NavSelectors,
	}
}

func (c Config) RunnerConfig() runner.Config {
	return runner.Config{Users: c.Users, Seed: c.Seed}
}

// Catalog loads ProfilesFile, or returns the built-in catalog when unset.
func (c Config) Catalog() (profile.Catalog, error) {
	if c.ProfilesFile == "" {
		return profile.DefaultCatalog(), nil
	}
	return profile.LoadCatalog(c.ProfilesFile)
}
