// Package session owns one simulated user's browser session from launch to
// teardown.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"go.uber.org/zap"

	"pageswarm/internal/behavior"
	"pageswarm/internal/browser"
	"pageswarm/internal/profile"
	"pageswarm/internal/runner"
	"pageswarm/internal/sink"
)

// Viewport used when no profile is applied.
const (
	defaultViewportWidth  = 1920
	defaultViewportHeight = 1080
)

// Config is read-only for the duration of a run.
type Config struct {
	TargetURL         string
	NavigationTimeout time.Duration
	MaxHops           int
	SimulateProfiles  bool
	// NavSelectors replaces the built-in navigation selectors when set.
	NavSelectors []string
}

type Driver struct {
	cfg       Config
	launcher  browser.Launcher
	snapshots behavior.SnapshotWriter
	catalog   profile.Catalog
	pause     behavior.PauseFunc
	logger    *zap.Logger
	engine    *behavior.Engine
}

type Option func(*Driver)

// WithCatalog replaces the built-in profile catalog.
func WithCatalog(c profile.Catalog) Option {
	return func(d *Driver) { d.catalog = c }
}

// WithPause replaces real sleeps, for tests.
func WithPause(p behavior.PauseFunc) Option {
	return func(d *Driver) { d.pause = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

func NewDriver(cfg Config, launcher browser.Launcher, snapshots behavior.SnapshotWriter, opts ...Option) *Driver {
	d := &Driver{
		cfg:       cfg,
		launcher:  launcher,
		snapshots: snapshots,
		catalog:   profile.DefaultCatalog(),
		pause:     behavior.Sleep,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.engine = behavior.New(behavior.Config{
		NavigationTimeout: cfg.NavigationTimeout,
		Selectors:         cfg.NavSelectors,
		Pause:             d.pause,
		Logger:            d.logger,
	}, snapshots)
	return d
}

// Run executes one session and always returns its result. The browser is
// released on every path.
func (d *Driver) Run(ctx context.Context, userID int, rng *rand.Rand) runner.Result {
	prof, hasProfile := d.catalog.Select(rng, d.cfg.SimulateProfiles)
	res := runner.Result{
		UserID:    userID,
		Profile:   profile.DefaultProfileName,
		StartedAt: time.Now(),
	}
	if hasProfile {
		res.Profile = prof.Name
	}

	log := d.logger.With(zap.Int("user", userID), zap.String("profile", res.Profile))
	log.Info("session starting")

	page, err := d.launcher.Launch(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("browser close failed", zap.Error(err))
		}
	}()

	if err := d.prepare(ctx, page, prof, hasProfile); err != nil {
		res.Error = err.Error()
		return res
	}

	start := time.Now()
	if err := page.Navigate(ctx, d.cfg.TargetURL, d.cfg.NavigationTimeout); err != nil {
		res.Error = err.Error()
		return res
	}
	res.LoadTime = time.Since(start)

	path, err := d.snapshot(ctx, page, userID)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	if err := d.engine.Interact(ctx, page, rng, userID); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Hops, err = d.engine.Navigate(ctx, page, rng, userID, d.cfg.MaxHops)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	// Linger before leaving.
	linger := time.Duration(500+rng.Intn(2000)) * time.Millisecond
	if err := d.pause(ctx, linger); err != nil {
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.Screenshot = path
	return res
}

// prepare applies the identity in full before any navigation.
func (d *Driver) prepare(ctx context.Context, page browser.Page, prof profile.Profile, hasProfile bool) error {
	if !hasProfile {
		if err := page.SetViewport(ctx, defaultViewportWidth, defaultViewportHeight); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
	} else {
		if err := page.SetUserAgent(ctx, prof.UserAgent); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
		if err := page.SetViewport(ctx, prof.Viewport.Width, prof.Viewport.Height); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		if err := page.SetExtraHeaders(ctx, map[string]string{"Accept-Language": prof.AcceptLanguage}); err != nil {
			return fmt.Errorf("set headers: %w", err)
		}
		if err := page.SetTimezone(ctx, prof.Timezone); err != nil {
			return fmt.Errorf("set timezone: %w", err)
		}
		if err := page.GrantGeolocation(ctx, Origin(d.cfg.TargetURL), prof.Location.Latitude, prof.Location.Longitude); err != nil {
			return fmt.Errorf("set geolocation: %w", err)
		}
	}

	if err := page.SetCacheDisabled(ctx, true); err != nil {
		return fmt.Errorf("disable cache: %w", err)
	}
	return nil
}

func (d *Driver) snapshot(ctx context.Context, page browser.Page, userID int) (string, error) {
	data, err := page.Screenshot(ctx)
	if err != nil {
		return "", err
	}
	return d.snapshots.WriteSnapshot(sink.SnapshotName(userID, 0), data)
}

// Origin returns scheme://host of target, or target itself if unparsable.
func Origin(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return target
	}
	return u.Scheme + "://" + u.Host
}
