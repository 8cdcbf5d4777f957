// Package behavior drives randomized in-page interaction and multi-hop link
// navigation for one session.
package behavior

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"pageswarm/internal/browser"
	"pageswarm/internal/sink"
)

// ClickableSelector matches the elements a user might click while reading.
const ClickableSelector = "button:not([disabled]), a:not([disabled])"

// NavSelectors is tried in order; the first selector with matches is the
// link pool. Semantic containers come first, CMS menu classes last.
var NavSelectors = []string{
	"nav a[href]",
	".nav a[href]",
	".navigation a[href]",
	".menu a[href]",
	"header a[href]",
	".header a[href]",
	"footer a[href]",
	".footer a[href]",
	".sidebar a[href]",
	".main-menu a[href]",
	".elementor-nav-menu a[href]",
	".menu-item a[href]",
	".page-item a[href]",
	".cat-item a[href]",
}

// PauseFunc blocks for d or until ctx is done.
type PauseFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real PauseFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SnapshotWriter persists snapshots taken after each hop.
type SnapshotWriter interface {
	WriteSnapshot(name string, data []byte) (string, error)
}

type Config struct {
	// NavigationTimeout bounds every hop.
	NavigationTimeout time.Duration
	// Selectors overrides NavSelectors.
	Selectors []string
	// Pause overrides Sleep.
	Pause  PauseFunc
	Logger *zap.Logger
}

// Engine is shared by all sessions; per-session state (page, random
// source) is passed to each call.
type Engine struct {
	timeout   time.Duration
	selectors []string
	pause     PauseFunc
	snapshots SnapshotWriter
	logger    *zap.Logger
}

func New(cfg Config, snapshots SnapshotWriter) *Engine {
	e := &Engine{
		timeout:   cfg.NavigationTimeout,
		selectors: cfg.Selectors,
		pause:     cfg.Pause,
		snapshots: snapshots,
		logger:    cfg.Logger,
	}
	if len(e.selectors) == 0 {
		e.selectors = NavSelectors
	}
	if e.pause == nil {
		e.pause = Sleep
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// IsNavigable rejects links a user could not meaningfully follow.
func IsNavigable(link browser.NavLink) bool {
	if link.URL == "" || strings.TrimSpace(link.Text) == "" {
		return false
	}
	for _, bad := range []string{"javascript:", "#", "mailto:", "tel:"} {
		if strings.Contains(link.URL, bad) {
			return false
		}
	}
	return true
}

// wait pauses for a random duration in [minMs, maxMs).
func (e *Engine) wait(ctx context.Context, rng *rand.Rand, minMs, maxMs int) error {
	d := time.Duration(minMs+rng.Intn(maxMs-minMs)) * time.Millisecond
	return e.pause(ctx, d)
}

// scroll moves down by a random offset in [0, viewport height).
// Failures are logged only.
func (e *Engine) scroll(ctx context.Context, page browser.Page, rng *rand.Rand, log *zap.Logger) {
	h, err := page.ViewportHeight(ctx)
	if err != nil {
		log.Debug("viewport height unavailable", zap.Error(err))
		return
	}
	if h <= 0 {
		return
	}
	if err := page.ScrollBy(ctx, rng.Int63n(h)); err != nil {
		log.Debug("scroll failed", zap.Error(err))
	}
}

// Interact simulates reading the page: wait, scroll, wait, click something,
// wait. The last wait only follows a successful click. Interaction failures
// never escalate; only ctx ending does.
func (e *Engine) Interact(ctx context.Context, page browser.Page, rng *rand.Rand, userID int) error {
	log := e.logger.With(zap.Int("user", userID))

	if err := e.wait(ctx, rng, 1000, 5000); err != nil {
		return err
	}
	e.scroll(ctx, page, rng, log)
	if err := e.wait(ctx, rng, 500, 2500); err != nil {
		return err
	}

	els, err := page.QueryAll(ctx, ClickableSelector)
	if err != nil {
		log.Debug("clickable query failed", zap.Error(err))
		return ctx.Err()
	}
	if len(els) == 0 {
		return nil
	}

	if err := page.Click(ctx, els[rng.Intn(len(els))]); err != nil {
		// Speculative clicks are best effort; a failed one ends the step.
		log.Debug("click failed", zap.Error(err))
		return ctx.Err()
	}
	return e.wait(ctx, rng, 1000, 4000)
}

// discover returns the links of the first selector that matches anything.
func (e *Engine) discover(ctx context.Context, page browser.Page, log *zap.Logger) ([]browser.Element, string) {
	for _, sel := range e.selectors {
		els, err := page.QueryAll(ctx, sel)
		if err != nil {
			log.Debug("selector query failed", zap.String("selector", sel), zap.Error(err))
			continue
		}
		if len(els) > 0 {
			return els, sel
		}
	}
	return nil, ""
}

// Navigate follows up to a random number of links in [1, maxHops] and
// returns how many navigations actually happened. A hop failure ends the
// walk without an error; only ctx ending is returned.
func (e *Engine) Navigate(ctx context.Context, page browser.Page, rng *rand.Rand, userID, maxHops int) (int, error) {
	if maxHops <= 0 {
		return 0, nil
	}
	log := e.logger.With(zap.Int("user", userID))

	links, sel := e.discover(ctx, page, log)
	if len(links) == 0 {
		log.Info("no navigation links found")
		return 0, ctx.Err()
	}
	log.Info("found navigation links", zap.Int("count", len(links)), zap.String("selector", sel))

	budget := rng.Intn(maxHops) + 1
	log.Info("planned additional pages", zap.Int("pages", budget))

	visited := 0
	for i := 0; i < budget; i++ {
		if len(links) == 0 {
			break
		}
		el := links[rng.Intn(len(links))]

		link, err := page.ReadLink(ctx, el)
		if err != nil {
			log.Warn("navigation failed", zap.Error(err))
			break
		}
		if !IsNavigable(link) {
			continue
		}

		log.Info("navigating", zap.String("text", link.Text), zap.String("url", link.URL))
		if err := page.ClickAndWait(ctx, el, e.timeout); err != nil {
			log.Warn("navigation failed", zap.String("url", link.URL), zap.Error(err))
			break
		}
		visited++

		data, err := page.Screenshot(ctx)
		if err == nil {
			_, err = e.snapshots.WriteSnapshot(sink.SnapshotName(userID, i+1), data)
		}
		if err != nil {
			log.Warn("navigation failed", zap.Error(err))
			break
		}

		if err := e.wait(ctx, rng, 1000, 3000); err != nil {
			return visited, err
		}
		e.scroll(ctx, page, rng, log)
		if err := e.wait(ctx, rng, 500, 2500); err != nil {
			return visited, err
		}

		links, _ = e.discover(ctx, page, log)
	}

	return visited, ctx.Err()
}
