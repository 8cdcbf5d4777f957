// Package browser defines the headless browser capability a session drives,
// and its Chrome DevTools implementation.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNavigationTimeout is returned when a page does not settle in time.
var ErrNavigationTimeout = errors.New("navigation timeout")

// Element is a handle to a DOM node on the current page.
// Handles are invalidated by navigation.
type Element struct {
	ID int64
}

// NavLink is a link's resolved URL and visible text.
type NavLink struct {
	URL  string
	Text string
}

// Launcher starts isolated browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}

// Page is one isolated browser session with a single tab.
// Every method may block on browser I/O and honors ctx.
type Page interface {
	SetUserAgent(ctx context.Context, userAgent string) error
	SetViewport(ctx context.Context, width, height int64) error
	SetExtraHeaders(ctx context.Context, headers map[string]string) error
	SetTimezone(ctx context.Context, timezone string) error
	GrantGeolocation(ctx context.Context, origin string, latitude, longitude float64) error
	SetCacheDisabled(ctx context.Context, disabled bool) error

	// Navigate loads url and waits until the network is almost idle.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	QueryAll(ctx context.Context, selector string) ([]Element, error)
	Click(ctx context.Context, el Element) error
	// ClickAndWait clicks el and waits for the navigation it triggers to settle.
	ClickAndWait(ctx context.Context, el Element, timeout time.Duration) error
	ReadLink(ctx context.Context, el Element) (NavLink, error)

	ViewportHeight(ctx context.Context) (int64, error)
	ScrollBy(ctx context.Context, pixels int64) error

	Close() error
}
