// Package fakebrowser is a scriptable in-memory browser for tests.
package fakebrowser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pageswarm/internal/browser"
)

// Link is an anchor on a fake page. Clicking it loads URL unless ClickErr is set.
type Link struct {
	URL      string
	Text     string
	ClickErr error
}

// PageSpec describes what a URL serves.
type PageSpec struct {
	// Links maps a CSS selector to the anchors it matches.
	Links map[string][]Link
	// Clickables is the number of elements matched by button selectors.
	Clickables int
	// ClickErr fails clicks on plain clickables.
	ClickErr error
	// Height is the reported window.innerHeight (default 800).
	Height int64
}

// Site serves fake pages and records every session it launches.
type Site struct {
	Pages map[string]PageSpec

	// LaunchErr fails every Launch.
	LaunchErr error
	// NavigateErr fails the first Navigate of every session.
	NavigateErr error
	// ScreenshotErr fails every screenshot.
	ScreenshotErr error
	// NavigateDelay blocks Navigate; exceeding the timeout yields ErrNavigationTimeout.
	NavigateDelay time.Duration

	mu       sync.Mutex
	sessions []*Page
}

func NewSite(pages map[string]PageSpec) *Site {
	return &Site{Pages: pages}
}

// Launch implements browser.Launcher.
func (s *Site) Launch(ctx context.Context) (browser.Page, error) {
	if s.LaunchErr != nil {
		return nil, s.LaunchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := &Page{site: s}
	s.mu.Lock()
	s.sessions = append(s.sessions, p)
	s.mu.Unlock()
	return p, nil
}

// Sessions returns every page launched so far.
func (s *Site) Sessions() []*Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Page, len(s.sessions))
	copy(out, s.sessions)
	return out
}

type element struct {
	link      *Link
	clickable bool
}

// Page is a fake session. Exported fields are read by tests after the run.
type Page struct {
	site *Site

	mu sync.Mutex

	UserAgent     string
	Viewport      [2]int64
	Headers       map[string]string
	Timezone      string
	GeoOrigin     string
	Geo           [2]float64
	CacheDisabled bool

	// Visits lists every URL loaded, initial navigation first.
	Visits      []string
	Screenshots int
	Clicks      int
	Scrolls     []int64
	Closed      int

	current  string
	elements []element
}

func (p *Page) SetUserAgent(_ context.Context, ua string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.UserAgent = ua
	return nil
}

func (p *Page) SetViewport(_ context.Context, w, h int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Viewport = [2]int64{w, h}
	return nil
}

func (p *Page) SetExtraHeaders(_ context.Context, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Headers = headers
	return nil
}

func (p *Page) SetTimezone(_ context.Context, tz string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Timezone = tz
	return nil
}

func (p *Page) GrantGeolocation(_ context.Context, origin string, lat, lon float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GeoOrigin = origin
	p.Geo = [2]float64{lat, lon}
	return nil
}

func (p *Page) SetCacheDisabled(_ context.Context, disabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CacheDisabled = disabled
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if d := p.site.NavigateDelay; d > 0 {
		wait := d
		if timeout > 0 && timeout < wait {
			wait = timeout
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		if timeout > 0 && d > timeout {
			return fmt.Errorf("%w: %d ms exceeded", browser.ErrNavigationTimeout, timeout.Milliseconds())
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.site.NavigateErr != nil && len(p.Visits) == 0 {
		return p.site.NavigateErr
	}
	p.load(url)
	return nil
}

func (p *Page) load(url string) {
	p.current = url
	p.elements = nil
	p.Visits = append(p.Visits, url)
}

func (p *Page) spec() PageSpec {
	return p.site.Pages[p.current]
}

func (p *Page) Screenshot(context.Context) ([]byte, error) {
	if p.site.ScreenshotErr != nil {
		return nil, p.site.ScreenshotErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Screenshots++
	return []byte("png:" + p.current), nil
}

func (p *Page) QueryAll(_ context.Context, selector string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	spec := p.spec()
	var els []browser.Element
	if links, ok := spec.Links[selector]; ok {
		for i := range links {
			p.elements = append(p.elements, element{link: &links[i]})
			els = append(els, browser.Element{ID: int64(len(p.elements) - 1)})
		}
		return els, nil
	}
	if !strings.Contains(selector, "button") {
		return nil, nil
	}
	for range spec.Clickables {
		p.elements = append(p.elements, element{clickable: true})
		els = append(els, browser.Element{ID: int64(len(p.elements) - 1)})
	}
	return els, nil
}

func (p *Page) lookup(el browser.Element) (element, error) {
	if el.ID < 0 || int(el.ID) >= len(p.elements) {
		return element{}, errors.New("stale element")
	}
	return p.elements[el.ID], nil
}

func (p *Page) Click(_ context.Context, el browser.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(el)
	if err != nil {
		return err
	}
	p.Clicks++
	if e.link != nil {
		return e.link.ClickErr
	}
	return p.spec().ClickErr
}

func (p *Page) ClickAndWait(_ context.Context, el browser.Element, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(el)
	if err != nil {
		return err
	}
	p.Clicks++
	if e.link == nil {
		return errors.New("element is not a link")
	}
	if e.link.ClickErr != nil {
		return e.link.ClickErr
	}
	p.load(e.link.URL)
	return nil
}

func (p *Page) ReadLink(_ context.Context, el browser.Element) (browser.NavLink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.lookup(el)
	if err != nil {
		return browser.NavLink{}, err
	}
	if e.link == nil {
		return browser.NavLink{}, nil
	}
	return browser.NavLink{URL: e.link.URL, Text: e.link.Text}, nil
}

func (p *Page) ViewportHeight(context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h := p.spec().Height; h > 0 {
		return h, nil
	}
	return 800, nil
}

func (p *Page) ScrollBy(_ context.Context, px int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Scrolls = append(p.Scrolls, px)
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed++
	return nil
}

// Hops returns how many navigations happened after the initial load.
func (p *Page) Hops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Visits) == 0 {
		return 0
	}
	return len(p.Visits) - 1
}

var (
	_ browser.Launcher = (*Site)(nil)
	_ browser.Page     = (*Page)(nil)
)
