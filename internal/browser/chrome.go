package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultProtocolTimeout = 60 * time.Second
	screenshotQuality      = 100 // 100 selects PNG
)

// ChromeConfig configures how Chrome processes are started.
type ChromeConfig struct {
	// Headless runs Chrome without a window.
	Headless bool
	// ExecPath overrides Chrome discovery when set.
	ExecPath string
	// NoSandbox is required when running as root or inside containers.
	NoSandbox bool
	// ClickTimeout bounds a single click or link read. Defaults to
	// ProtocolTimeout; runs set it to the navigation timeout.
	ClickTimeout time.Duration
	// ProtocolTimeout bounds every other browser call (default 60s), so a
	// wedged page cannot hang its session.
	ProtocolTimeout time.Duration
	Logger          *zap.Logger
}

// ChromeLauncher starts one Chrome process per session.
type ChromeLauncher struct {
	cfg    ChromeConfig
	logger *zap.Logger
}

func NewChromeLauncher(cfg ChromeConfig) *ChromeLauncher {
	if cfg.ProtocolTimeout <= 0 {
		cfg.ProtocolTimeout = defaultProtocolTimeout
	}
	if cfg.ClickTimeout <= 0 {
		cfg.ClickTimeout = cfg.ProtocolTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeLauncher{cfg: cfg, logger: logger}
}

func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-features", "VizDisplayCompositor"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
	)
	if l.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// Launch starts an isolated Chrome process with a single tab.
// The browser lives until Close is called or ctx is cancelled.
func (l *ChromeLauncher) Launch(ctx context.Context) (Page, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			l.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	p := &chromePage{
		ctx:             tabCtx,
		tabCancel:       tabCancel,
		allocCancel:     allocCancel,
		clickTimeout:    l.cfg.ClickTimeout,
		protocolTimeout: l.cfg.ProtocolTimeout,
		nodes:           make(map[int64]*cdp.Node),
	}

	// The first Run starts the browser.
	if err := chromedp.Run(tabCtx,
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
	); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		// The main frame shares its id with the page target.
		p.idle.frameID = cdp.FrameID(c.Target.TargetID)
	}
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok {
			p.idle.observe(e)
		}
	})

	return p, nil
}

// idleWatcher signals when the main frame reports networkAlmostIdle for a
// document that started loading after arm was called.
type idleWatcher struct {
	mu       sync.Mutex
	frameID  cdp.FrameID
	loaderID cdp.LoaderID
	done     chan struct{}
}

func (w *idleWatcher) arm() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loaderID = ""
	w.done = make(chan struct{})
	return w.done
}

func (w *idleWatcher) observe(ev *page.EventLifecycleEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil || (w.frameID != "" && ev.FrameID != w.frameID) {
		return
	}
	switch ev.Name {
	case "init":
		w.loaderID = ev.LoaderID
	case "networkAlmostIdle":
		if w.loaderID != "" && ev.LoaderID == w.loaderID {
			close(w.done)
			w.done = nil
		}
	}
}

type chromePage struct {
	ctx             context.Context
	tabCancel       context.CancelFunc
	allocCancel     context.CancelFunc
	clickTimeout    time.Duration
	protocolTimeout time.Duration

	idle idleWatcher

	mu    sync.Mutex
	nodes map[int64]*cdp.Node

	closeOnce sync.Once
	closeErr  error
}

// bounded derives a context from the tab that also ends when ctx ends.
func (p *chromePage) bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// call bounds a plain protocol call by the protocol timeout.
func (p *chromePage) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return p.bounded(ctx, p.protocolTimeout)
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := p.call(ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) SetUserAgent(ctx context.Context, userAgent string) error {
	return p.run(ctx, emulation.SetUserAgentOverride(userAgent))
}

func (p *chromePage) SetViewport(ctx context.Context, width, height int64) error {
	return p.run(ctx, chromedp.EmulateViewport(width, height))
}

func (p *chromePage) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	h := make(network.Headers, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return p.run(ctx, network.SetExtraHTTPHeaders(h))
}

func (p *chromePage) SetTimezone(ctx context.Context, timezone string) error {
	return p.run(ctx, emulation.SetTimezoneOverride(timezone))
}

func (p *chromePage) GrantGeolocation(ctx context.Context, origin string, latitude, longitude float64) error {
	return p.run(ctx,
		cdpbrowser.GrantPermissions([]cdpbrowser.PermissionType{cdpbrowser.PermissionTypeGeolocation}).
			WithOrigin(origin),
		emulation.SetGeolocationOverride().
			WithLatitude(latitude).
			WithLongitude(longitude).
			WithAccuracy(100),
	)
}

func (p *chromePage) SetCacheDisabled(ctx context.Context, disabled bool) error {
	return p.run(ctx, network.SetCacheDisabled(disabled))
}

func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	runCtx, cancel := p.bounded(ctx, timeout)
	defer cancel()

	idle := p.idle.arm()
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return navigationError(runCtx, err, timeout)
	}
	return awaitIdle(runCtx, idle, timeout)
}

func (p *chromePage) ClickAndWait(ctx context.Context, el Element, timeout time.Duration) error {
	node, err := p.node(el)
	if err != nil {
		return err
	}

	runCtx, cancel := p.bounded(ctx, timeout)
	defer cancel()

	idle := p.idle.arm()
	if err := chromedp.Run(runCtx, chromedp.MouseClickNode(node)); err != nil {
		return navigationError(runCtx, err, timeout)
	}
	return awaitIdle(runCtx, idle, timeout)
}

func awaitIdle(ctx context.Context, idle <-chan struct{}, timeout time.Duration) error {
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return navigationError(ctx, ctx.Err(), timeout)
	}
}

func navigationError(ctx context.Context, err error, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %d ms exceeded", ErrNavigationTimeout, timeout.Milliseconds())
	}
	return fmt.Errorf("navigation failed: %w", err)
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, screenshotQuality)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

func (p *chromePage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	els := make([]Element, len(nodes))
	for i, n := range nodes {
		id := int64(n.NodeID)
		p.nodes[id] = n
		els[i] = Element{ID: id}
	}
	return els, nil
}

func (p *chromePage) node(el Element) (*cdp.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[el.ID]
	if !ok {
		return nil, fmt.Errorf("unknown element %d", el.ID)
	}
	return n, nil
}

func (p *chromePage) Click(ctx context.Context, el Element) error {
	node, err := p.node(el)
	if err != nil {
		return err
	}
	runCtx, cancel := p.bounded(ctx, p.clickTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.MouseClickNode(node)); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

func (p *chromePage) ReadLink(ctx context.Context, el Element) (NavLink, error) {
	var href, text string
	ids := []cdp.NodeID{cdp.NodeID(el.ID)}

	runCtx, cancel := p.bounded(ctx, p.clickTimeout)
	defer cancel()
	err := chromedp.Run(runCtx,
		chromedp.JavascriptAttribute(ids, "href", &href, chromedp.ByNodeID),
		chromedp.JavascriptAttribute(ids, "innerText", &text, chromedp.ByNodeID),
	)
	if err != nil {
		return NavLink{}, fmt.Errorf("read link: %w", err)
	}
	return NavLink{URL: href, Text: strings.TrimSpace(text)}, nil
}

func (p *chromePage) ViewportHeight(ctx context.Context) (int64, error) {
	var h int64
	if err := p.run(ctx, chromedp.Evaluate(`window.innerHeight`, &h)); err != nil {
		return 0, fmt.Errorf("viewport height: %w", err)
	}
	return h, nil
}

func (p *chromePage) ScrollBy(ctx context.Context, pixels int64) error {
	return p.run(ctx, chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, pixels), nil))
}

// Close shuts the browser down. It is safe to call more than once.
func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = chromedp.Cancel(p.ctx)
		p.tabCancel()
		p.allocCancel()
	})
	return p.closeErr
}

var _ Launcher = (*ChromeLauncher)(nil)
var _ Page = (*chromePage)(nil)
