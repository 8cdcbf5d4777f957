// Package dummy serves a small multi-page site to point load tests at.
package dummy

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type ServerConfig struct {
	Port int
	// NoDelay disables simulated server latency.
	NoDelay bool
}

type page struct {
	Path  string
	Title string
	Body  string
	// delay returns the simulated processing time.
	delay func(*rand.Rand) time.Duration
}

func jitter(minMs, spanMs int) func(*rand.Rand) time.Duration {
	return func(rng *rand.Rand) time.Duration {
		return time.Duration(minMs+rng.Intn(spanMs)) * time.Millisecond
	}
}

// Pages lists every routable page. Nav links point at all of them.
var Pages = []page{
	{Path: "/", Title: "Home", Body: "Welcome to the demo shop.", delay: jitter(10, 40)},
	{Path: "/products", Title: "Products", Body: "Everything we sell.", delay: jitter(100, 200)},
	{Path: "/blog", Title: "Blog", Body: "Notes from the team.", delay: jitter(50, 100)},
	{Path: "/about", Title: "About", Body: "Who we are.", delay: jitter(10, 40)},
	{Path: "/contact", Title: "Contact", Body: "Get in touch.", delay: jitter(10, 40)},
	// Slow enough to exercise short navigation timeouts.
	{Path: "/slow", Title: "Slow", Body: "This page takes its time.", delay: jitter(1000, 1000)},
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Current.Title}} | Demo Shop</title></head>
<body style="min-height: 2400px">
<header class="header">
  <a href="/">Demo Shop</a>
  <a href="javascript:void(0)">Menu</a>
  <a href="#top">Top</a>
</header>
<nav class="main-menu">
{{- range .Pages}}
  <a href="{{.Path}}">{{.Title}}</a>
{{- end}}
  <a href="/products"></a>
</nav>
<main>
  <h1>{{.Current.Title}}</h1>
  <p>{{.Current.Body}}</p>
  <button type="button">Add to cart</button>
  <button type="button" disabled>Sold out</button>
</main>
<footer class="footer">
  <a href="mailto:hello@demo.test">Email</a>
  <a href="tel:+15550100">Call</a>
  <a href="/about">About us</a>
</footer>
</body>
</html>
`))

type Server struct {
	cfg    ServerConfig
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewServer(cfg ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Server) delay(p page) time.Duration {
	if s.cfg.NoDelay {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return p.delay(s.rng)
}

// Handler serves every page in Pages; anything else is a 404.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, p := range Pages {
		pattern := "GET " + p.Path
		if p.Path == "/" {
			pattern = "GET /{$}"
		}
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(s.delay(p)):
			case <-r.Context().Done():
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			err := pageTmpl.Execute(w, struct {
				Current page
				Pages   []page
			}{p, Pages})
			if err != nil {
				s.logger.Warn("render failed", zap.String("path", p.Path), zap.Error(err))
			}
		})
	}
	return mux
}

// Start listens on cfg.Port and serves until ctx is done. It returns the
// bound address once listening.
func (s *Server) Start(ctx context.Context) (net.Addr, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("dummy listen: %w", err)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("dummy server failed", zap.Error(err))
		}
	}()
	context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})

	return ln.Addr(), nil
}
