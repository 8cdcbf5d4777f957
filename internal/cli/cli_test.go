package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageswarm/internal/browser/fakebrowser"
	"pageswarm/internal/config"
	"pageswarm/internal/storage"
)

const home = "https://shop.test/"

func noPause(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func shop() *fakebrowser.Site {
	nav := map[string][]fakebrowser.Link{
		"nav a[href]": {
			{URL: "https://shop.test/about", Text: "About"},
			{URL: "https://shop.test/blog", Text: "Blog"},
		},
	}
	spec := fakebrowser.PageSpec{Links: nav, Clickables: 2}
	pages := make(map[string]fakebrowser.PageSpec)
	for _, u := range []string{home, home + "about", home + "blog"} {
		pages[u] = spec
	}
	return fakebrowser.NewSite(pages)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	c := config.Default()
	c.TargetURL = home
	c.Users = 4
	c.OutputDir = filepath.Join(dir, "results")
	c.NavigationTimeout = time.Second
	c.Seed = 7
	c.HistoryPath = filepath.Join(dir, "history.db")
	return c
}

func TestRun_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	site := shop()
	var out bytes.Buffer

	app := &App{Cfg: cfg, Launcher: site, Out: &out, Pause: noPause}
	outcome, err := app.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, outcome.Summary.Total)
	assert.Equal(t, 4, outcome.Summary.Successful)
	require.Len(t, outcome.Results, 4)
	for i, res := range outcome.Results {
		assert.Equal(t, i+1, res.UserID)
	}
	assert.Len(t, site.Sessions(), 4)
	for _, p := range site.Sessions() {
		assert.Equal(t, 1, p.Closed)
	}

	console := out.String()
	assert.Contains(t, console, "Starting load test for "+home)
	assert.Contains(t, console, "User 1: SUCCESS")
	assert.Contains(t, console, "===== LOAD TEST SUMMARY =====")
	assert.Contains(t, console, "100.00%")
	assert.Contains(t, console, "Detailed results saved to: "+outcome.ResultsPath)

	f, err := os.Open(outcome.ResultsPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	_, err = os.Stat(filepath.Join(cfg.OutputDir, "user_1.png"))
	assert.NoError(t, err)

	store, err := storage.Open(cfg.HistoryPath)
	require.NoError(t, err)
	defer store.Close()
	item, err := store.Get(outcome.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, home, item.Config.TargetURL)
	assert.Equal(t, 4, item.Summary.Total)
}

func TestRun_FailedSessionsAreReportedNotReturned(t *testing.T) {
	cfg := testConfig(t)
	cfg.NoHistory = true
	cfg.NavigationTimeout = 5 * time.Millisecond
	site := shop()
	site.NavigateDelay = 50 * time.Millisecond
	var out bytes.Buffer

	outcome, err := (&App{Cfg: cfg, Launcher: site, Out: &out, Pause: noPause}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, outcome.Summary.Failed)
	assert.Zero(t, outcome.Summary.MeanLoadTimeMs)
	assert.Empty(t, outcome.HistoryID)
	assert.Contains(t, out.String(), "FAILED")
	assert.Contains(t, out.String(), "Failed users:")

	_, err = os.Stat(cfg.HistoryPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Users = 0

	_, err := (&App{Cfg: cfg, Launcher: shop(), Out: &bytes.Buffer{}}).Run(context.Background())
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestRun_ProfilesDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.SimulateProfiles = false
	cfg.NoHistory = true

	outcome, err := (&App{Cfg: cfg, Launcher: shop(), Out: &bytes.Buffer{}, Pause: noPause}).Run(context.Background())
	require.NoError(t, err)
	for _, res := range outcome.Results {
		assert.Equal(t, "Default", res.Profile)
	}
}

func TestRun_ReproducibleWithSeed(t *testing.T) {
	run := func() []string {
		cfg := testConfig(t)
		cfg.NoHistory = true
		outcome, err := (&App{Cfg: cfg, Launcher: shop(), Out: &bytes.Buffer{}, Pause: noPause}).Run(context.Background())
		require.NoError(t, err)
		var profiles []string
		for _, r := range outcome.Results {
			profiles = append(profiles, r.Profile)
		}
		return profiles
	}
	assert.Equal(t, run(), run())
}

func TestChromeConfig_ClicksBoundByNavigationTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.NavigationTimeout = 2 * time.Second
	cfg.ProtocolTimeout = 45 * time.Second
	cfg.NoSandbox = true

	cc := chromeConfig(cfg, nil)
	assert.Equal(t, 2*time.Second, cc.ClickTimeout)
	assert.Equal(t, 45*time.Second, cc.ProtocolTimeout)
	assert.True(t, cc.NoSandbox)
	assert.True(t, cc.Headless)
}

func TestRun_CustomNavSelectors(t *testing.T) {
	cfg := testConfig(t)
	cfg.NoHistory = true
	cfg.MaxHops = 1
	cfg.NavSelectors = []string{".nowhere a[href]"}
	site := shop()

	outcome, err := (&App{Cfg: cfg, Launcher: site, Out: &bytes.Buffer{}, Pause: noPause}).Run(context.Background())
	require.NoError(t, err)
	for _, res := range outcome.Results {
		assert.True(t, res.Success)
		assert.Zero(t, res.Hops)
	}
}

func TestHistoryPath(t *testing.T) {
	cfg := config.Default()
	cfg.HistoryPath = "/tmp/h.db"
	p, err := HistoryPath(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/h.db", p)

	cfg.HistoryPath = ""
	p, err = HistoryPath(cfg)
	require.NoError(t, err)
	assert.Equal(t, "history.db", filepath.Base(p))
}
