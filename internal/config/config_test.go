package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) Config {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))

	v := viper.New()
	require.NoError(t, Bind(v, fs))
	return Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	c := load(t)

	assert.Equal(t, "https://www.example.com/", c.TargetURL)
	assert.Equal(t, 10, c.Users)
	assert.Equal(t, "./test-results", c.OutputDir)
	assert.Equal(t, 30*time.Second, c.NavigationTimeout)
	assert.True(t, c.Headless)
	assert.Equal(t, 3, c.MaxHops)
	assert.True(t, c.SimulateProfiles)
	assert.NotZero(t, c.Seed)
	assert.Equal(t, 60*time.Second, c.ProtocolTimeout)
	assert.Empty(t, c.NavSelectors)
	assert.NoError(t, c.Validate())
}

func TestLoad_Flags(t *testing.T) {
	c := load(t,
		"--url", "http://localhost:8080/",
		"-n", "25",
		"--out", "results",
		"--timeout", "5s",
		"--headless=false",
		"--max-hops", "0",
		"--no-profiles",
		"--seed", "42",
		"--launch-rate", "2.5",
		"--protocol-timeout", "15s",
		"--nav-selectors", "#menu a[href]",
		"--nav-selectors", "ul.links a, ol.links a",
	)

	assert.Equal(t, "http://localhost:8080/", c.TargetURL)
	assert.Equal(t, 25, c.Users)
	assert.Equal(t, "results", c.OutputDir)
	assert.Equal(t, 5*time.Second, c.NavigationTimeout)
	assert.False(t, c.Headless)
	assert.Zero(t, c.MaxHops)
	assert.False(t, c.SimulateProfiles)
	assert.Equal(t, int64(42), c.Seed)
	assert.Equal(t, 2.5, c.LaunchRate)
	assert.Equal(t, 15*time.Second, c.ProtocolTimeout)
	assert.Equal(t, []string{"#menu a[href]", "ul.links a, ol.links a"}, c.NavSelectors)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PAGESWARM_USERS", "7")
	t.Setenv("PAGESWARM_MAX_HOPS", "5")

	c := load(t)
	assert.Equal(t, 7, c.Users)
	assert.Equal(t, 5, c.MaxHops)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pageswarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: https://shop.test/\nusers: 3\ntimeout: 12s\n"), 0o644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))
	v := viper.New()
	require.NoError(t, Bind(v, fs))
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	c := Load(v)
	assert.Equal(t, "https://shop.test/", c.TargetURL)
	assert.Equal(t, 3, c.Users)
	assert.Equal(t, 12*time.Second, c.NavigationTimeout)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.TargetURL = "ftp://files.test/"
	c.Users = 0
	c.NavigationTimeout = 0
	c.MaxHops = -1
	c.OutputDir = " "
	c.LogLevel = "loud"
	c.LaunchRate = -1
	c.ProtocolTimeout = 0

	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{"scheme", "users", "timeout", "max-hops", "out", "log-level", "launch-rate", "protocol-timeout"} {
		assert.Contains(t, err.Error(), want)
	}

	c = Default()
	c.TargetURL = "https:///path"
	assert.ErrorContains(t, c.Validate(), "host is required")
}

func TestDerivedConfigs(t *testing.T) {
	c := Default()
	c.Seed = 9
	c.SimulateProfiles = false
	c.NavSelectors = []string{".menu a[href]"}

	sc := c.SessionConfig()
	assert.Equal(t, c.TargetURL, sc.TargetURL)
	assert.Equal(t, c.NavigationTimeout, sc.NavigationTimeout)
	assert.Equal(t, c.MaxHops, sc.MaxHops)
	assert.False(t, sc.SimulateProfiles)
	assert.Equal(t, []string{".menu a[href]"}, sc.NavSelectors)

	rc := c.RunnerConfig()
	assert.Equal(t, 10, rc.Users)
	assert.Equal(t, int64(9), rc.Seed)
}

func TestCatalog(t *testing.T) {
	cat, err := Default().Catalog()
	require.NoError(t, err)
	assert.Len(t, cat, 5)

	c := Default()
	c.ProfilesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = c.Catalog()
	assert.Error(t, err)
}
