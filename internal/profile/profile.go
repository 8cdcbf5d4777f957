package profile

import (
	"errors"
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultProfileName labels sessions that run with driver defaults.
	DefaultProfileName = "Default"
	// UnknownProfileName labels results synthesized for crashed sessions.
	UnknownProfileName = "Unknown"
)

type Viewport struct {
	Width  int64 `yaml:"width" json:"width"`
	Height int64 `yaml:"height" json:"height"`
}

type Location struct {
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}

// Profile is a bundled client identity applied to one session.
type Profile struct {
	Name           string   `yaml:"name" json:"name"`
	UserAgent      string   `yaml:"userAgent" json:"userAgent"`
	Viewport       Viewport `yaml:"viewport" json:"viewport"`
	AcceptLanguage string   `yaml:"acceptLanguage" json:"acceptLanguage"`
	Timezone       string   `yaml:"timezone" json:"timezone"`
	Location       Location `yaml:"location" json:"location"`
}

// Catalog is the fixed set of identities a run draws from.
type Catalog []Profile

// DefaultCatalog returns the built-in identities.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			Name:           "US - Chrome",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Viewport:       Viewport{Width: 1920, Height: 1080},
			AcceptLanguage: "en-US,en;q=0.9",
			Timezone:       "America/New_York",
			Location:       Location{Latitude: 40.7128, Longitude: -74.006},
		},
		{
			Name:           "UK - Firefox",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
			Viewport:       Viewport{Width: 1366, Height: 768},
			AcceptLanguage: "en-GB,en;q=0.5",
			Timezone:       "Europe/London",
			Location:       Location{Latitude: 51.5074, Longitude: -0.1278},
		},
		{
			Name:           "Germany - Safari",
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
			Viewport:       Viewport{Width: 1440, Height: 900},
			AcceptLanguage: "de-DE,de;q=0.9,en;q=0.8",
			Timezone:       "Europe/Berlin",
			Location:       Location{Latitude: 52.52, Longitude: 13.405},
		},
		{
			Name:           "Japan - Edge",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
			Viewport:       Viewport{Width: 1536, Height: 864},
			AcceptLanguage: "ja-JP,ja;q=0.9,en;q=0.8",
			Timezone:       "Asia/Tokyo",
			Location:       Location{Latitude: 35.6762, Longitude: 139.6503},
		},
		{
			Name:           "Canada - Mobile",
			UserAgent:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
			Viewport:       Viewport{Width: 390, Height: 844},
			AcceptLanguage: "en-CA,en;q=0.9",
			Timezone:       "America/Toronto",
			Location:       Location{Latitude: 43.6532, Longitude: -79.3832},
		},
	}
}

// Select picks a profile uniformly at random, with replacement.
// It returns false when simulation is disabled or the catalog is empty.
func (c Catalog) Select(rng *rand.Rand, enabled bool) (Profile, bool) {
	if !enabled || len(c) == 0 {
		return Profile{}, false
	}
	return c[rng.Intn(len(c))], true
}

// Names returns the profile names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, p := range c {
		names[i] = p.Name
	}
	return names
}

// Validate reports every malformed entry.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return errors.New("profile catalog is empty")
	}
	var errs []error
	for i, p := range c {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("profile %d: name is required", i))
		}
		if p.UserAgent == "" {
			errs = append(errs, fmt.Errorf("profile %d (%s): userAgent is required", i, p.Name))
		}
		if p.Viewport.Width <= 0 || p.Viewport.Height <= 0 {
			errs = append(errs, fmt.Errorf("profile %d (%s): viewport must be positive", i, p.Name))
		}
	}
	return errors.Join(errs...)
}

type catalogFile struct {
	Profiles Catalog `yaml:"profiles"`
}

// LoadCatalog reads a YAML catalog of the form `profiles: [...]`.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile catalog: %w", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profile catalog %s: %w", path, err)
	}
	if err := f.Profiles.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile catalog %s: %w", path, err)
	}
	return f.Profiles, nil
}
