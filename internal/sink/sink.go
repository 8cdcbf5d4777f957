// Package sink writes run artifacts (snapshots and the results table) to the
// output directory.
package sink

import (
	"fmt"
	"os"
	"path/filepath"

	"pageswarm/internal/report"
	"pageswarm/internal/runner"
)

const ResultsFile = "results.csv"

// Sink is the only resource shared between sessions. Snapshot names are
// unique per user and hop, so concurrent writes never collide.
type Sink struct {
	Dir string
}

func New(dir string) *Sink {
	return &Sink{Dir: dir}
}

// Ensure creates the output directory if it does not exist.
func (s *Sink) Ensure() error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

// SnapshotName is the artifact name of a user's snapshot. Hop 0 is the
// initial page.
func SnapshotName(userID, hop int) string {
	if hop == 0 {
		return fmt.Sprintf("user_%d.png", userID)
	}
	return fmt.Sprintf("user_%d_page%d.png", userID, hop)
}

// WriteSnapshot stores a PNG and returns its path.
func (s *Sink) WriteSnapshot(name string, data []byte) (string, error) {
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// WriteResults overwrites the results table and returns its path.
func (s *Sink) WriteResults(results []runner.Result) (string, error) {
	path := filepath.Join(s.Dir, ResultsFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create results file: %w", err)
	}
	defer f.Close()

	if err := report.WriteCSV(f, results); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close results file: %w", err)
	}
	return path, nil
}
