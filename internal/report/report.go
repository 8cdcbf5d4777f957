// Package report turns the final result set into a summary and a results
// table. Everything here is a pure function of the results.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pageswarm/internal/runner"
	"pageswarm/internal/stats"
	"pageswarm/internal/tui/styles"
)

// CSVHeader is the first row of the results table.
var CSVHeader = []string{"User ID", "Success", "Load Time (ms)", "Error", "Profile", "Screenshot"}

type ProfileCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary aggregates a run. Load-time figures cover successful sessions only.
type Summary struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`

	MeanLoadTimeMs float64 `json:"mean_load_time_ms"`
	P50LoadTimeMs  int64   `json:"p50_load_time_ms"`
	P90LoadTimeMs  int64   `json:"p90_load_time_ms"`
	P99LoadTimeMs  int64   `json:"p99_load_time_ms"`
	MaxLoadTimeMs  int64   `json:"max_load_time_ms"`

	// Profiles is in first-seen order.
	Profiles []ProfileCount  `json:"profiles"`
	Failures []runner.Result `json:"failures,omitempty"`
}

func Summarize(results []runner.Result) Summary {
	st := stats.NewStats()
	s := Summary{Total: len(results)}
	index := make(map[string]int)

	for _, r := range results {
		st.Add(r.Success, r.LoadTime)
		if !r.Success {
			s.Failures = append(s.Failures, r)
		}

		i, ok := index[r.Profile]
		if !ok {
			i = len(s.Profiles)
			index[r.Profile] = i
			s.Profiles = append(s.Profiles, ProfileCount{Name: r.Profile})
		}
		s.Profiles[i].Count++
	}

	s.Successful = int(st.Success)
	s.Failed = int(st.Fail)
	s.SuccessRate = st.SuccessRate()
	s.MeanLoadTimeMs = st.MeanLoadTimeMs()
	if st.LoadTime.TotalCount() > 0 {
		s.P50LoadTimeMs = st.GetP50LoadTime()
		s.P90LoadTimeMs = st.GetP90LoadTime()
		s.P99LoadTimeMs = st.GetP99LoadTime()
		s.MaxLoadTimeMs = st.LoadTime.Max()
	}
	return s
}

// RenderSummary renders the end-of-run block printed to the console.
func RenderSummary(target string, s Summary) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styles.Active.Render("===== LOAD TEST SUMMARY ====="))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Website: %s\n", target)
	fmt.Fprintf(&b, "Total users tested: %d\n", s.Total)
	fmt.Fprintf(&b, "Successful: %s\n", styles.Success.Render(fmt.Sprintf("%d (%.2f%%)", s.Successful, s.SuccessRate)))

	failed := strconv.Itoa(s.Failed)
	if s.Failed > 0 {
		failed = styles.Error.Render(failed)
	}
	fmt.Fprintf(&b, "Failed: %s\n", failed)
	fmt.Fprintf(&b, "Average load time: %s ms\n", styles.Value.Render(fmt.Sprintf("%.2f", s.MeanLoadTimeMs)))
	if s.Successful > 0 {
		b.WriteString(styles.Subtle.Render(fmt.Sprintf("P50: %d ms | P90: %d ms | P99: %d ms | Max: %d ms",
			s.P50LoadTimeMs, s.P90LoadTimeMs, s.P99LoadTimeMs, s.MaxLoadTimeMs)))
		b.WriteString("\n")
	}

	b.WriteString("\n--- Profile Usage ---\n")
	for _, p := range s.Profiles {
		fmt.Fprintf(&b, "%s: %d users\n", p.Name, p.Count)
	}

	if len(s.Failures) > 0 {
		b.WriteString("\nFailed users:\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "User %d: %s [Profile: %s]\n", f.UserID, styles.Error.Render(f.Error), f.Profile)
		}
	}
	return b.String()
}

// WriteCSV writes the results table. The screenshot column is empty for
// failed sessions.
func WriteCSV(w io.Writer, results []runner.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	for _, r := range results {
		screenshot := r.Screenshot
		if !r.Success {
			screenshot = ""
		}
		record := []string{
			strconv.Itoa(r.UserID),
			strconv.FormatBool(r.Success),
			strconv.FormatInt(r.LoadTimeMs(), 10),
			r.Error,
			r.Profile,
			screenshot,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
