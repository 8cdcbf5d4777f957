package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageswarm/internal/runner"
)

func ok(id int, ms int, profile string) runner.Result {
	return runner.Result{
		UserID:     id,
		Success:    true,
		LoadTime:   time.Duration(ms) * time.Millisecond,
		Profile:    profile,
		Screenshot: "out/user.png",
	}
}

func TestSummarize_AllSucceed(t *testing.T) {
	results := []runner.Result{
		ok(1, 500, "US - Chrome"),
		ok(2, 700, "UK - Firefox"),
		ok(3, 900, "US - Chrome"),
	}
	s := Summarize(results)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 3, s.Successful)
	assert.Zero(t, s.Failed)
	assert.InDelta(t, 100.0, s.SuccessRate, 1e-9)
	assert.InDelta(t, 700.0, s.MeanLoadTimeMs, 1e-9)
	assert.InDelta(t, 700, s.P50LoadTimeMs, 5)
	assert.InDelta(t, 900, s.MaxLoadTimeMs, 5)
	assert.Equal(t, []ProfileCount{{"US - Chrome", 2}, {"UK - Firefox", 1}}, s.Profiles)
	assert.Empty(t, s.Failures)

	out := RenderSummary("https://www.example.com/", s)
	assert.Contains(t, out, "===== LOAD TEST SUMMARY =====")
	assert.Contains(t, out, "Website: https://www.example.com/")
	assert.Contains(t, out, "100.00%")
	assert.Contains(t, out, "700.00")
	assert.Contains(t, out, "US - Chrome: 2 users")
	assert.NotContains(t, out, "Failed users")
}

func TestSummarize_NoSuccesses(t *testing.T) {
	results := []runner.Result{
		{UserID: 1, Error: "navigation timeout", Profile: "Default", LoadTime: 30 * time.Second},
		{UserID: 2, Error: "session crashed: boom", Profile: "Unknown"},
	}
	s := Summarize(results)

	assert.Equal(t, 2, s.Failed)
	assert.Zero(t, s.Successful)
	assert.Zero(t, s.SuccessRate)
	assert.Zero(t, s.MeanLoadTimeMs)
	assert.Zero(t, s.MaxLoadTimeMs)
	require.Len(t, s.Failures, 2)
	assert.Equal(t, 1, s.Failures[0].UserID)

	out := RenderSummary("https://t.test/", s)
	assert.Contains(t, out, "0.00")
	assert.Contains(t, out, "Failed users:")
	assert.Contains(t, out, "[Profile: Unknown]")
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.SuccessRate)
	assert.Zero(t, s.MeanLoadTimeMs)
}

func TestSummarize_CountsMatchTotal(t *testing.T) {
	var results []runner.Result
	for i := 1; i <= 25; i++ {
		if i%3 == 0 {
			results = append(results, runner.Result{UserID: i, Error: "x", Profile: "Default"})
			continue
		}
		results = append(results, ok(i, 100*i, "Default"))
	}
	s := Summarize(results)
	assert.Equal(t, s.Total, s.Successful+s.Failed)
	assert.Equal(t, 8, s.Failed)
	assert.Equal(t, []ProfileCount{{"Default", 25}}, s.Profiles)
}

func TestSummarize_Idempotent(t *testing.T) {
	results := []runner.Result{ok(1, 120, "A"), {UserID: 2, Error: "e", Profile: "B"}}
	assert.Equal(t, Summarize(results), Summarize(results))
	assert.Equal(t, RenderSummary("u", Summarize(results)), RenderSummary("u", Summarize(results)))
}

func TestWriteCSV(t *testing.T) {
	results := []runner.Result{
		ok(1, 812, "UK - Firefox"),
		{
			UserID:     2,
			LoadTime:   1500 * time.Millisecond,
			Error:      `net::ERR_ABORTED, "frame detached"`,
			Profile:    "Germany, Safari",
			Screenshot: "should/not/appear.png",
		},
		ok(3, 90, "Default"),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(results)+1)

	assert.Equal(t, []string{"User ID", "Success", "Load Time (ms)", "Error", "Profile", "Screenshot"}, rows[0])
	assert.Equal(t, []string{"1", "true", "812", "", "UK - Firefox", "out/user.png"}, rows[1])
	assert.Equal(t, []string{"2", "false", "1500", `net::ERR_ABORTED, "frame detached"`, "Germany, Safari", ""}, rows[2])
	assert.Equal(t, "3", rows[3][0])
}

func TestWriteCSV_Idempotent(t *testing.T) {
	results := []runner.Result{ok(1, 10, "A")}
	var a, b bytes.Buffer
	require.NoError(t, WriteCSV(&a, results))
	require.NoError(t, WriteCSV(&b, results))
	assert.Equal(t, a.String(), b.String())
}

func TestWriteCSV_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "User ID,Success,Load Time (ms),Error,Profile,Screenshot\n", buf.String())
}
