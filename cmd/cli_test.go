package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/adpulse-cli/internal/parser"
)

const adsCSV = `Campaign name,Ad name,Spend,Impressions,Clicks,Purchases,Purchase value,Adds to cart
Spring,Hero,100,10000,200,2,120,20
Summer,Promo,40,5000,10,1,30,2
`

// resetFlags restores every flag to its default; cobra keeps bound values and
// Changed state across Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command in an isolated HOME and returns stdout and stderr.
func runCmd(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENROUTER_API_KEY", "")
	return home
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestAnalyzeMarkdown(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "ads.csv", adsCSV)

	out, _, err := runCmd(t, "", "analyze", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[AD PERFORMANCE SUMMARY]")
	assert.Contains(t, out, "Source: ads.csv")
	assert.Contains(t, out, "[INSIGHTS]")
	assert.Contains(t, out, "ROAS is below efficiency guardrail at 1.20.")
	assert.Contains(t, out, "Spring & Hero")
	assert.NotContains(t, out, "[NARRATIVE]")
}

func TestAnalyzeJSONFromStdin(t *testing.T) {
	isolate(t)
	out, _, err := runCmd(t, adsCSV, "analyze", "-", "--format", "json")
	require.NoError(t, err)

	var doc struct {
		Source   string   `json:"source"`
		Headers  []string `json:"headers"`
		Insights []struct {
			Topic    string `json:"topic"`
			Severity string `json:"severity"`
		} `json:"insights"`
		Metrics map[string]float64 `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "stdin", doc.Source)
	assert.Len(t, doc.Headers, 8)
	assert.InDelta(t, 140, doc.Metrics["spend"], 1e-9)
	assert.InDelta(t, 150, doc.Metrics["purchaseValue"], 1e-9)
	require.Len(t, doc.Insights, 2)
	assert.Equal(t, "roas", doc.Insights[0].Topic)
	assert.Equal(t, "conversion", doc.Insights[1].Topic)
}

func TestAnalyzeRuleOverrides(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "ads.csv", adsCSV)

	out, _, err := runCmd(t, "", "analyze", path, "--min-spend", "150", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "topic: meta")
	assert.Contains(t, out, "No critical anomalies detected across paid media rows.")

	_, _, err = runCmd(t, "", "analyze", path, "--min-spend", "-1")
	assert.Error(t, err)
}

func TestAnalyzeWritesOutputFile(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "ads.csv", adsCSV)
	dest := filepath.Join(home, "reports", "ads.md")

	out, errOut, err := runCmd(t, "", "analyze", path, "-o", dest)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "✓ Wrote analysis to")
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(b), "[METRICS]")
}

func TestAnalyzeMalformedInput(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "bad.csv", "Spend,Clicks\n1,2\n3\n")

	_, _, err := runCmd(t, "", "analyze", path)
	var mal *parser.MalformedInputError
	require.True(t, errors.As(err, &mal), "got %v", err)
	assert.Equal(t, 3, mal.Line)
	assert.Contains(t, err.Error(), "bad.csv: input could not be parsed: malformed input at line 3")
}

func TestAnalyzeNarrateMock(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "ads.csv", adsCSV)

	out, _, err := runCmd(t, "", "analyze", path, "--narrate")
	require.NoError(t, err)
	assert.Contains(t, out, "[NARRATIVE]")
	assert.Contains(t, out, "[mock-llm-response]: Source: ads.csv")
}

func TestAnalyzeNarrateMissingKey(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "ads.csv", adsCSV)

	_, _, err := runCmd(t, "", "analyze", path, "--narrate", "--provider", "openrouter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENROUTER_API_KEY")
}

func TestAnalyzeSample(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(adsCSV))
	}))
	defer srv.Close()

	_, _, err := runCmd(t, "", "analyze", "--sample")
	require.Error(t, err)

	_, _, err = runCmd(t, "", "config", "set", "sample_url", srv.URL+"/ads.csv")
	require.NoError(t, err)
	out, _, err := runCmd(t, "", "analyze", "--sample")
	require.NoError(t, err)
	assert.Contains(t, out, "Source: ads.csv")

	_, _, err = runCmd(t, "", "analyze")
	assert.Error(t, err)
}

func TestAnalyzeBatchOrderedOutput(t *testing.T) {
	home := isolate(t)
	writeFile(t, home, "data/b.csv", adsCSV)
	writeFile(t, home, "data/a.csv", strings.ReplaceAll(adsCSV, "Spring", "Autumn"))

	out, errOut, err := runCmd(t, "", "analyze-batch", filepath.Join(home, "data", "*.csv"), "--workers", "2")
	require.NoError(t, err)
	ia := strings.Index(out, "==> "+filepath.Join(home, "data", "a.csv"))
	ib := strings.Index(out, "==> "+filepath.Join(home, "data", "b.csv"))
	require.True(t, ia >= 0 && ib > ia, "reports must follow sorted path order")
	assert.Contains(t, out, "Autumn & Hero")
	assert.Contains(t, errOut, "[2/2]")
}

func TestAnalyzeBatchReportsFailures(t *testing.T) {
	home := isolate(t)
	good := writeFile(t, home, "good.csv", adsCSV)
	bad := writeFile(t, home, "bad.csv", "Spend\n\"1\n")

	out, errOut, err := runCmd(t, "", "analyze-batch", good, bad, "--quiet", "--format", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 files failed")
	assert.Contains(t, errOut, "✗ "+bad)
	assert.Contains(t, out, `"source": "good.csv"`)

	_, _, err = runCmd(t, "", "analyze-batch", filepath.Join(home, "none*.csv"))
	assert.EqualError(t, err, "no input files matched")
}

func TestAnalyzeBatchOutputDirAvoidsOverwrite(t *testing.T) {
	home := isolate(t)
	p1 := writeFile(t, home, "d1/metrics.csv", adsCSV)
	p2 := writeFile(t, home, "d2/metrics.csv", adsCSV)
	outDir := filepath.Join(home, "out")

	_, _, err := runCmd(t, "", "analyze-batch", p1, p2, "--output-dir", outDir, "--quiet")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, "metrics.report.md"))
	assert.FileExists(t, filepath.Join(outDir, "metrics__2.report.md"))
}

func TestConfigSetAndShow(t *testing.T) {
	home := isolate(t)

	_, _, err := runCmd(t, "", "config", "set", "rules.min_spend", "100")
	require.NoError(t, err)
	_, _, err = runCmd(t, "", "config", "set", "api_key", "sk-abcdefgh")
	require.NoError(t, err)
	_, _, err = runCmd(t, "", "config", "set", "narrate_provider", "local")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, ".adpulse", "config.yaml"))

	out, _, err := runCmd(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "rules.min_spend: 100\n")
	assert.Contains(t, out, "api_key: sk-****fgh\n")
	assert.Contains(t, out, "narrate_provider: ollama\n")

	_, _, err = runCmd(t, "", "config", "set", "nope", "1")
	assert.EqualError(t, err, "unknown key: nope")
	_, _, err = runCmd(t, "", "config", "set", "narrate_provider", "bard")
	assert.Error(t, err)
	_, _, err = runCmd(t, "", "config", "set", "rules.fatigue_drop", "2")
	assert.Error(t, err)
}
