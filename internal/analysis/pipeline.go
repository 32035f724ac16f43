package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/adpulse-cli/internal/parser"
	"github.com/KaramelBytes/adpulse-cli/internal/schema"
)

// Dataset is the parsed form of one input: the header list as read and the
// validated rows.
type Dataset struct {
	Headers []string     `json:"headers" yaml:"headers"`
	Rows    []schema.Row `json:"rows" yaml:"rows"`
}

// Result is the output of one analysis run.
type Result struct {
	Insights []Insight `json:"insights" yaml:"insights"`
	Metrics  Metrics   `json:"metrics" yaml:"metrics"`
}

// Options bundles reader and rule configuration for Run.
type Options struct {
	Parser parser.Options
	Rules  RuleSettings
}

// DefaultOptions sniffs the delimiter and uses the stock rule thresholds.
func DefaultOptions() Options {
	return Options{Parser: parser.DefaultOptions(), Rules: DefaultRuleSettings()}
}

// Parse reads raw text and validates every record. The only error is
// *parser.MalformedInputError.
func Parse(text string, opt parser.Options) (*Dataset, error) {
	tbl, err := parser.ReadCSV(text, opt)
	if err != nil {
		return nil, err
	}
	return &Dataset{Headers: tbl.Headers, Rows: schema.ValidateAll(tbl.Records)}, nil
}

// Analyze aggregates metrics and evaluates insights over rows.
func Analyze(rows []schema.Row, s RuleSettings) Result {
	return Result{Insights: GenerateInsights(rows, s), Metrics: Aggregate(rows)}
}

// Run parses text and analyzes it, computing metrics and insights
// concurrently. Output is identical to Parse followed by Analyze.
func Run(ctx context.Context, text string, opt Options) (*Dataset, *Result, error) {
	ds, err := Parse(text, opt.Parser)
	if err != nil {
		return nil, nil, err
	}
	var res Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		res.Metrics = Aggregate(ds.Rows)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		res.Insights = GenerateInsights(ds.Rows, opt.Rules)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ds, &res, nil
}

// EligibleCount counts rows that pass the spend floor.
func EligibleCount(rows []schema.Row, s RuleSettings) int {
	n := 0
	for _, r := range rows {
		if Eligible(r, s) {
			n++
		}
	}
	return n
}
