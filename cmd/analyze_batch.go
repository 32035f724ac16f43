package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/adpulse-cli/internal/analysis"
	"github.com/KaramelBytes/adpulse-cli/internal/parser"
	"github.com/KaramelBytes/adpulse-cli/internal/utils"
)

var (
	abFormat     string
	abOutputDir  string
	abDelimiter  string
	abSheetName  string
	abSheetIndex int
	abWorkers    int
	abQuiet      bool
	abFailFast   bool
	abRules      ruleFlags
)

type batchResult struct {
	path string
	rep  *analysis.Report
	err  error
}

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze several exports concurrently",
	Long: `Analyze-batch expands the given globs, analyzes every matched file with a
bounded worker pool and prints the reports in sorted path order. Failures are
reported per file; the command exits non-zero if any file failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return errors.New("no input files matched")
		}
		delim, err := parser.ParseDelimiter(abDelimiter)
		if err != nil {
			return err
		}
		rules, err := abRules.apply(cmd, configuredRules())
		if err != nil {
			return err
		}
		format := outputFormat(abFormat)
		workers := abWorkers
		if workers <= 0 && cfg != nil {
			workers = cfg.BatchWorkers
		}
		if workers <= 0 {
			workers = 1
		}

		opt := analysis.Options{Parser: parser.Options{Delimiter: delim}, Rules: rules}
		sopt := sourceOptions(abSheetName, abSheetIndex, nil)
		results := make([]batchResult, len(files))

		var mu sync.Mutex
		done := 0
		progress := func(path string, err error) {
			if abQuiet {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			done++
			status := "✓"
			if err != nil {
				status = "✗"
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s %s\n", done, len(files), status, filepath.Base(path))
		}

		g, gctx := errgroup.WithContext(commandContext(cmd))
		g.SetLimit(workers)
		for i, path := range files {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					results[i] = batchResult{path: path, err: err}
					return nil
				}
				rep, err := analyzeSource(gctx, path, sopt, opt)
				results[i] = batchResult{path: path, rep: rep, err: err}
				progress(path, err)
				if err != nil && abFailFast {
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", r.path, r.err)
				continue
			}
			if err := emitBatchReport(cmd, r, format); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(files))
		}
		return nil
	},
}

func emitBatchReport(cmd *cobra.Command, r batchResult, format string) error {
	out, err := r.rep.Render(format)
	if err != nil {
		return err
	}
	if abOutputDir == "" {
		if format == "markdown" || format == "md" || format == "text" {
			fmt.Fprintf(cmd.OutOrStdout(), "==> %s <==\n", r.path)
		}
		return writeReport(cmd.OutOrStdout(), out)
	}
	outFile := uniqueReportPath(abOutputDir, r.path, extension(format))
	if err := utils.SafeWriteFile(outFile, out); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if !abQuiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", outFile)
	}
	return nil
}

// expandInputs resolves globs, keeps literal paths that exist, removes
// duplicates and sorts the result.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.IsDir() {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

// uniqueReportPath names the report after the input and appends __2, __3, ...
// when a file with that name already exists.
func uniqueReportPath(dir, input, ext string) string {
	base := filepath.Base(input)
	safe := strings.TrimSuffix(base, filepath.Ext(base))
	outFile := filepath.Join(dir, safe+".report"+ext)
	if _, err := os.Stat(outFile); err != nil {
		return outFile
	}
	for idx := 2; ; idx++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s__%d.report%s", safe, idx, ext))
		if _, err := os.Stat(cand); os.IsNotExist(err) {
			return cand
		}
	}
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	f := analyzeBatchCmd.Flags()
	f.StringVarP(&abFormat, "format", "f", "", "report format: markdown|json|yaml (default from config)")
	f.StringVar(&abOutputDir, "output-dir", "", "write one report per input into this directory")
	f.StringVar(&abDelimiter, "delimiter", "", "field delimiter: ',' | ';' | 'tab' | '|' (auto-detect if omitted)")
	f.StringVar(&abSheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	f.IntVar(&abSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	f.IntVar(&abWorkers, "workers", 0, "concurrent analyses (default from config batch_workers)")
	f.BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
	f.BoolVar(&abFailFast, "fail-fast", false, "stop at the first failing file")
	addRuleFlags(analyzeBatchCmd, &abRules)
}

