package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/adpulse-cli/internal/analysis"
	"github.com/KaramelBytes/adpulse-cli/internal/parser"
	"github.com/KaramelBytes/adpulse-cli/internal/source"
	"github.com/KaramelBytes/adpulse-cli/internal/utils"
)

var (
	anaOutputPath string
	anaFormat     string
	anaDelimiter  string
	anaSheetName  string
	anaSheetIndex int
	anaSample     bool
	anaRules      ruleFlags
	anaTimeoutSec int

	anaNarrate     bool
	anaProvider    string
	anaModel       string
	anaOllamaHost  string
	anaMaxTokens   int
	anaTemperature float64
	anaPromptLimit int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file|-|url]",
	Short: "Analyze an ad-performance export and report insights",
	Long: `Analyze reads a CSV/TSV export (a path, '-' for stdin, an http(s) URL or an
.xlsx workbook), aggregates account metrics and flags rows with weak ROAS,
poor cart conversion or creative fatigue.`,
	Example: `  adpulse analyze ads.csv
  adpulse analyze export.xlsx --sheet-name "Ads" --format json -o report.json
  cat ads.csv | adpulse analyze - --min-spend 100 --narrate --provider ollama`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := analyzeRef(args)
		if err != nil {
			return err
		}
		delim, err := parser.ParseDelimiter(anaDelimiter)
		if err != nil {
			return err
		}
		rules, err := anaRules.apply(cmd, configuredRules())
		if err != nil {
			return err
		}

		ctx := commandContext(cmd)
		if anaTimeoutSec > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(anaTimeoutSec)*time.Second)
			defer cancel()
		}

		rep, err := analyzeSource(ctx, ref, sourceOptions(anaSheetName, anaSheetIndex, cmd.InOrStdin()), analysis.Options{
			Parser: parser.Options{Delimiter: delim},
			Rules:  rules,
		})
		if err != nil {
			return err
		}
		if anaNarrate {
			text, err := narrate(ctx, rep.Name, rep.Result, narrationFlags{
				Provider:    anaProvider,
				Model:       anaModel,
				OllamaHost:  anaOllamaHost,
				MaxTokens:   anaMaxTokens,
				Temperature: anaTemperature,
				PromptLimit: anaPromptLimit,
			})
			if err != nil {
				return err
			}
			rep.Narrative = text
		}

		out, err := rep.Render(outputFormat(anaFormat))
		if err != nil {
			return err
		}
		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote analysis to %s\n", anaOutputPath)
			return nil
		}
		return writeReport(cmd.OutOrStdout(), out)
	},
}

func analyzeRef(args []string) (string, error) {
	switch {
	case anaSample && len(args) > 0:
		return "", errors.New("use either a source argument or --sample, not both")
	case anaSample:
		if cfg == nil || cfg.SampleURL == "" {
			return "", errors.New("--sample needs sample_url (adpulse config set sample_url <url>)")
		}
		return cfg.SampleURL, nil
	case len(args) == 0:
		return "", errors.New("missing source: pass a file, '-' for stdin, a URL, or --sample")
	}
	return args[0], nil
}

// analyzeSource loads ref and runs the full pipeline on it.
func analyzeSource(ctx context.Context, ref string, sopt source.Options, opt analysis.Options) (*analysis.Report, error) {
	log := zerolog.Ctx(ctx)
	in, err := source.Load(ctx, ref, sopt)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}
	ds, res, err := analysis.Run(ctx, in.Text, opt)
	if err != nil {
		var mal *parser.MalformedInputError
		if errors.As(err, &mal) {
			return nil, fmt.Errorf("%s: input could not be parsed: %w", in.Name, err)
		}
		return nil, fmt.Errorf("%s: %w", in.Name, err)
	}
	rep := &analysis.Report{
		Name:    in.Name,
		ID:      uuid.NewString(),
		Dataset: ds,
		Result:  res,
		Rules:   opt.Rules,
	}
	log.Debug().
		Str("analysis_id", rep.ID).
		Str("source", in.Name).
		Int("rows", len(ds.Rows)).
		Int("insights", len(res.Insights)).
		Msg("analysis complete")
	return rep, nil
}

func writeReport(w io.Writer, out []byte) error {
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	_, err := w.Write(out)
	return err
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	f := analyzeCmd.Flags()
	f.StringVarP(&anaOutputPath, "output", "o", "", "write the report to this path instead of stdout")
	f.StringVarP(&anaFormat, "format", "f", "", "report format: markdown|json|yaml (default from config)")
	f.StringVar(&anaDelimiter, "delimiter", "", "field delimiter: ',' | ';' | 'tab' | '|' (auto-detect if omitted)")
	f.StringVar(&anaSheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	f.IntVar(&anaSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	f.BoolVar(&anaSample, "sample", false, "analyze the configured sample_url")
	f.IntVar(&anaTimeoutSec, "timeout-sec", 0, "abort the whole run after this many seconds (0 = no limit)")
	addRuleFlags(analyzeCmd, &anaRules)

	f.BoolVar(&anaNarrate, "narrate", false, "append an LLM-written briefing to the report")
	f.StringVar(&anaProvider, "provider", "", "narration provider: mock|openrouter|ollama (default from config)")
	f.StringVar(&anaModel, "model", "", "narration model id")
	f.StringVar(&anaOllamaHost, "ollama-host", "", "Ollama base URL (default from config)")
	f.IntVar(&anaMaxTokens, "max-tokens", 0, "narration max output tokens (default from config)")
	f.Float64Var(&anaTemperature, "temp", 0, "narration sampling temperature (default from config)")
	f.IntVar(&anaPromptLimit, "prompt-limit", 0, "truncate the narration prompt to about this many tokens")
}
