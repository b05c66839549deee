package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/safeguard/internal/model"
	"github.com/ppiankov/safeguard/internal/pipeline"
	"github.com/ppiankov/safeguard/internal/report"
)

var (
	evalFile      string
	evalURL       string
	evalJSON      string
	evalTimeout   time.Duration
	respectRobots bool
	evalContext   model.UserContext
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate [text]",
	Short: "Evaluate a piece of health-related content",
	Long: `Evaluate runs the safety gate on one piece of content and prints the
decision, severity, risk score, evidence and explanation.

Content comes from the arguments, --file, --url, or standard input.

Example:
  safeguard evaluate "Take 500mg paracetamol for fever"
  safeguard evaluate --file answer.txt --age 34 --symptoms "fever" --timeframe "2 days"
  safeguard evaluate --url https://example.org/health/vitamin-c --json result.json
  echo "Does egg contain vitamin B12?" | safeguard evaluate --json -`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evalFile, "file", "", "read content from a file")
	evaluateCmd.Flags().StringVar(&evalURL, "url", "", "fetch content from a URL")
	evaluateCmd.Flags().StringVar(&evalJSON, "json", "", `write the JSON result to a path ("-" for stdout)`)
	evaluateCmd.Flags().DurationVar(&evalTimeout, "timeout", 2*time.Minute, "overall evaluation timeout")
	evaluateCmd.Flags().BoolVar(&respectRobots, "respect-robots", true, "honor robots.txt when fetching --url")
	addContextFlags(evaluateCmd, &evalContext)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), evalTimeout)
	defer cancel()

	content, err := readContent(ctx, cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	req, err := model.NewEvaluationRequest(content, evalContext)
	if err != nil {
		return err
	}

	p, shutdown, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	result, err := p.Evaluate(ctx, req)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	return writeResult(cmd, evalJSON, result, func(t *report.Terminal) error {
		return t.Evaluation(result)
	})
}

// readContent resolves the content source: arguments, --file, --url, stdin
func readContent(ctx context.Context, stdin io.Reader, args []string) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil

	case evalFile != "":
		data, err := os.ReadFile(evalFile)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", evalFile, err)
		}
		return string(data), nil

	case evalURL != "":
		fetcher := pipeline.NewFetcher(appConfig.HTTP, respectRobots)
		page, err := fetcher.FetchWithRetry(ctx, evalURL)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", evalURL, err)
		}
		return page.Content, nil
	}

	if f, ok := stdin.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", errors.New("no content: pass text, --file, --url, or pipe to stdin")
		}
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// writeResult writes JSON when requested and the terminal summary unless
// JSON went to stdout.
func writeResult(cmd *cobra.Command, jsonPath string, v any, summary func(*report.Terminal) error) error {
	switch jsonPath {
	case "":
	case "-":
		return report.WriteJSON(cmd.OutOrStdout(), v)
	default:
		if err := report.WriteJSONFile(jsonPath, v); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", jsonPath)
	}
	return summary(report.NewTerminal(cmd.OutOrStdout(), appConfig.Output.NoColor))
}
