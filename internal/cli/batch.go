package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/safeguard/internal/model"
	"github.com/ppiankov/safeguard/internal/report"
	"github.com/ppiankov/safeguard/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	batchContext model.UserContext
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Evaluate many texts from a file in parallel",
	Long: `Batch evaluates one text per line:
- Blank lines and lines starting with # are skipped, duplicates removed
- Texts are evaluated in parallel with a configurable worker count
- Each result is written as JSON to the output directory

Example:
  safeguard batch answers.txt
  safeguard batch answers.txt --concurrency 8 --output-dir ./results`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.batch_workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory for results (default: output.dir)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	addContextFlags(batchCmd, &batchContext)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	if concurrency <= 0 {
		concurrency = appConfig.Concurrency.BatchWorkers
	}
	if outputDir == "" {
		outputDir = appConfig.Output.Dir
	}

	p, shutdown, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "⚙️  Evaluating %s with %d workers...\n", file, concurrency)

	processor := worker.NewBatchProcessor(p, concurrency)
	results, err := processor.ProcessFile(ctx, file, batchContext)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	counts := make(map[model.Decision]int)
	failures := 0

	for _, result := range results {
		if result.Error != nil {
			failures++
			fmt.Fprintf(stderr, "✗ #%d: %v\n", result.Index+1, result.Error)
			continue
		}

		path := filepath.Join(outputDir, report.Filename(result.Index, result.Content))
		if err := report.WriteJSONFile(path, result.Result); err != nil {
			failures++
			fmt.Fprintf(stderr, "✗ #%d: failed to write JSON: %v\n", result.Index+1, err)
			continue
		}

		counts[result.Result.Decision]++
		fmt.Fprintf(stderr, "✓ #%d %s (risk %d)\n", result.Index+1, result.Result.Decision, result.Result.RiskScore)
	}

	fmt.Fprintln(stderr)
	return report.NewTerminal(cmd.OutOrStdout(), appConfig.Output.NoColor).BatchSummary(counts, failures, outputDir)
}
