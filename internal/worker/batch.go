package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/safeguard/internal/model"
)

// Evaluator runs one content evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context, req model.EvaluationRequest) (*model.EvaluationResult, error)
}

// EvaluateResult is the outcome of one batch line.
type EvaluateResult struct {
	Index   int
	Content string
	Result  *model.EvaluationResult
	Error   error
}

// BatchProcessor evaluates many texts concurrently
type BatchProcessor struct {
	evaluator   Evaluator
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(evaluator Evaluator, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		evaluator:   evaluator,
		concurrency: concurrency,
	}
}

// ProcessTexts evaluates texts with a shared user context. Results are
// returned in input order.
func (b *BatchProcessor) ProcessTexts(ctx context.Context, texts []string, uc model.UserContext) []*EvaluateResult {
	if len(texts) == 0 {
		return []*EvaluateResult{}
	}

	tasks := make([]Task[*model.EvaluationResult], len(texts))
	for i, text := range texts {
		tasks[i] = func(ctx context.Context) (*model.EvaluationResult, error) {
			req, err := model.NewEvaluationRequest(text, uc)
			if err != nil {
				return nil, err
			}
			return b.evaluator.Evaluate(ctx, req)
		}
	}

	outcomes := NewPool[*model.EvaluationResult](b.concurrency).Run(ctx, tasks)

	out := make([]*EvaluateResult, len(outcomes))
	for i, o := range outcomes {
		out[i] = &EvaluateResult{Index: i, Content: texts[i], Result: o.Value, Error: o.Err}
	}
	return out
}

// ProcessFile reads texts from a file and evaluates them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string, uc model.UserContext) ([]*EvaluateResult, error) {
	texts, err := ReadLinesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read texts: %w", err)
	}

	return b.ProcessTexts(ctx, texts, uc), nil
}

// ReadLinesFromFile reads texts from a file (one per line)
func ReadLinesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return lines, nil
}
