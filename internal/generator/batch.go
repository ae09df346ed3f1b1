package generator

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kauntdewn1/neo-prompts/internal/domain"
)

// RunBatch fans the requests out with at most maxConcurrent pipelines in
// flight. The report holds exactly one item per request, in request order.
// One request's failure never cancels its siblings; a cancelled context
// finishes the remaining requests as cancelled results.
func (g *Generator) RunBatch(ctx context.Context, reqs []domain.GenerationRequest, maxConcurrent int) *domain.BatchReport {
	start := time.Now()
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	items := make([]domain.GenerationResult, len(reqs))

	var group errgroup.Group
	group.SetLimit(maxConcurrent)
	for i := range reqs {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				items[i] = domain.GenerationResult{
					Prompt: reqs[i].Prompt,
					State:  domain.StateCancelled,
					Err:    fmt.Errorf("generator: batch item %d: %w", i+1, err),
				}
				return nil
			}
			items[i] = *g.Generate(ctx, reqs[i])
			return nil
		})
	}
	group.Wait()

	report := &domain.BatchReport{Items: items, Elapsed: time.Since(start)}
	for i := range items {
		switch items[i].State {
		case domain.StateSucceeded:
			report.Succeeded++
		case domain.StateCancelled:
			report.Cancelled++
		default:
			report.Failed++
		}
	}
	g.logger.Info().
		Int("prompts", len(reqs)).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("cancelled", report.Cancelled).
		Dur("elapsed", report.Elapsed).
		Msg("generator: batch finished")
	return report
}

// LoadBatchFile reads a batch prompts file: one prompt per line, blank
// lines and `#` comments skipped, line order preserved.
func LoadBatchFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.NewConfigError("prompts file", "%v", err)
	}
	defer f.Close()

	var prompts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("generator: read prompts file: %w", err)
	}
	if len(prompts) == 0 {
		return nil, domain.NewConfigError("prompts file", "%s holds no prompts", path)
	}
	return prompts, nil
}
