// Package agents runs the fixed pipeline of analysis passes that turns
// an indexed document into a knowledge-base markdown document.
package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rfp-ai/server/internal/index"
	"github.com/rfp-ai/server/internal/llm"
)

// Workspace carries the caller-supplied context for an analysis run.
type Workspace struct {
	Name        string
	Description string
}

// Options tunes orchestration behavior.
type Options struct {
	// TopK chunks retrieved per pass.
	TopK int
	// Concurrency bounds parallel passes.
	Concurrency int
	// MaxRetries per pass on generation failure.
	MaxRetries int
}

func (o *Options) defaults() {
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 3
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
}

// Orchestrator executes the analysis roster over an indexed document.
type Orchestrator struct {
	generator llm.Generator
	idx       index.Index
	roster    []Pass
	opts      Options
	log       *zap.Logger
}

// NewOrchestrator creates an orchestrator with the given roster. The
// roster is sorted by rank once at construction.
func NewOrchestrator(generator llm.Generator, idx index.Index, roster []Pass, opts Options, log *zap.Logger) *Orchestrator {
	opts.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	sorted := make([]Pass, len(roster))
	copy(sorted, roster)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })
	return &Orchestrator{
		generator: generator,
		idx:       idx,
		roster:    sorted,
		opts:      opts,
		log:       log,
	}
}

// MandatoryPassError reports a failed mandatory pass.
type MandatoryPassError struct {
	Pass string
	Err  error
}

func (e *MandatoryPassError) Error() string {
	return fmt.Sprintf("mandatory pass %q failed: %v", e.Pass, e.Err)
}

func (e *MandatoryPassError) Unwrap() error { return e.Err }

// Analyze runs every pass and assembles the knowledge-base markdown.
// Passes execute concurrently; sections are assembled in rank order
// regardless of completion order. An optional pass that exhausts its
// retries contributes a placeholder section; a mandatory one aborts.
func (o *Orchestrator) Analyze(ctx context.Context, documentID uuid.UUID, ws Workspace) (string, error) {
	if len(o.roster) == 0 {
		return "", fmt.Errorf("analysis roster is empty")
	}

	sections := make([]string, len(o.roster))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)

	for i, pass := range o.roster {
		g.Go(func() error {
			out, err := o.runPass(gctx, documentID, pass, ws)
			if err != nil {
				if pass.Mandatory {
					return &MandatoryPassError{Pass: pass.Name, Err: err}
				}
				o.log.Warn("analysis pass degraded to placeholder",
					zap.String("pass", pass.Name), zap.Error(err))
				out = fmt.Sprintf("_Analysis unavailable for this section: %v_", err)
			}
			sections[i] = fmt.Sprintf("## %s\n\n%s", pass.Title, strings.TrimSpace(out))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	return strings.Join(sections, "\n\n") + "\n", nil
}

// runPass retrieves targeted context and generates one section, with
// bounded exponential-backoff retries.
func (o *Orchestrator) runPass(ctx context.Context, documentID uuid.UUID, pass Pass, ws Workspace) (string, error) {
	results, err := o.idx.Query(ctx, documentID, pass.Query, o.opts.TopK)
	if err != nil {
		return "", fmt.Errorf("retrieval failed: %w", err)
	}

	prompt := buildPassPrompt(results, ws)

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(500*time.Millisecond),
			backoff.WithMaxInterval(10*time.Second),
		),
		uint64(o.opts.MaxRetries-1),
	), ctx)

	var out string
	op := func() error {
		var genErr error
		out, genErr = o.generator.Generate(ctx, prompt, pass.Instructions)
		return genErr
	}
	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("generation failed after %d attempts: %w", o.opts.MaxRetries, err)
	}
	return out, nil
}

func buildPassPrompt(results []index.Result, ws Workspace) string {
	var b strings.Builder
	if ws.Name != "" {
		fmt.Fprintf(&b, "Workspace: %s\n", ws.Name)
	}
	if ws.Description != "" {
		fmt.Fprintf(&b, "Workspace description: %s\n", ws.Description)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}

	b.WriteString("Relevant excerpts from the RFP document:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "\n### Excerpt %d:\n%s\n", i+1, r.Chunk.Text)
	}
	b.WriteString("\nProvide your specialized analysis of the document based on these excerpts.")
	return b.String()
}
