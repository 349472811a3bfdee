// pattern: Imperative Shell

package reconcile

import (
	"context"
	"time"
)

// Report describes one reconciliation pass.
type Report struct {
	Result    *Result       `json:"result"`
	Mutations []Mutation    `json:"mutations"`
	Outcomes  []Outcome     `json:"outcomes,omitempty"`
	Summary   Summary       `json:"summary"`
	DryRun    bool          `json:"dry_run"`
	Duration  time.Duration `json:"duration"`
}

// Stages are the two engine steps a pass runs around resolution. The
// Reconciler implements them; hosts may wrap it, for example to hold a lock
// during each step but not while a resolver waits for answers.
type Stages interface {
	Reconcile(ctx context.Context) (*Result, error)
	Apply(ctx context.Context, res *Resolution) ([]Outcome, error)
}

// Pass reconciles, resolves every request with resolver and applies the
// resulting mutations. A partial report is returned alongside any error.
func Pass(ctx context.Context, s Stages, resolver Resolver) (*Report, error) {
	return run(ctx, s, resolver, false)
}

// Plan is Pass without Apply: the report lists the mutations that would be
// made and the registry is left untouched.
func Plan(ctx context.Context, s Stages, resolver Resolver) (*Report, error) {
	return run(ctx, s, resolver, true)
}

func run(ctx context.Context, s Stages, resolver Resolver, dryRun bool) (*Report, error) {
	start := time.Now()
	report := &Report{DryRun: dryRun}
	defer func() { report.Duration = time.Since(start) }()

	result, err := s.Reconcile(ctx)
	report.Result = result
	if err != nil {
		return report, err
	}

	res := NewResolution(result)
	if err := Drive(ctx, res, resolver); err != nil {
		return report, err
	}
	report.Mutations = res.Mutations()
	if dryRun || len(report.Mutations) == 0 {
		return report, nil
	}

	outcomes, err := s.Apply(ctx, res)
	if err != nil {
		return report, err
	}
	report.Outcomes = outcomes
	report.Summary = Summarize(outcomes)
	return report, nil
}
