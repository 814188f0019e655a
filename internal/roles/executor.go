package roles

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Write side of the guild. The reason ends up in the audit log
type RoleEditor interface {
	AddRoles(ctx context.Context, memberId MemberId, roles []RoleId, reason string) error
	RemoveRoles(ctx context.Context, memberId MemberId, roles []RoleId, reason string) error
}

type Outcome struct {
	Diff RoleDiff
	// Set only when the corresponding operation was attempted and succeeded
	Added   []Role
	Removed []Role
	Errors  []*ActionFailure
}

func (outcome *Outcome) Failed() bool {
	return len(outcome.Errors) > 0
}

type ExecutionReport struct {
	DryRun   bool
	Outcomes []Outcome
}

func (report *ExecutionReport) Failures() int {
	count := 0
	for i := range report.Outcomes {
		if report.Outcomes[i].Failed() {
			count++
		}
	}
	return count
}

type Executor struct {
	editor      RoleEditor
	parallelism int
}

func NewExecutor(editor RoleEditor, parallelism int) Executor {
	if parallelism < 1 {
		parallelism = 1
	}
	return Executor{editor: editor, parallelism: parallelism}
}

// Apply the diffs, or only describe them if dryRun is set. A failure for one
// member or operation is recorded and never stops the others. Outcomes follow
// the member order of diffs regardless of completion order
func (executor *Executor) Apply(ctx context.Context, diffs []RoleDiff, dryRun bool, reason string) ExecutionReport {

	report := ExecutionReport{DryRun: dryRun, Outcomes: make([]Outcome, len(diffs))}
	for i, diff := range diffs {
		report.Outcomes[i].Diff = diff
	}
	if dryRun {
		log.Info().Int("members", len(diffs)).Msg("Dry run, not applying role changes")
		return report
	}

	group := errgroup.Group{}
	group.SetLimit(executor.parallelism)
	for i := range report.Outcomes {
		outcome := &report.Outcomes[i]
		if outcome.Diff.Empty() {
			continue
		}
		group.Go(func() error {
			executor.applyOne(ctx, outcome, reason)
			return nil
		})
	}
	group.Wait()

	log.Info().Int("members", len(diffs)).Int("failures", report.Failures()).Msg("Applied role changes")
	return report
}

func (executor *Executor) applyOne(ctx context.Context, outcome *Outcome, reason string) {

	diff := outcome.Diff

	if len(diff.ToAdd) > 0 {
		if err := executor.editor.AddRoles(ctx, diff.MemberId, RoleIds(diff.ToAdd), reason); err != nil {
			failure := &ActionFailure{MemberId: diff.MemberId, Operation: OperationAdd, Roles: diff.ToAdd, Err: err}
			log.Warn().Err(err).Str("member", string(diff.MemberId)).Strs("roles", RoleNames(diff.ToAdd)).Msg("Could not add roles")
			outcome.Errors = append(outcome.Errors, failure)
		} else {
			outcome.Added = diff.ToAdd
		}
	}

	if len(diff.ToRemove) > 0 {
		if err := executor.editor.RemoveRoles(ctx, diff.MemberId, RoleIds(diff.ToRemove), reason); err != nil {
			failure := &ActionFailure{MemberId: diff.MemberId, Operation: OperationRemove, Roles: diff.ToRemove, Err: err}
			log.Warn().Err(err).Str("member", string(diff.MemberId)).Strs("roles", RoleNames(diff.ToRemove)).Msg("Could not remove roles")
			outcome.Errors = append(outcome.Errors, failure)
		} else {
			outcome.Removed = diff.ToRemove
		}
	}
}

// All failures of the report joined, nil if everything went through
func (report *ExecutionReport) Err() error {
	var errs []error
	for i := range report.Outcomes {
		for _, failure := range report.Outcomes[i].Errors {
			errs = append(errs, failure)
		}
	}
	return errors.Join(errs...)
}
