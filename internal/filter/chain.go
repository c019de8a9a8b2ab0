package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"FlatScanner/internal/domain"
)

// Result is the aggregated outcome of a chain. Reasons is empty iff Accepted.
type Result struct {
	Accepted bool
	Reasons  []string
}

// RecordError attributes a rule failure to the expose being evaluated.
type RecordError struct {
	ExposeID int64
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("expose %d: %v", e.ExposeID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Chain is an ordered, read-only list of rules. It is safe for concurrent use as long as
// the stores behind its rules are.
type Chain struct {
	rules  []Rule
	logger *slog.Logger
}

// Rules returns a copy of the rules in evaluation order.
func (c *Chain) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Len returns the number of rules.
func (c *Chain) Len() int {
	return len(c.rules)
}

// Evaluate runs every rule against the expose, without stopping at the first rejection,
// so all reasons are reported together. Committing rules only record their side effect
// when every rule before them accepted. A failing rule rejects the expose and its error
// is returned as a *RecordError after the remaining rules ran.
func (c *Chain) Evaluate(ctx context.Context, expose domain.Expose) (Result, error) {
	result := Result{Accepted: true}
	var errs []error

	for _, rule := range c.rules {
		var (
			verdict Verdict
			err     error
		)
		if committing, ok := rule.(CommittingRule); ok {
			verdict, err = committing.EvaluateCommit(ctx, expose, result.Accepted)
		} else {
			verdict, err = rule.Evaluate(ctx, expose)
		}
		if err != nil {
			result.Accepted = false
			result.Reasons = append(result.Reasons, fmt.Sprintf("Rule %s failed: %v.", rule.Name(), err))
			errs = append(errs, fmt.Errorf("rule %s: %w", rule.Name(), err))
			continue
		}
		if !verdict.Accepted {
			result.Accepted = false
			result.Reasons = append(result.Reasons, verdict.Reason)
		}
	}

	if len(errs) > 0 {
		return result, &RecordError{ExposeID: expose.ID, Err: errors.Join(errs...)}
	}
	return result, nil
}

// Filter evaluates every expose in order and returns the accepted ones, keeping their
// relative order. Rejections are logged at debug level. Failures are collected per
// expose and joined; they never stop the batch and a failed expose is never returned.
func (c *Chain) Filter(ctx context.Context, exposes []domain.Expose) ([]domain.Expose, error) {
	filtered := make([]domain.Expose, 0, len(exposes))
	var errs []error

	for _, expose := range exposes {
		result, err := c.Evaluate(ctx, expose)
		if err != nil {
			errs = append(errs, err)
		}
		if result.Accepted {
			filtered = append(filtered, expose)
			continue
		}
		c.debug("excluding expose",
			"title", expose.Label(),
			"id", expose.ID,
			"reasons", "\n - "+strings.Join(result.Reasons, "\n - "))
	}

	return filtered, errors.Join(errs...)
}

func (c *Chain) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
