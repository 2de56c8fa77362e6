// Package report renders reconciliation progress and the run summary for the
// console.
package report

import (
	"sort"
	"time"

	"github.com/systmms/vaultops/internal/logging"
	"github.com/systmms/vaultops/internal/reconcile"
	"github.com/systmms/vaultops/internal/resource"
)

const roundTo = 10 * time.Millisecond

// Console streams reconciliation events to the logger as they arrive.
type Console struct {
	logger *logging.Logger
}

// NewConsole creates a console reporter.
func NewConsole(logger *logging.Logger) *Console {
	return &Console{logger: logger}
}

// Stream consumes events until the channel closes. The reconciler closes the
// channel when the run finishes, so Stream is typically run in its own
// goroutine alongside Run.
func (c *Console) Stream(events <-chan reconcile.Event) {
	for ev := range events {
		switch ev.Phase {
		case reconcile.PhaseStarted:
			c.logger.Debug("%s %s '%s'", actionLabel(ev.Action), ev.Kind, ev.Identity.Path)
		case reconcile.PhaseSucceeded:
			c.logger.Info("%s %s '%s': done", actionLabel(ev.Action), ev.Kind, ev.Identity.Path)
		case reconcile.PhaseFailed:
			c.logger.Error("%s '%s' failed: %v", ev.Kind, ev.Identity.Path, ev.Cause)
		}
	}
}

// Summarize prints the end-of-run totals and lists every failed resource.
func (c *Console) Summarize(summary *reconcile.Summary) {
	if summary.OK() {
		c.logger.Info("Applied %d resources in %s (run %s)",
			summary.Total, summary.Elapsed.Round(roundTo), summary.RunID)
		return
	}

	c.logger.Error("Applied %d of %d resources, %d failed (run %s)",
		summary.Succeeded, summary.Total, summary.Failed, summary.RunID)
	for _, id := range sortedFailures(summary) {
		c.logger.Error("  %s: %v", id, summary.Results[id].Err)
	}
}

func actionLabel(a reconcile.Action) string {
	switch a {
	case reconcile.ActionCreate:
		return "Creating"
	case reconcile.ActionUpdate:
		return "Updating"
	case reconcile.ActionVerify:
		return "Verifying"
	case reconcile.ActionRegenerate:
		return "Regenerating"
	}
	return "Reconciling"
}

func sortedFailures(summary *reconcile.Summary) []resource.Identity {
	var failed []resource.Identity
	for id, result := range summary.Results {
		if result.Failed() {
			failed = append(failed, id)
		}
	}
	sort.Slice(failed, func(i, j int) bool {
		if failed[i].Kind != failed[j].Kind {
			return failed[i].Kind < failed[j].Kind
		}
		return failed[i].Path < failed[j].Path
	})
	return failed
}
