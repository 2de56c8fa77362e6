// Package reconcile drives every resource of one apply run through its state
// machine: Pending -> Waiting -> Fetching -> (Creating | Updating | Verifying |
// Regenerating) -> Succeeded | Failed. Ordering is enforced purely by the
// dependency edges of the graph; concurrency across independent subgraphs is
// bounded by the configured number of in-flight gateway calls.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	vperrors "github.com/systmms/vaultops/internal/errors"
	"github.com/systmms/vaultops/internal/graph"
	"github.com/systmms/vaultops/internal/logging"
	"github.com/systmms/vaultops/internal/metrics"
	"github.com/systmms/vaultops/internal/resource"
	"github.com/systmms/vaultops/internal/vault"
)

// DefaultMaxConcurrent bounds in-flight gateway calls when no explicit limit
// is configured, to avoid overwhelming the Vault server.
const DefaultMaxConcurrent = 10

// Options configure one apply run.
type Options struct {
	// MaxConcurrent is the maximum number of simultaneously in-flight
	// gateway calls. Zero selects DefaultMaxConcurrent.
	MaxConcurrent int
	// Events receives progress notifications when non-nil. Run closes the
	// channel after the last event.
	Events chan<- Event
	// RunID tags the summary; a fresh UUID is assigned when empty.
	RunID string
}

// Reconciler walks a dependency graph and converges each resource through the
// gateway, emitting one terminal event per resource.
type Reconciler struct {
	gateway vault.Gateway
	logger  *logging.Logger
	opts    Options
}

// New creates a reconciler.
func New(gateway vault.Gateway, logger *logging.Logger, opts Options) *Reconciler {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Reconciler{gateway: gateway, logger: logger, opts: opts}
}

// nodeState is the completion record for one identity. It is written exactly
// once by the identity's own worker before done is closed, and read by every
// dependent afterwards.
type nodeState struct {
	done   chan struct{}
	result Result
}

// Run reconciles the graph. It always terminates: every node reaches exactly
// one terminal state even when some fail or the context is cancelled. The
// returned summary reports per-resource outcomes; Run itself only errors on
// internal invariant violations, never on per-resource failures.
func (r *Reconciler) Run(ctx context.Context, g *graph.Graph) (*Summary, error) {
	start := time.Now()

	states := make(map[resource.Identity]*nodeState, g.Len())
	for _, id := range g.Identities() {
		states[id] = &nodeState{done: make(chan struct{})}
	}

	sem := make(chan struct{}, r.opts.MaxConcurrent)

	var group errgroup.Group
	for _, id := range g.Identities() {
		node := g.Node(id)
		st := states[id]
		group.Go(func() error {
			defer close(st.done)
			st.result = r.reconcileNode(ctx, node, states, sem)
			return nil
		})
	}
	_ = group.Wait()

	if r.opts.Events != nil {
		close(r.opts.Events)
	}

	summary := &Summary{
		RunID:   r.opts.RunID,
		Total:   g.Len(),
		Elapsed: time.Since(start),
		Results: make(map[resource.Identity]Result, g.Len()),
	}
	for id, st := range states {
		summary.Results[id] = st.result
		if st.result.Failed() {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	return summary, nil
}

// reconcileNode runs the state machine for a single resource and returns its
// terminal result.
func (r *Reconciler) reconcileNode(
	ctx context.Context,
	node *graph.Node,
	states map[resource.Identity]*nodeState,
	sem chan struct{},
) Result {
	id := node.Identity()
	opStart := time.Now()

	// Waiting: block until every dependency is terminal. A failed dependency
	// fails this node without any gateway call; cancellation fails it with a
	// cancelled cause.
	for _, dep := range node.DependsOn {
		depState := states[dep]
		select {
		case <-depState.done:
			if depState.result.Failed() {
				err := vperrors.Blocked(id.Path, dep.Path, depState.result.Err)
				return r.finish(id, node.Resource.Kind, "", err, opStart)
			}
		case <-ctx.Done():
			return r.finish(id, node.Resource.Kind, "", vperrors.ErrCancelled, opStart)
		}
	}

	// Fetching: read the remote representation under the concurrency bound.
	remote, err := r.withSlot(ctx, sem, func(ctx context.Context) (*vault.RemoteState, error) {
		return r.gateway.Fetch(ctx, node.Resource)
	})
	if err != nil {
		return r.finish(id, node.Resource.Kind, "", err, opStart)
	}

	action, err := decideAction(node.Resource, remote)
	if err != nil {
		return r.finish(id, node.Resource.Kind, "", err, opStart)
	}

	r.emit(Event{Identity: id, Kind: node.Resource.Kind, Phase: PhaseStarted, Action: action})
	r.logger.Debug("%s %s", action, id)

	switch action {
	case ActionVerify:
		// No write needed; the remote object already matches.
	case ActionCreate:
		_, err = r.withSlot(ctx, sem, func(ctx context.Context) (*vault.RemoteState, error) {
			return r.gateway.Create(ctx, node.Resource)
		})
	case ActionUpdate, ActionRegenerate:
		_, err = r.withSlot(ctx, sem, func(ctx context.Context) (*vault.RemoteState, error) {
			return r.gateway.Update(ctx, node.Resource, remote)
		})
	}
	return r.finish(id, node.Resource.Kind, action, err, opStart)
}

// withSlot runs one gateway call inside the concurrency bound, honoring
// cancellation while queued.
func (r *Reconciler) withSlot(
	ctx context.Context,
	sem chan struct{},
	call func(context.Context) (*vault.RemoteState, error),
) (*vault.RemoteState, error) {
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, vperrors.ErrCancelled
	}
	defer func() { <-sem }()
	return call(ctx)
}

// finish records the terminal event and metrics for a node.
func (r *Reconciler) finish(id resource.Identity, kind resource.Kind, action Action, err error, started time.Time) Result {
	phase := PhaseSucceeded
	if err != nil {
		phase = PhaseFailed
	}
	r.emit(Event{Identity: id, Kind: kind, Phase: phase, Action: action, Cause: err})
	metrics.RecordResource(string(kind), string(action), string(phase), time.Since(started))
	return Result{Identity: id, Action: action, Err: err}
}

func (r *Reconciler) emit(ev Event) {
	if r.opts.Events != nil {
		r.opts.Events <- ev
	}
}
