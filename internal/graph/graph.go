// Package graph builds the dependency DAG for one apply run. It validates the
// whole resource set up front: duplicate identities, references that resolve
// to nothing, and cycles are all fatal manifest errors reported before any
// remote call happens.
package graph

import (
	"fmt"

	vperrors "github.com/systmms/vaultops/internal/errors"
	"github.com/systmms/vaultops/internal/resource"
)

// Node is one resource in the DAG together with its resolved edges.
type Node struct {
	Resource *resource.Resource
	// DependsOn holds producer identities that must reach a terminal state
	// before this node is dispatched.
	DependsOn []resource.Identity
	// Dependents holds consumer identities waiting on this node.
	Dependents []resource.Identity
}

// Identity returns the node's resource identity.
func (n *Node) Identity() resource.Identity {
	return n.Resource.Identity()
}

// Graph is the validated DAG for one apply run.
type Graph struct {
	nodes map[resource.Identity]*Node
	order []resource.Identity // manifest document order, kept for stable iteration only
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node for an identity, or nil.
func (g *Graph) Node(id resource.Identity) *Node {
	return g.nodes[id]
}

// Identities returns all identities in manifest document order. Document order
// is never used for correctness, only for deterministic iteration.
func (g *Graph) Identities() []resource.Identity {
	out := make([]resource.Identity, len(g.order))
	copy(out, g.order)
	return out
}

// Roots returns the identities with no unresolved dependencies, eligible for
// immediate dispatch.
func (g *Graph) Roots() []resource.Identity {
	var roots []resource.Identity
	for _, id := range g.order {
		if len(g.nodes[id].DependsOn) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Build wires the parsed resources of one apply invocation into a DAG.
// It fails without partial construction on duplicate identities, unresolved
// references, and cycles.
func Build(resources []*resource.Resource) (*Graph, error) {
	g := &Graph{nodes: make(map[resource.Identity]*Node, len(resources))}

	for _, res := range resources {
		if err := res.Validate(); err != nil {
			return nil, vperrors.ManifestError{
				Kind:     vperrors.ManifestInvalidDocument,
				Identity: res.Identity().String(),
				Message:  err.Error(),
			}
		}
		id := res.Identity()
		if _, exists := g.nodes[id]; exists {
			return nil, vperrors.ManifestError{
				Kind:       vperrors.ManifestDuplicateIdentity,
				Identity:   id.String(),
				Message:    "declared more than once in this manifest",
				Suggestion: "Remove or rename one of the duplicate resources",
			}
		}
		g.nodes[id] = &Node{Resource: res}
		g.order = append(g.order, id)
	}

	// Resolve reference fields into edges. Every reference must point at a
	// resource declared in the same manifest; dangling references are fatal.
	for _, id := range g.order {
		node := g.nodes[id]
		for _, ref := range node.Resource.References() {
			producer, ok := g.nodes[ref]
			if !ok {
				return nil, vperrors.ManifestError{
					Kind:       vperrors.ManifestUnresolvedRef,
					Identity:   id.String(),
					Message:    fmt.Sprintf("references undeclared resource '%s'", ref),
					Suggestion: fmt.Sprintf("Declare a %s resource with path '%s' in the manifest", ref.Kind, ref.Path),
				}
			}
			node.DependsOn = append(node.DependsOn, ref)
			producer.Dependents = append(producer.Dependents, id)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, vperrors.ManifestError{
			Kind:       vperrors.ManifestDependencyCycle,
			Cycle:      cycle,
			Suggestion: "Break the reference loop between these resources",
		}
	}

	return g, nil
}

const (
	colorWhite = iota // unvisited
	colorGray         // on the recursion stack
	colorBlack        // fully explored
)

// findCycle runs a depth-first traversal with a recursion-stack check and
// returns the first cycle found as an ordered identity list (first element
// repeated at the end), or nil.
func (g *Graph) findCycle() []string {
	colors := make(map[resource.Identity]int, len(g.nodes))
	var stack []resource.Identity

	var visit func(id resource.Identity) []string
	visit = func(id resource.Identity) []string {
		colors[id] = colorGray
		stack = append(stack, id)

		for _, dep := range g.nodes[id].DependsOn {
			switch colors[dep] {
			case colorGray:
				// Found a back edge; slice the stack from the repeated node.
				var cycle []string
				for i, onStack := range stack {
					if onStack == dep {
						for _, member := range stack[i:] {
							cycle = append(cycle, member.String())
						}
						break
					}
				}
				return append(cycle, dep.String())
			case colorWhite:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = colorBlack
		return nil
	}

	for _, id := range g.order {
		if colors[id] == colorWhite {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
