// Package container decides which container names a user is allowed to
// see. It does not start or stop anything; lifecycle state is read through
// the StateProvider interface.
package container

import (
	"context"

	"github.com/classpod/classpod/internal/config"
)

// StateDefault is the placeholder lifecycle state reported when no status
// provider is wired in.
const StateDefault = "available"

// Container is one visible container with its lifecycle state.
type Container struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// StateProvider reports the lifecycle state of a named container.
type StateProvider interface {
	State(ctx context.Context, name string) string
}

// FixedStateProvider reports the same state for every container.
type FixedStateProvider struct {
	Value string
}

// State returns the fixed state.
func (p FixedStateProvider) State(context.Context, string) string {
	if p.Value == "" {
		return StateDefault
	}
	return p.Value
}

// Catalog filters the configured container rules by group membership.
type Catalog struct {
	rules  []config.ContainerRule
	states StateProvider
}

// NewCatalog creates a Catalog over the configured rules. A nil provider
// falls back to the fixed default state.
func NewCatalog(rules []config.ContainerRule, states StateProvider) *Catalog {
	if states == nil {
		states = FixedStateProvider{}
	}
	return &Catalog{rules: rules, states: states}
}

// VisibleTo returns the containers whose authorized-group set intersects
// groupIDs, in rule order.
func (c *Catalog) VisibleTo(ctx context.Context, groupIDs []string) []Container {
	member := make(map[string]bool, len(groupIDs))
	for _, g := range groupIDs {
		member[g] = true
	}

	visible := []Container{}
	for _, rule := range c.rules {
		for _, g := range rule.Groups {
			if member[g] {
				visible = append(visible, Container{
					Name:  rule.Name,
					State: c.states.State(ctx, rule.Name),
				})
				break
			}
		}
	}

	return visible
}
