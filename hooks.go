package crosswalk

import (
	"sync"

	"github.com/agentstation/crosswalk/pkg/conflict"
	"github.com/agentstation/crosswalk/pkg/reference"
)

// Hook function types for run events
type (
	// ResolvedHook is called after a batch has provisional IDs
	ResolvedHook func(report conflict.Report)

	// MergedHook is called after a merge battery has run
	MergedHook func(report reference.LoopReport)

	// FoldedHook is called after a batch is folded into the canonical table
	FoldedHook func(report reference.FoldReport)

	// ConsolidatedHook is called with the old to new Entity ID mapping of
	// every entity whose ID changed
	ConsolidatedHook func(changed map[int64]int64)
)

// Hooks registers callbacks for run events.
type Hooks interface {
	OnResolved(ResolvedHook)
	OnMerged(MergedHook)
	OnFolded(FoldedHook)
	OnConsolidated(ConsolidatedHook)
}

// hooks manages event callbacks for run events
type hooks struct {
	mu             sync.RWMutex
	onResolved     []ResolvedHook
	onMerged       []MergedHook
	onFolded       []FoldedHook
	onConsolidated []ConsolidatedHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnResolved registers a callback for resolved batches
func (h *hooks) OnResolved(fn ResolvedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onResolved = append(h.onResolved, fn)
}

// OnMerged registers a callback for finished merge batteries
func (h *hooks) OnMerged(fn MergedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onMerged = append(h.onMerged, fn)
}

// OnFolded registers a callback for folded batches
func (h *hooks) OnFolded(fn FoldedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFolded = append(h.onFolded, fn)
}

// OnConsolidated registers a callback for consolidations
func (h *hooks) OnConsolidated(fn ConsolidatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConsolidated = append(h.onConsolidated, fn)
}

func (h *hooks) triggerResolved(r conflict.Report) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onResolved {
		hook(r)
	}
}

func (h *hooks) triggerMerged(r *reference.LoopReport) {
	if r == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onMerged {
		hook(*r)
	}
}

func (h *hooks) triggerFolded(r *reference.FoldReport) {
	if r == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onFolded {
		hook(*r)
	}
}

// triggerConsolidated passes only the entities whose ID changed.
func (h *hooks) triggerConsolidated(mapping map[int64]int64) {
	changed := make(map[int64]int64)
	for old, id := range mapping {
		if old != id {
			changed[old] = id
		}
	}
	if len(changed) == 0 {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onConsolidated {
		hook(changed)
	}
}

// OnResolved registers a callback for resolved batches
func (c *client) OnResolved(fn ResolvedHook) { c.hooks.OnResolved(fn) }

// OnMerged registers a callback for finished merge batteries
func (c *client) OnMerged(fn MergedHook) { c.hooks.OnMerged(fn) }

// OnFolded registers a callback for folded batches
func (c *client) OnFolded(fn FoldedHook) { c.hooks.OnFolded(fn) }

// OnConsolidated registers a callback for consolidations
func (c *client) OnConsolidated(fn ConsolidatedHook) { c.hooks.OnConsolidated(fn) }
