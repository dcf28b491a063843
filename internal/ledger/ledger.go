// Package ledger implements the decision ledger (C6): an append-only store
// of DecisionSnapshots keyed by opaque decision_id, with outcome feedback
// bound to a prior snapshot by id.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heimgewebe/indexd/internal/apperr"
	"github.com/heimgewebe/indexd/internal/model"
)

// Ledger is the append-only decision/outcome store. Safe for concurrent
// use; a single mutex guards the snapshot list and both maps, which is adequate at this scale
// per §5 (the ledger append is never the contended resource, the namespace
// store is).
type Ledger struct {
	mu        sync.Mutex
	snapshots []model.DecisionSnapshot
	byID      map[string]int // decision_id -> index into snapshots
	outcomes  map[string]model.DecisionOutcome
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{
		byID:     make(map[string]int),
		outcomes: make(map[string]model.DecisionOutcome),
	}
}

// Record appends snap to the ledger, assigning it a fresh decision_id if
// one is not already set, and returns the stored copy. Snapshots are
// assigned an id under the same critical section that publishes them, so
// ListSnapshots is always monotone in creation order.
func (l *Ledger) Record(snap model.DecisionSnapshot) model.DecisionSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	if snap.DecisionID == "" {
		snap.DecisionID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	l.byID[snap.DecisionID] = len(l.snapshots)
	l.snapshots = append(l.snapshots, snap)
	return snap
}

// ListSnapshots returns every recorded snapshot in creation order.
func (l *Ledger) ListSnapshots() []model.DecisionSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.DecisionSnapshot, len(l.snapshots))
	copy(out, l.snapshots)
	return out
}

// RecordOutcome binds outcome to its decision_id. Fails with
// ErrDecisionNotFound if the id is unknown, or ErrOutcomeAlreadyRecorded
// if an outcome already exists for it — this implementation rejects a
// second write rather than overwriting (§9 open question, resolved).
func (l *Ledger) RecordOutcome(outcome model.DecisionOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byID[outcome.DecisionID]; !ok {
		return fmt.Errorf("decision %q: %w", outcome.DecisionID, apperr.ErrDecisionNotFound)
	}
	if _, ok := l.outcomes[outcome.DecisionID]; ok {
		return fmt.Errorf("decision %q: %w", outcome.DecisionID, apperr.ErrOutcomeAlreadyRecorded)
	}
	if outcome.Timestamp.IsZero() {
		outcome.Timestamp = time.Now().UTC()
	}
	l.outcomes[outcome.DecisionID] = outcome
	return nil
}

// GetOutcome returns the outcome bound to decisionID, if any.
func (l *Ledger) GetOutcome(decisionID string) (model.DecisionOutcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.outcomes[decisionID]
	return o, ok
}

// ListOutcomes returns every recorded outcome. Order is not significant.
func (l *Ledger) ListOutcomes() []model.DecisionOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.DecisionOutcome, 0, len(l.outcomes))
	for _, o := range l.outcomes {
		out = append(out, o)
	}
	return out
}
