// Package forget implements the forget engine (C8): policy-guarded,
// auditable deletion of documents matching a filter, with a dry-run mode
// that reports what would be deleted without mutating anything.
package forget

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heimgewebe/indexd/internal/apperr"
	"github.com/heimgewebe/indexd/internal/model"
	"github.com/heimgewebe/indexd/internal/store"
)

// Request is a forget call.
type Request struct {
	Filter  model.ForgetFilter
	Reason  string
	Confirm bool
	DryRun  bool
}

// Engine runs Forget against a Store and keeps an append-only audit log.
type Engine struct {
	store *store.Store
	now   func() time.Time

	mu     sync.Mutex
	audits []model.ForgetAudit
}

// New returns an Engine backed by s.
func New(s *store.Store) *Engine {
	return &Engine{store: s, now: time.Now}
}

// Forget validates req against the admission policy, then — unless
// DryRun — deletes every matching (namespace, doc_id) atomically and
// appends a ForgetAudit regardless of DryRun.
func (e *Engine) Forget(req Request) (model.ForgetAudit, error) {
	if err := admit(req); err != nil {
		return model.ForgetAudit{}, err
	}

	pred := matchPredicate(req.Filter)

	var keys []model.ForgetKey
	if req.DryRun {
		keys = e.store.Match(pred)
	} else {
		keys = e.store.MatchAndDelete(pred)
	}

	audit := model.ForgetAudit{
		AuditID:       uuid.NewString(),
		Filter:        req.Filter,
		Reason:        req.Reason,
		ForgottenDocs: keys,
		Count:         len(keys),
		DryRun:        req.DryRun,
		Timestamp:     e.now().UTC(),
	}

	e.mu.Lock()
	e.audits = append(e.audits, audit)
	e.mu.Unlock()

	return audit, nil
}

// ListAudits returns every recorded ForgetAudit in creation order.
func (e *Engine) ListAudits() []model.ForgetAudit {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.ForgetAudit, len(e.audits))
	copy(out, e.audits)
	return out
}

// admit enforces the three admission rules from §4.8. All rejections
// return ErrInvalidFilter.
func admit(req Request) error {
	if !req.Confirm && !req.DryRun {
		return fmt.Errorf("forget: confirm is required unless dry_run: %w", apperr.ErrInvalidFilter)
	}
	if req.Reason == "" {
		return fmt.Errorf("forget: reason is required: %w", apperr.ErrInvalidFilter)
	}
	if !req.Filter.HasContentFilter() {
		if !req.Filter.AllowNamespaceWipe {
			return fmt.Errorf("forget: a filter with no content filter must set allow_namespace_wipe: %w", apperr.ErrInvalidFilter)
		}
		if req.Filter.Namespace == "" {
			return fmt.Errorf("forget: a namespace wipe must specify a namespace: %w", apperr.ErrInvalidFilter)
		}
	}
	return nil
}

func matchPredicate(filter model.ForgetFilter) store.Predicate {
	namespace := ""
	if filter.Namespace != "" {
		namespace = store.NormalizeNamespace(filter.Namespace)
	}
	return func(rec model.DocumentRecord) bool {
		if namespace != "" && rec.Namespace != namespace {
			return false
		}
		if filter.OlderThan != nil && !rec.IngestedAt.Before(*filter.OlderThan) {
			return false
		}
		if filter.SourceRefOrigin != "" && rec.SourceRef.Origin != filter.SourceRefOrigin {
			return false
		}
		if filter.DocID != "" && rec.DocID != filter.DocID {
			return false
		}
		return true
	}
}
