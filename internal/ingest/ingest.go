// Package ingest implements the ingestion pipeline (C4): validation,
// server-side trust assignment, contamination classification, quarantine
// routing, timestamping, and insertion into the namespace store.
package ingest

import (
	"fmt"
	"time"

	"github.com/heimgewebe/indexd/internal/apperr"
	"github.com/heimgewebe/indexd/internal/classifier"
	"github.com/heimgewebe/indexd/internal/model"
	"github.com/heimgewebe/indexd/internal/scoring"
	"github.com/heimgewebe/indexd/internal/store"
)

// Request is an upsert call.
type Request struct {
	DocID     string
	Namespace string
	Chunks    []model.Chunk
	Meta      map[string]any
	SourceRef *model.SourceRef
}

// Pipeline runs Upsert against a Store.
type Pipeline struct {
	store *store.Store
	now   func() time.Time
}

// New returns a Pipeline backed by s.
func New(s *store.Store) *Pipeline {
	return &Pipeline{store: s, now: time.Now}
}

// Result is the outcome of a successful Upsert.
type Result struct {
	Ingested  int
	Namespace string // effective namespace after quarantine routing
}

// Upsert validates req, assigns trust server-side, classifies content,
// routes to quarantine if warranted, timestamps, and inserts the record.
func (p *Pipeline) Upsert(req Request) (Result, error) {
	if req.SourceRef == nil {
		return Result{}, fmt.Errorf("ingest: %w", apperr.ErrMissingSourceRef)
	}
	if req.DocID == "" {
		return Result{}, fmt.Errorf("ingest: doc_id is required: %w", apperr.ErrInvalidPayload)
	}

	sourceRef := *req.SourceRef
	// Trust is always server-assigned from origin; a client-supplied
	// trust_level, if any, is discarded here (Invariant 2).
	sourceRef.TrustLevel = scoring.TrustForOrigin(sourceRef.Origin)

	flags := classifier.ClassifyChunks(req.Chunks)

	namespace := store.NormalizeNamespace(req.Namespace)
	effectiveNamespace := namespace
	if hasFlag(flags, model.FlagPossiblePromptInjection) {
		effectiveNamespace = model.QuarantineNamespace
	}

	rec := model.DocumentRecord{
		DocID:      req.DocID,
		Namespace:  effectiveNamespace,
		Chunks:     req.Chunks,
		Meta:       req.Meta,
		IngestedAt: p.now().UTC(),
		SourceRef:  sourceRef,
		Flags:      flags,
	}

	p.store.Upsert(effectiveNamespace, rec)

	return Result{Ingested: len(req.Chunks), Namespace: effectiveNamespace}, nil
}

func hasFlag(flags []model.ContentFlag, target model.ContentFlag) bool {
	for _, f := range flags {
		if f == target {
			return true
		}
	}
	return false
}
