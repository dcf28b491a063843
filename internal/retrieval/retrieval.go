// Package retrieval implements the retrieval engine (C5): lexical
// candidate gathering, policy filtering, weight-model scoring, and
// decision-snapshot emission for a single query.
package retrieval

import (
	"sort"
	"strings"
	"time"

	"github.com/heimgewebe/indexd/internal/ledger"
	"github.com/heimgewebe/indexd/internal/model"
	"github.com/heimgewebe/indexd/internal/scoring"
	"github.com/heimgewebe/indexd/internal/store"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Request is a search query against one namespace.
type Request struct {
	Query                string
	K                    *int
	Namespace            string
	ExcludeFlags         []model.ContentFlag // ignored unless ExcludeFlagsSet; nil or empty with ExcludeFlagsSet is audit mode
	ExcludeFlagsSet      bool                // false applies the default policy (exclude possible_prompt_injection)
	MinTrustLevel        *model.TrustLevel
	ExcludeOrigins       []string
	ContextProfile       string
	IncludeWeights       bool
	EmitDecisionSnapshot bool
}

// Match is one ranked candidate in a Response.
type Match struct {
	DocID      string               `json:"doc_id"`
	Namespace  string               `json:"namespace"`
	ChunkID    string               `json:"chunk_id"`
	Score      float64              `json:"score"`
	Text       string               `json:"text"`
	Meta       map[string]any       `json:"meta,omitempty"`
	SourceRef  model.SourceRef      `json:"source_ref"`
	IngestedAt time.Time            `json:"ingested_at"`
	Flags      []model.ContentFlag  `json:"flags,omitempty"`
	Weights    *model.Weights       `json:"weights,omitempty"`
}

// Response is the result of a Search call.
type Response struct {
	Matches    []Match
	LatencyMS  float64
	BudgetMS   float64
	DecisionID string // empty unless a snapshot was emitted
}

// HalfLives supplies the per-namespace half-life configured for recency
// decay (C7). Satisfied by *retention.Sweeper; kept as a narrow interface
// here so retrieval does not need to import retention.
type HalfLives interface {
	HalfLifeSeconds(namespace string) int64
}

// Engine runs searches against a Store and, when requested, records a
// DecisionSnapshot into a Ledger.
type Engine struct {
	store     *store.Store
	ledger    *ledger.Ledger
	halfLives HalfLives
	now       func() time.Time
	budgetMS  float64
}

// New returns an Engine backed by s and l. budgetMS is the latency budget
// reported back in every Response (informational only; the engine does
// not enforce it). halfLives may be nil, in which case recency weighting
// is always 1.0.
func New(s *store.Store, l *ledger.Ledger, halfLives HalfLives, budgetMS float64) *Engine {
	return &Engine{store: s, ledger: l, halfLives: halfLives, now: time.Now, budgetMS: budgetMS}
}

type candidate struct {
	rec        model.DocumentRecord
	chunk      model.Chunk
	chunkIndex int
	similarity float64
}

// Search runs req against the store and returns ranked matches.
func (e *Engine) Search(req Request) Response {
	start := e.now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Response{LatencyMS: 0, BudgetMS: e.budgetMS}
	}

	namespace := store.NormalizeNamespace(req.Namespace)
	docs := e.store.Snapshot(namespace)

	candidates := gatherCandidates(docs, query)
	candidates = applyPolicyFilter(candidates, req)

	now := e.now()
	scored := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		ageSeconds := now.Sub(c.rec.IngestedAt).Seconds()
		contextWeight := scoring.ContextWeight(req.ContextProfile, c.rec.Namespace)
		recencyWeight := scoring.RecencyWeight(ageSeconds, e.halfLifeFor(c.rec.Namespace))
		trust := c.rec.SourceRef.TrustLevel
		w := scoring.Weights(c.similarity, trust, contextWeight, recencyWeight)
		final := scoring.Score(c.similarity, trust, contextWeight, recencyWeight)
		scored = append(scored, scoredCandidate{candidate: c, weights: w, final: final, ageSeconds: ageSeconds})
	}

	sortStable(scored)

	limit := clampLimit(req.K)
	if limit < len(scored) {
		scored = scored[:limit]
	}

	matches := make([]Match, 0, len(scored))
	for _, sc := range scored {
		m := Match{
			DocID:      sc.rec.DocID,
			Namespace:  sc.rec.Namespace,
			ChunkID:    sc.chunk.ChunkIDOrDefault(sc.rec.DocID, sc.chunkIndex),
			Score:      sc.final,
			Text:       sc.chunk.Text,
			Meta:       sc.chunk.Meta,
			SourceRef:  sc.rec.SourceRef,
			IngestedAt: sc.rec.IngestedAt,
			Flags:      sc.rec.Flags,
		}
		if req.IncludeWeights {
			w := sc.weights
			m.Weights = &w
		}
		matches = append(matches, m)
	}

	resp := Response{
		Matches:   matches,
		LatencyMS: float64(e.now().Sub(start).Microseconds()) / 1000.0,
		BudgetMS:  e.budgetMS,
	}

	if req.IncludeWeights || req.EmitDecisionSnapshot {
		resp.DecisionID = e.emitSnapshot(query, namespace, req.ContextProfile, scored)
	}

	return resp
}

func (e *Engine) halfLifeFor(namespace string) int64 {
	if e.halfLives == nil {
		return 0
	}
	return e.halfLives.HalfLifeSeconds(namespace)
}

type scoredCandidate struct {
	candidate
	weights    model.Weights
	final      float64
	ageSeconds float64
}

func gatherCandidates(docs []model.DocumentRecord, query string) []candidate {
	var out []candidate
	for _, rec := range docs {
		for i, chunk := range rec.Chunks {
			if chunk.Text == "" {
				continue
			}
			sim, n := scoring.Similarity(chunk.Text, query)
			if n == 0 {
				continue
			}
			out = append(out, candidate{rec: rec, chunk: chunk, chunkIndex: i, similarity: sim})
		}
	}
	return out
}

func applyPolicyFilter(candidates []candidate, req Request) []candidate {
	excludeFlags := req.ExcludeFlags
	if !req.ExcludeFlagsSet {
		excludeFlags = []model.ContentFlag{model.FlagPossiblePromptInjection}
	}

	excludeOrigins := make(map[string]bool, len(req.ExcludeOrigins))
	for _, o := range req.ExcludeOrigins {
		excludeOrigins[o] = true
	}

	out := candidates[:0:0]
	for _, c := range candidates {
		if hasAnyFlag(c.rec, excludeFlags) {
			continue
		}
		if req.MinTrustLevel != nil && c.rec.SourceRef.TrustLevel.Ordinal() < req.MinTrustLevel.Ordinal() {
			continue
		}
		if excludeOrigins[c.rec.SourceRef.Origin] {
			continue
		}
		out = append(out, c)
	}
	return out
}

func hasAnyFlag(rec model.DocumentRecord, flags []model.ContentFlag) bool {
	for _, f := range flags {
		if rec.HasFlag(f) {
			return true
		}
	}
	return false
}

// sortStable orders by final score descending. Equal scores fall back to
// insertion order: earlier IngestedAt first, then chunk position within a
// document.
func sortStable(scored []scoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].final != scored[j].final {
			return scored[i].final > scored[j].final
		}
		if !scored[i].rec.IngestedAt.Equal(scored[j].rec.IngestedAt) {
			return scored[i].rec.IngestedAt.Before(scored[j].rec.IngestedAt)
		}
		return scored[i].chunkIndex < scored[j].chunkIndex
	})
}

func clampLimit(k *int) int {
	limit := defaultLimit
	if k != nil {
		limit = *k
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

func (e *Engine) emitSnapshot(query, namespace, profile string, scored []scoredCandidate) string {
	candidates := make([]model.CandidateSnapshot, 0, len(scored))
	for _, sc := range scored {
		candidates = append(candidates, model.CandidateSnapshot{
			DocID:      sc.rec.DocID,
			Similarity: sc.similarity,
			Weights:    sc.weights,
			FinalScore: sc.final,
		})
	}

	var selectedID string
	if len(candidates) > 0 {
		selectedID = candidates[0].DocID
	}

	snap := model.DecisionSnapshot{
		Intent:         query,
		Namespace:      namespace,
		ContextProfile: profile,
		PolicyHash:     scoring.PolicyHash(),
		Candidates:     candidates,
		SelectedID:     selectedID,
	}
	recorded := e.ledger.Record(snap)
	return recorded.DecisionID
}
