// Package model holds the data types shared by every index component:
// documents, chunks, provenance, trust levels, content flags, and the
// decision/outcome/audit records the ledger and forget engine append to.
package model

import (
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
)

// TrustLevel is a coarse provenance grade derived from a SourceRef's origin,
// never from a client assertion. The numeric value is the scoring weight.
type TrustLevel float64

const (
	TrustLow    TrustLevel = 0.3
	TrustMedium TrustLevel = 0.7
	TrustHigh   TrustLevel = 1.0
)

// Ordinal supports min_trust_level comparisons without relying on the raw
// float value, which is also a valid scoring weight and would otherwise
// couple the two uses.
func (t TrustLevel) Ordinal() int {
	switch t {
	case TrustHigh:
		return 2
	case TrustMedium:
		return 1
	default:
		return 0
	}
}

// ContentFlag marks a trait detected by the contamination classifier.
type ContentFlag string

const (
	FlagImperativeLanguage      ContentFlag = "imperative_language"
	FlagSystemClaim             ContentFlag = "system_claim"
	FlagMetaPromptMarker        ContentFlag = "meta_prompt_marker"
	FlagPossiblePromptInjection ContentFlag = "possible_prompt_injection"
)

// DefaultNamespace is substituted whenever a trimmed namespace is empty.
const DefaultNamespace = "default"

// QuarantineNamespace is the reserved namespace the ingestion pipeline
// routes flagged documents into, regardless of the namespace requested.
const QuarantineNamespace = "quarantine"

// SourceRef records where a document came from and how much it is trusted.
// TrustLevel is always assigned server-side from Origin; callers cannot
// elevate it by setting it directly in an ingest request.
type SourceRef struct {
	Origin     string     `json:"origin"`
	ID         string     `json:"id"`
	Offset     string     `json:"offset,omitempty"`
	TrustLevel TrustLevel `json:"trust_level"`
	InjectedBy string     `json:"injected_by,omitempty"`
}

// Chunk is one matchable unit of a document. Chunks without Text are inert:
// they are stored but never produce a search candidate.
type Chunk struct {
	ChunkID   string          `json:"chunk_id,omitempty"`
	Text      string          `json:"text,omitempty"`
	Embedding pgvector.Vector `json:"embedding,omitempty"`
	Meta      map[string]any  `json:"meta,omitempty"`
}

// ChunkIDOrDefault returns ChunkID if set, else "<doc_id>#<index>".
func (c Chunk) ChunkIDOrDefault(docID string, index int) string {
	if c.ChunkID != "" {
		return c.ChunkID
	}
	return fmt.Sprintf("%s#%d", docID, index)
}

// DocumentRecord is identified by (namespace, doc_id). IngestedAt is set
// once at insertion and never mutated; a re-upsert produces a brand new
// DocumentRecord with a fresh IngestedAt, per the replace-with-reset
// semantics this implementation adopts for re-ingest.
type DocumentRecord struct {
	DocID      string         `json:"doc_id"`
	Namespace  string         `json:"namespace"`
	Chunks     []Chunk        `json:"chunks"`
	Meta       map[string]any `json:"meta,omitempty"`
	IngestedAt time.Time      `json:"ingested_at"`
	SourceRef  SourceRef      `json:"source_ref"`
	Flags      []ContentFlag  `json:"flags,omitempty"`
}

// HasFlag reports whether f is present on the record.
func (d DocumentRecord) HasFlag(f ContentFlag) bool {
	for _, existing := range d.Flags {
		if existing == f {
			return true
		}
	}
	return false
}

// PurgeStrategy selects which documents a retention sweep removes once a
// namespace exceeds its max item count.
type PurgeStrategy string

const (
	PurgeOldest      PurgeStrategy = "oldest"
	PurgeLowestScore PurgeStrategy = "lowest_score"
)

// RetentionConfig governs decay and sweep behavior for a single namespace.
// A zero HalfLifeSeconds means recency weighting is disabled (factor 1.0).
type RetentionConfig struct {
	HalfLifeSeconds int64         `json:"half_life_seconds,omitempty"`
	MaxItems        int           `json:"max_items,omitempty"`
	MaxAgeSeconds   int64         `json:"max_age_seconds,omitempty"`
	PurgeStrategy   PurgeStrategy `json:"purge_strategy,omitempty"`
}

// Weights are the four scoring factors multiplied together to produce a
// candidate's FinalScore. Recorded verbatim into a DecisionSnapshot so that
// an audit can confirm no post-hoc mutation occurred (Invariant 6).
type Weights struct {
	Similarity float64 `json:"similarity"`
	Trust      float64 `json:"trust"`
	Context    float64 `json:"context"`
	Recency    float64 `json:"recency"`
}

// CandidateSnapshot is one scored candidate as recorded in a DecisionSnapshot.
type CandidateSnapshot struct {
	DocID      string  `json:"doc_id"`
	Similarity float64 `json:"similarity"`
	Weights    Weights `json:"weights"`
	FinalScore float64 `json:"final_score"`
}

// DecisionSnapshot is an immutable record of a ranked candidate set produced
// for one query. Snapshots are append-only and outlive the documents they
// reference.
type DecisionSnapshot struct {
	DecisionID     string              `json:"decision_id"`
	Intent         string              `json:"intent"`
	Namespace      string              `json:"namespace"`
	ContextProfile string              `json:"context_profile,omitempty"`
	PolicyHash     string              `json:"policy_hash"`
	Candidates     []CandidateSnapshot `json:"candidates"`
	SelectedID     string              `json:"selected_id,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// OutcomeSignal identifies who or what produced a DecisionOutcome's verdict.
type OutcomeSignal string

const (
	SignalUser      OutcomeSignal = "user"
	SignalSystem    OutcomeSignal = "system"
	SignalAutomatic OutcomeSignal = "automatic"
)

// Outcome is the verdict value of a DecisionOutcome.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeNeutral Outcome = "neutral"
)

// DecisionOutcome binds a later judgement to a prior DecisionSnapshot. It
// may exist only for a recorded DecisionID (Invariant 5), and at most one
// may exist per DecisionID; the ledger enforces both.
type DecisionOutcome struct {
	DecisionID   string        `json:"decision_id"`
	Outcome      Outcome       `json:"outcome"`
	SignalSource OutcomeSignal `json:"signal_source"`
	Timestamp    time.Time     `json:"timestamp"`
	Notes        string        `json:"notes,omitempty"`
}

// ForgetKey identifies a single document destroyed by a forget operation.
type ForgetKey struct {
	Namespace string `json:"namespace"`
	DocID     string `json:"doc_id"`
}

// ForgetFilter selects which documents a forget operation targets. The
// intersection of all non-zero fields applies.
type ForgetFilter struct {
	Namespace          string     `json:"namespace,omitempty"`
	OlderThan          *time.Time `json:"older_than,omitempty"`
	SourceRefOrigin    string     `json:"source_ref_origin,omitempty"`
	DocID              string     `json:"doc_id,omitempty"`
	AllowNamespaceWipe bool       `json:"allow_namespace_wipe,omitempty"`
}

// HasContentFilter reports whether the filter narrows by anything other
// than namespace + the wipe flag — the distinction the admission policy
// uses to require AllowNamespaceWipe.
func (f ForgetFilter) HasContentFilter() bool {
	return f.OlderThan != nil || f.SourceRefOrigin != "" || f.DocID != ""
}

// ForgetAudit is the append-only record of one forget operation, whether
// or not it actually mutated the store (dry runs are recorded too).
type ForgetAudit struct {
	AuditID       string       `json:"audit_id"`
	Filter        ForgetFilter `json:"filter"`
	Reason        string       `json:"reason"`
	ForgottenDocs []ForgetKey  `json:"forgotten_docs"`
	Count         int          `json:"count"`
	DryRun        bool         `json:"dry_run"`
	Timestamp     time.Time    `json:"timestamp"`
}
