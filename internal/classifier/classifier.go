// Package classifier implements the contamination classifier (C1): a
// lightweight lexical scan for prompt-injection traits in ingested text.
package classifier

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/heimgewebe/indexd/internal/model"
)

// imperativePhrases are directive phrases aimed at the reader-as-system.
var imperativePhrases = []string{
	"you must",
	"ignore previous",
	"ignore the above",
	"disregard prior",
}

// systemClaimPhrases claim system scope or policy override.
var systemClaimPhrases = []string{
	"this system must",
	"system prompt",
	"override policy",
}

// metaPromptPhrases are self-referential LLM markers.
var metaPromptPhrases = []string{
	"as an ai",
	"as a language model",
	"ai language model",
}

// quarantineThreshold is the minimum number of distinct rule phrases, summed
// across all categories, that must match before PossiblePromptInjection is
// additionally emitted. Two categories firing always reaches it; so do two
// different phrases of a single category.
const quarantineThreshold = 2

// Classify inspects text and returns the set of content flags it exhibits.
// Detection runs against a lowercased copy; flags are returned in a stable
// order (imperative, system claim, meta-prompt, then quarantine if it
// fires) so callers can rely on deterministic ordering in tests and
// snapshots.
func Classify(text string) []model.ContentFlag {
	lower := strings.ToLower(text)

	var flags []model.ContentFlag
	hits := 0
	if n := countMatches(lower, imperativePhrases); n > 0 {
		flags = append(flags, model.FlagImperativeLanguage)
		hits += n
	}
	if n := countMatches(lower, systemClaimPhrases); n > 0 {
		flags = append(flags, model.FlagSystemClaim)
		hits += n
	}
	if n := countMatches(lower, metaPromptPhrases); n > 0 {
		flags = append(flags, model.FlagMetaPromptMarker)
		hits += n
	}
	if hits >= quarantineThreshold {
		flags = append(flags, model.FlagPossiblePromptInjection)
	}
	return flags
}

// ClassifyChunks aggregates flags across every chunk of a document by
// classifying their concatenated text. Concatenation (rather than a
// per-chunk union) keeps the quarantine threshold meaningful for documents
// whose injection attempt is split across adjacent chunks.
func ClassifyChunks(chunks []model.Chunk) []model.ContentFlag {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.Text)
	}
	return Classify(b.String())
}

// countMatches returns how many of phrases occur in haystack.
func countMatches(haystack string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(haystack, p) {
			n++
		}
	}
	return n
}

// policyHash is computed once from the concrete phrase lists above; it is
// recorded verbatim in every DecisionSnapshot so a later edit to these
// rules cannot retroactively change what an old snapshot says was used.
var policyHash = computePolicyHash()

// PolicyHash returns the classifier's current rule-set hash.
func PolicyHash() string {
	return policyHash
}

func computePolicyHash() string {
	all := make([]string, 0, len(imperativePhrases)+len(systemClaimPhrases)+len(metaPromptPhrases))
	all = append(all, imperativePhrases...)
	all = append(all, systemClaimPhrases...)
	all = append(all, metaPromptPhrases...)
	sort.Strings(all)

	h := sha256.New()
	for _, phrase := range all {
		h.Write([]byte(phrase))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
