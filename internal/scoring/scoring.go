// Package scoring implements the weight model (C2): the similarity, trust,
// context, and recency factors multiplied together to rank a search candidate,
// plus the policy hash recorded in every decision snapshot.
package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/heimgewebe/indexd/internal/classifier"
	"github.com/heimgewebe/indexd/internal/model"
)

// originTrust is the server-authoritative origin → trust table. Callers
// may never elevate this by supplying their own trust_level at ingest.
var originTrust = map[string]model.TrustLevel{
	"chronik": model.TrustHigh,
	"osctx":   model.TrustMedium,
	"code":    model.TrustMedium,
	"docs":    model.TrustMedium,
}

// TrustForOrigin looks up the trust level for an origin. Anything not
// listed, including the literal "external", resolves to Low.
func TrustForOrigin(origin string) model.TrustLevel {
	if t, ok := originTrust[origin]; ok {
		return t
	}
	return model.TrustLow
}

// contextTable maps (profile, namespace) -> multiplier. A profile known to
// the table but missing a namespace entry falls back to its own default
// multiplier; no profile at all means no reweighting (1.0).
var contextTable = map[string]map[string]float64{
	"code_analysis": {
		"chronik":  0.7,
		"code":     1.2,
		"docs":     0.8,
		"_default": 0.7,
	},
	"incident_response": {
		"chronik":  1.2,
		"code":     0.7,
		"docs":     0.7,
		"_default": 0.7,
	},
}

// ContextWeight returns the multiplier for a namespace under the given
// profile. An empty profile means "no profile supplied" -> 1.0.
func ContextWeight(profile, namespace string) float64 {
	if profile == "" {
		return 1.0
	}
	ns, ok := contextTable[profile]
	if !ok {
		return 0.7
	}
	if w, ok := ns[namespace]; ok {
		return w
	}
	return ns["_default"]
}

// Similarity computes the lexical match score between a chunk's text and a
// query: the number of non-overlapping case-insensitive occurrences of the
// query, scaled by the ratio of matched characters to chunk length and
// capped at 1.0. A query that does not occur at all returns (0, 0),
// signalling the caller to drop the candidate entirely.
func Similarity(text, query string) (score float64, occurrences int) {
	if query == "" || text == "" {
		return 0, 0
	}
	lowerText := strings.ToLower(text)
	lowerQuery := strings.ToLower(query)

	queryByteLen := len(lowerQuery)
	queryCharLen := float64(len([]rune(lowerQuery)))
	textCharLen := float64(len([]rune(lowerText)))
	if textCharLen == 0 {
		return 0, 0
	}

	n := 0
	cursor := 0
	for {
		idx := strings.Index(lowerText[cursor:], lowerQuery)
		if idx < 0 {
			break
		}
		n++
		cursor += idx + queryByteLen
		if cursor >= len(lowerText) {
			break
		}
	}
	if n == 0 {
		return 0, 0
	}

	matched := float64(n) * queryCharLen
	sim := matched / textCharLen
	if sim > 1.0 {
		sim = 1.0
	}
	return sim, n
}

// RecencyWeight is the decay factor for a document of age ageSeconds in a
// namespace with the given half-life. Half-life <= 0 disables decay (1.0).
// Computed on read, never baked into the stored record, per §4.7.
func RecencyWeight(ageSeconds float64, halfLifeSeconds int64) float64 {
	if halfLifeSeconds <= 0 {
		return 1.0
	}
	exponent := ageSeconds / float64(halfLifeSeconds)
	return math.Pow(0.5, exponent)
}

// Score multiplies the four weight-model factors together.
func Score(similarity float64, trust model.TrustLevel, contextWeight, recencyWeight float64) float64 {
	return similarity * float64(trust) * contextWeight * recencyWeight
}

// Weights bundles the four factors as recorded in a DecisionSnapshot.
func Weights(similarity float64, trust model.TrustLevel, contextWeight, recencyWeight float64) model.Weights {
	return model.Weights{
		Similarity: similarity,
		Trust:      float64(trust),
		Context:    contextWeight,
		Recency:    recencyWeight,
	}
}

// policyHash combines the classifier's rule-phrase hash with this
// package's weight tables, computed once at package init. Recorded
// verbatim into every DecisionSnapshot (§4.1, §9): later edits to either
// table must never retroactively change what a past snapshot reports.
var policyHash = computePolicyHash()

// PolicyHash returns the combined classifier+weight-model policy hash.
func PolicyHash() string {
	return policyHash
}

func computePolicyHash() string {
	var b strings.Builder
	b.WriteString(classifier.PolicyHash())
	fmt.Fprintf(&b, "|trust:%.2f,%.2f,%.2f", model.TrustLow, model.TrustMedium, model.TrustHigh)

	origins := make([]string, 0, len(originTrust))
	for origin := range originTrust {
		origins = append(origins, origin)
	}
	sort.Strings(origins)
	for _, origin := range origins {
		fmt.Fprintf(&b, "|origin:%s=%.2f", origin, originTrust[origin])
	}

	profiles := make([]string, 0, len(contextTable))
	for profile := range contextTable {
		profiles = append(profiles, profile)
	}
	sort.Strings(profiles)
	for _, profile := range profiles {
		table := contextTable[profile]
		namespaces := make([]string, 0, len(table))
		for ns := range table {
			namespaces = append(namespaces, ns)
		}
		sort.Strings(namespaces)
		for _, ns := range namespaces {
			fmt.Fprintf(&b, "|ctx:%s/%s=%.2f", profile, ns, table[ns])
		}
	}

	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:])
}
