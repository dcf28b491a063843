package blobstore

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// RecheckReason is the event-handler's annotation attached to a
// decision.preimage item when it needs re-verification.
type RecheckReason struct {
	Type        string    `json:"type"`
	URL         string    `json:"url"`
	GeneratedAt time.Time `json:"generated_at"`
	SHA         string    `json:"sha,omitempty"`
	SchemaRef   string    `json:"schema_ref,omitempty"`
}

var shaPattern = regexp.MustCompile(`^(?:sha256:)?([0-9a-fA-F]{64})$`)

// CanonicalizeSHA validates and lowercases a sha value. Accepted forms are
// exactly 64 hex digits, optionally prefixed "sha256:". Anything else
// yields ("", false) so the caller stores no sha field at all.
func CanonicalizeSHA(raw string) (string, bool) {
	m := shaPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	return "sha256:" + strings.ToLower(m[1]), true
}

// ValidateSchemaRef accepts schema_ref only if it parses as an https URL
// hosted at schemas.heimgewebe.org.
func ValidateSchemaRef(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if u.Scheme != "https" || u.Hostname() != "schemas.heimgewebe.org" {
		return "", false
	}
	return u.String(), true
}

// NewRecheckReason builds a RecheckReason, silently dropping sha/schemaRef
// fields that fail their respective validation (Concrete Scenario 6).
func NewRecheckReason(reasonType, eventURL string, generatedAt time.Time, rawSHA, rawSchemaRef string) RecheckReason {
	r := RecheckReason{Type: reasonType, URL: eventURL, GeneratedAt: generatedAt}
	if sha, ok := CanonicalizeSHA(rawSHA); ok {
		r.SHA = sha
	}
	if ref, ok := ValidateSchemaRef(rawSchemaRef); ok {
		r.SchemaRef = ref
	}
	return r
}
