package egress_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimgewebe/indexd/internal/apperr"
	"github.com/heimgewebe/indexd/internal/egress"
)

func TestAllowAll_PermitsAnything(t *testing.T) {
	g := egress.AllowAll()
	_, err := g.EnsureAllowed("https://anything.example/path")
	assert.NoError(t, err)
}

func TestFromPolicy_UnknownDefaultIsConfigError(t *testing.T) {
	_, err := egress.FromPolicy(egress.Policy{Default: "sometimes"})
	assert.True(t, errors.Is(err, apperr.ErrConfigError))
}

func TestFromPolicy_DefaultAllowDisablesEnforcement(t *testing.T) {
	g, err := egress.FromPolicy(egress.Policy{Default: egress.DefaultAllow})
	require.NoError(t, err)
	_, err = g.EnsureAllowed("https://unlisted.example/")
	assert.NoError(t, err)
}

func TestEnsureAllowed_HostOnlyEntryMatchesAnyScheme(t *testing.T) {
	g, err := egress.FromPolicy(egress.Policy{
		Default: egress.DefaultDeny,
		Allow:   []string{"api.example.com"},
	})
	require.NoError(t, err)

	_, err = g.EnsureAllowed("https://api.example.com/v1/chat")
	assert.NoError(t, err)
	_, err = g.EnsureAllowed("http://api.example.com/v1/chat")
	assert.NoError(t, err)
}

func TestEnsureAllowed_SchemeQualifiedEntryRequiresExactScheme(t *testing.T) {
	g, err := egress.FromPolicy(egress.Policy{
		Default: egress.DefaultDeny,
		Allow:   []string{"https://api.example.com"},
	})
	require.NoError(t, err)

	_, err = g.EnsureAllowed("https://api.example.com/")
	assert.NoError(t, err)

	_, err = g.EnsureAllowed("http://api.example.com/")
	assert.True(t, errors.Is(err, apperr.ErrHostDenied))
}

func TestEnsureAllowed_HostNotInAllowListIsDenied(t *testing.T) {
	g, err := egress.FromPolicy(egress.Policy{
		Default: egress.DefaultDeny,
		Allow:   []string{"api.example.com"},
	})
	require.NoError(t, err)

	_, err = g.EnsureAllowed("https://evil.example.com/")
	assert.True(t, errors.Is(err, apperr.ErrHostDenied))
}

func TestEnsureAllowed_PortMatching(t *testing.T) {
	g, err := egress.FromPolicy(egress.Policy{
		Default: egress.DefaultDeny,
		Allow:   []string{"api.example.com:8443"},
	})
	require.NoError(t, err)

	_, err = g.EnsureAllowed("https://api.example.com:8443/")
	assert.NoError(t, err)
	_, err = g.EnsureAllowed("https://api.example.com/")
	assert.True(t, errors.Is(err, apperr.ErrHostDenied))
}

func TestEnsureAllowed_SchemeQualifiedEntryDefaultsToSchemePort(t *testing.T) {
	g, err := egress.FromPolicy(egress.Policy{
		Default: egress.DefaultDeny,
		Allow:   []string{"https://api.matrix.example"},
	})
	require.NoError(t, err)

	_, err = g.EnsureAllowed("https://api.matrix.example/")
	assert.NoError(t, err)
	_, err = g.EnsureAllowed("https://api.matrix.example:4443/")
	assert.True(t, errors.Is(err, apperr.ErrHostDenied))
}

func TestEnsureAllowed_UserinfoIsDenied(t *testing.T) {
	g, err := egress.FromPolicy(egress.Policy{
		Default: egress.DefaultDeny,
		Allow:   []string{"api.example.com"},
	})
	require.NoError(t, err)

	_, err = g.EnsureAllowed("https://attacker@api.example.com/")
	assert.True(t, errors.Is(err, apperr.ErrHostDenied))
}

// The exact homograph/parser-confusion candidates called out in the design
// notes: Unicode dot look-alikes must never be treated as a real '.'
// separator when matching against an allow-listed host.
func TestEnsureAllowed_HomographDotsAreDenied(t *testing.T) {
	g, err := egress.FromPolicy(egress.Policy{
		Default: egress.DefaultDeny,
		Allow:   []string{"api.example.com"},
	})
	require.NoError(t, err)

	candidates := []string{
		"https://api｡example.com/",  // halfwidth ideographic full stop
		"https://api。example.com/",  // ideographic full stop
		"https://api．example.com/",  // fullwidth full stop
		"https://api﹒example.com/",  // small full stop
	}
	for _, raw := range candidates {
		_, err := g.EnsureAllowed(raw)
		assert.True(t, errors.Is(err, apperr.ErrHostDenied), "expected denial for %q", raw)
	}
}

func TestEnsureAllowed_TrailingDotIsDenied(t *testing.T) {
	g, err := egress.FromPolicy(egress.Policy{
		Default: egress.DefaultDeny,
		Allow:   []string{"api.example.com"},
	})
	require.NoError(t, err)

	_, err = g.EnsureAllowed("https://api.example.com./")
	assert.True(t, errors.Is(err, apperr.ErrHostDenied))
}

func TestEnsureAllowed_RawHostChecksBeforeParsing(t *testing.T) {
	g, err := egress.FromPolicy(egress.Policy{
		Default: egress.DefaultDeny,
		Allow:   []string{"api.example.com"},
	})
	require.NoError(t, err)

	_, err = g.EnsureAllowed("https://api.example.com\x00.evil.com/")
	assert.True(t, errors.Is(err, apperr.ErrHostDenied))
}

func TestParsePolicyYAML(t *testing.T) {
	doc := []byte(`
egress:
  default: deny
  allow:
    - api.example.com
    - "https://sync.example.com:9443"
`)
	g, err := egress.ParsePolicyYAML(doc)
	require.NoError(t, err)

	_, err = g.EnsureAllowed("https://api.example.com/")
	assert.NoError(t, err)
	_, err = g.EnsureAllowed("https://sync.example.com:9443/")
	assert.NoError(t, err)
	_, err = g.EnsureAllowed("https://unlisted.example.com/")
	assert.True(t, errors.Is(err, apperr.ErrHostDenied))
}
