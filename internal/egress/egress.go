// Package egress implements the egress guard (C9): an allow-list gate for
// outbound URLs used by adjacent subsystems (chat upstream, cloud sync),
// including defenses against homograph and parser-confusion evasion.
package egress

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/heimgewebe/indexd/internal/apperr"
)

// Default is the policy's default disposition when no allow entry matches.
type Default string

const (
	DefaultAllow Default = "allow"
	DefaultDeny  Default = "deny"
)

// forbiddenHostRunes are Unicode dot look-alikes used in homograph attacks
// against naive host-suffix checks, plus the fullwidth/ideographic/small
// form variants called out in §4.9.
var forbiddenHostRunes = []rune{'．', '。', '｡', '﹒'}

// Policy is the parsed allow-list configuration.
type Policy struct {
	Default Default  `yaml:"default"`
	Allow   []string `yaml:"allow"`
}

// policyFile is the on-disk shape: `egress: {default, allow}`.
type policyFile struct {
	Egress Policy `yaml:"egress"`
}

// target is one parsed allow entry.
type target struct {
	scheme string // empty means "any scheme"
	host   string
	port   string // empty means "any port"
}

// Guard is a pure allow-list gate. The zero value with Enforce=false is a
// no-op guard equivalent to an "allow all" policy.
type Guard struct {
	enforce bool
	allowed []target
}

// AllowAll returns a Guard that permits every URL, matching a policy of
// `default: allow` with no entries.
func AllowAll() *Guard {
	return &Guard{enforce: false}
}

// ParsePolicyYAML loads a policy document of the form
// `egress: {default: allow|deny, allow: [...]}`.
func ParsePolicyYAML(data []byte) (*Guard, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("egress: parse policy: %w: %v", apperr.ErrConfigError, err)
	}
	return FromPolicy(f.Egress)
}

// FromPolicy builds a Guard from an already-parsed Policy.
func FromPolicy(p Policy) (*Guard, error) {
	switch p.Default {
	case DefaultAllow:
		g := &Guard{enforce: false}
		return g, nil
	case DefaultDeny, "":
		// fallthrough to enforce=true below
	default:
		return nil, fmt.Errorf("egress: unknown default %q: %w", p.Default, apperr.ErrConfigError)
	}

	g := &Guard{enforce: true}
	for _, entry := range p.Allow {
		t, err := parseAllowEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("egress: allow entry %q: %w: %v", entry, apperr.ErrConfigError, err)
		}
		g.allowed = append(g.allowed, t)
	}
	return g, nil
}

// parseAllowEntry accepts "host", "host:port", or "scheme://host[:port]".
func parseAllowEntry(entry string) (target, error) {
	trimmed := strings.TrimSpace(entry)
	if trimmed == "" {
		return target{}, fmt.Errorf("empty allow entry")
	}

	if strings.Contains(trimmed, "://") {
		u, err := url.Parse(trimmed)
		if err != nil || u.Hostname() == "" {
			return target{}, fmt.Errorf("invalid scheme-qualified entry")
		}
		scheme := strings.ToLower(u.Scheme)
		port := u.Port()
		if port == "" {
			// A scheme-qualified entry with no explicit port means that
			// scheme's own canonical port, not "any port" — otherwise an
			// allow entry for https://host would let a candidate reach
			// host on an arbitrary port under the same scheme.
			port = defaultPortFor(scheme)
		}
		return target{scheme: scheme, host: normalizeHost(u.Hostname()), port: port}, nil
	}

	// host or host:port, no scheme: parse against a placeholder scheme
	// purely to reuse net/url's host:port splitting.
	u, err := url.Parse("http://" + trimmed)
	if err != nil || u.Hostname() == "" {
		return target{}, fmt.Errorf("invalid host entry")
	}
	return target{scheme: "", host: normalizeHost(u.Hostname()), port: u.Port()}, nil
}

// normalizeHost lowercases and strips a single trailing dot.
func normalizeHost(host string) string {
	host = strings.ToLower(host)
	return strings.TrimSuffix(host, ".")
}

// EnsureAllowed checks raw (the literal string a caller wants to request)
// against the guard's policy. It checks the raw host segment for forbidden
// characters before any URL parsing, so a parser-confusion payload (e.g. an
// embedded newline) cannot slip a forbidden character past validation by
// exploiting parser leniency, then fully parses and re-checks. A guard that
// does not enforce (default allow) skips every host check and only rejects
// a string that does not parse as a URL.
func (g *Guard) EnsureAllowed(raw string) (*url.URL, error) {
	if rawHost := rawHostSegment(raw); g.enforce && hostHasForbiddenChars(rawHost) {
		return nil, fmt.Errorf("egress: host %q: %w", rawHost, apperr.ErrHostDenied)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("egress: invalid url: %w", apperr.ErrHostDenied)
	}

	if err := g.ensureURLAllowed(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (g *Guard) ensureURLAllowed(u *url.URL) error {
	if !g.enforce {
		return nil
	}

	host := normalizeHost(u.Hostname())
	if hostHasForbiddenChars(host) {
		return fmt.Errorf("egress: host %q: %w", host, apperr.ErrHostDenied)
	}
	if u.User != nil {
		return fmt.Errorf("egress: userinfo in url: %w", apperr.ErrHostDenied)
	}

	scheme := strings.ToLower(u.Scheme)
	knownPort := u.Port()
	if knownPort == "" {
		knownPort = defaultPortFor(scheme)
	}

	// Host-only entries (target.scheme == "") match any scheme and, unless
	// they specify their own port, any port. Scheme-qualified entries
	// require an exact scheme match and an exact port match against the
	// candidate's explicit-or-default-for-its-scheme port.
	if g.matches(scheme, host, knownPort) {
		return nil
	}

	display := host
	if knownPort != "" {
		display = host + ":" + knownPort
	}
	return fmt.Errorf("egress: host %q: %w", display, apperr.ErrHostDenied)
}

func (g *Guard) matches(scheme, host, port string) bool {
	for _, t := range g.allowed {
		if t.host != host {
			continue
		}
		if t.scheme != "" && t.scheme != scheme {
			continue
		}
		if t.port != "" && t.port != port {
			continue
		}
		return true
	}
	return false
}

func defaultPortFor(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}

// hostHasForbiddenChars rejects ASCII control/whitespace, '%', any of the
// Unicode dot look-alikes, or a trailing dot (should already be stripped
// by normalizeHost, checked again defensively).
func hostHasForbiddenChars(host string) bool {
	if strings.HasSuffix(host, ".") {
		return true
	}
	for _, r := range host {
		if r < 0x20 || r == 0x7f {
			return true
		}
		if r == ' ' || r == '%' {
			return true
		}
		for _, forbidden := range forbiddenHostRunes {
			if r == forbidden {
				return true
			}
		}
	}
	return false
}

// rawHostSegment extracts the host[:port] portion from a raw, possibly
// malformed URL string without relying on net/url's parsing leniency: it
// splits on the first "://", then on the first of "/?#", then strips
// userinfo and a trailing port, so that forbidden characters hiding
// before full parsing normalizes them away are still caught.
func rawHostSegment(raw string) string {
	s := raw
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	return stripPort(s)
}

// stripPort removes a trailing ":port" or a bracketed IPv6 host's port,
// leaving the bracketed literal itself untouched.
func stripPort(hostPort string) string {
	if strings.HasPrefix(hostPort, "[") {
		if end := strings.Index(hostPort, "]"); end >= 0 {
			return hostPort[:end+1]
		}
		return hostPort
	}
	if i := strings.LastIndex(hostPort, ":"); i >= 0 {
		if _, err := strconv.Atoi(hostPort[i+1:]); err == nil {
			return hostPort[:i]
		}
	}
	return hostPort
}
