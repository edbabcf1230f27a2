// Package urlmap implements the per-wiki URL rewriting engine: a
// compiled regex over the set of proxied domains, used both to rewrite
// upstream URLs found in response bodies/headers (forward mapping) and
// to translate a request path back to an upstream (domain, path) pair
// (reverse mapping).
package urlmap

import (
	"fmt"
	"regexp"
	"strings"
)

// DomainMap is one (wiki_domain, path_prefix) pair from a binding's
// configuration. path_prefix is either empty or begins and ends with "/".
type DomainMap struct {
	WikiDomain string
	PathPrefix string
}

// Binding is the immutable, precomputed mapping for one proxy host.
// Construct with NewBinding; all fields are read-only after that.
type Binding struct {
	ProxyHost     string
	PrimaryDomain string
	Maps          []DomainMap

	regex        *regexp.Regexp
	replacements map[string]string // domain -> path prefix ("" for primary)
	prefixes     []prefixEntry     // reverse-mapping order, mirrors Maps
	domains      map[string]struct{}
}

type prefixEntry struct {
	domain  string
	trimmed string // path_prefix with trailing slash removed
	stored  string // path_prefix as configured (trailing slash kept)
}

// NewBinding validates maps and precomputes the binding's regex,
// replacement table, and reverse-mapping prefix list.
func NewBinding(proxyHost, primaryDomain string, maps []DomainMap) (*Binding, error) {
	if proxyHost == "" {
		return nil, fmt.Errorf("urlmap: proxy_host must not be empty")
	}
	if primaryDomain == "" {
		return nil, fmt.Errorf("urlmap: primary_domain must not be empty")
	}

	seen := make(map[string]struct{}, len(maps))
	replacements := map[string]string{primaryDomain: ""}
	domains := map[string]struct{}{primaryDomain: {}}
	prefixes := make([]prefixEntry, 0, len(maps))

	for _, m := range maps {
		if m.WikiDomain == "" {
			return nil, fmt.Errorf("urlmap: map entry has empty wiki_domain")
		}
		if m.PathPrefix != "" && (!strings.HasPrefix(m.PathPrefix, "/") || !strings.HasSuffix(m.PathPrefix, "/")) {
			return nil, fmt.Errorf("urlmap: path_prefix %q for %q must begin and end with \"/\"", m.PathPrefix, m.WikiDomain)
		}

		trimmed := strings.TrimSuffix(m.PathPrefix, "/")

		// One maps entry may name the primary domain with an empty or
		// "/" prefix (strip nothing); anything else is a duplicate.
		if m.WikiDomain == primaryDomain {
			if trimmed != "" {
				return nil, fmt.Errorf("urlmap: wiki_domain %q appears more than once in binding %q", m.WikiDomain, proxyHost)
			}
		} else {
			if _, dup := seen[m.WikiDomain]; dup {
				return nil, fmt.Errorf("urlmap: wiki_domain %q appears more than once in binding %q", m.WikiDomain, proxyHost)
			}
			seen[m.WikiDomain] = struct{}{}
			// The replacement is the trimmed prefix: the regex match
			// consumes the boundary character after the domain (often
			// "/"), which the substitution re-emits after the prefix.
			replacements[m.WikiDomain] = trimmed
			domains[m.WikiDomain] = struct{}{}
		}

		prefixes = append(prefixes, prefixEntry{
			domain:  m.WikiDomain,
			trimmed: trimmed,
			stored:  m.PathPrefix,
		})
	}

	allDomains := make([]string, 0, len(domains))
	allDomains = append(allDomains, primaryDomain)
	for _, m := range maps {
		if m.WikiDomain != primaryDomain {
			allDomains = append(allDomains, m.WikiDomain)
		}
	}

	re, err := compileDomainRegex(allDomains)
	if err != nil {
		return nil, fmt.Errorf("urlmap: compiling regex for binding %q: %w", proxyHost, err)
	}

	return &Binding{
		ProxyHost:     proxyHost,
		PrimaryDomain: primaryDomain,
		Maps:          maps,
		regex:         re,
		replacements:  replacements,
		prefixes:      prefixes,
		domains:       domains,
	}, nil
}

// compileDomainRegex builds the forward-mapping pattern: an optional
// scheme, the domain alternation, and a captured boundary character so
// it can be copied verbatim into the replacement (losing it would
// truncate user text).
func compileDomainRegex(domains []string) (*regexp.Regexp, error) {
	escaped := make([]string, len(domains))
	for i, d := range domains {
		escaped[i] = regexp.QuoteMeta(d)
	}
	pattern := `(https?:)?//(` + strings.Join(escaped, "|") + `)($|\s|[^a-zA-Z0-9_.])`
	return regexp.Compile(pattern)
}

// Domains returns the set of all domains (primary plus mapped) this
// binding covers.
func (b *Binding) Domains() map[string]struct{} {
	return b.domains
}
