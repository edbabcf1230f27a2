package urlmap

import "strings"

// RewriteText rewrites every occurrence of a proxied domain in text into
// the proxy's own host[:port], for forward mapping of response bodies
// and redirect targets.
//
// proxyPort is the port suffix to append after proxyHost, e.g. ":8443",
// or "" to omit it.
func (b *Binding) RewriteText(text, proxyHost, proxyPort string) string {
	return b.regex.ReplaceAllStringFunc(text, func(match string) string {
		sub := b.regex.FindStringSubmatch(match)
		scheme, domain, boundary := sub[1], sub[2], sub[3]
		prefix := b.replacements[domain]
		return scheme + "//" + proxyHost + proxyPort + prefix + boundary
	})
}

// ResolvePath reverses a proxy-facing request path back into the
// upstream (wiki domain, path) pair it stands for. Maps are tried in
// configuration order; a path that matches no prefix resolves against
// the primary domain unchanged.
func (b *Binding) ResolvePath(path string) (domain, resolvedPath string) {
	for _, p := range b.prefixes {
		if path == p.trimmed || path == p.stored {
			return p.domain, "/"
		}
		if strings.HasPrefix(path, p.trimmed+"/") {
			return p.domain, path[len(p.trimmed):]
		}
	}
	return b.PrimaryDomain, path
}
