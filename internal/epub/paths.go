package epub

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ResolveHref resolves href relative to the directory of basePath, the same
// way a browser resolves a relative URL against the document that references
// it. Both are EPUB-internal paths (forward-slash separated). An empty
// basePath resolves href against the EPUB root, which is how container.xml
// full-path values are interpreted.
//
// Percent-escapes in href are decoded, since the result names a ZIP entry,
// not a URL. A result that is absolute or escapes the EPUB root yields
// ErrUnsafePath: descriptors come from the network and must not be able to
// direct content outside the archive tree.
func ResolveHref(basePath, href string) (string, error) {
	href = strings.TrimSpace(href)
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	if strings.HasPrefix(href, "/") {
		return "", fmt.Errorf("href %q: %w", href, ErrUnsafePath)
	}

	dir := "."
	if basePath != "" {
		dir = path.Dir(basePath)
	}
	resolved := path.Clean(path.Join(dir, href))
	if resolved == ".." || strings.HasPrefix(resolved, "../") || strings.HasPrefix(resolved, "/") {
		return "", fmt.Errorf("href %q resolves to %q: %w", href, resolved, ErrUnsafePath)
	}

	return resolved, nil
}

// ResolveURL joins ref against base using standard URL reference resolution.
// Unlike ResolveHref, ref keeps its percent-escaping: the result is what gets
// fetched, not what gets archived.
func ResolveURL(base *url.URL, ref string) (*url.URL, error) {
	u, err := base.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("resolve %q against %s: %w", ref, base, err)
	}
	return u, nil
}
