package handlers

import (
	"net/url"
	"path"
	"strings"
)

// redirectTarget returns where to send the user after login.
// The mounted redirect is used as given unless login.restrict_redirects is set, in which case
// only same-origin paths other than the login page itself are accepted.
func (h *Handlers) redirectTarget(raw string) string {
	if !h.cfg.Login.RestrictRedirects {
		if raw == "" {
			return h.cfg.Login.DefaultRedirect
		}
		return raw
	}

	target := sanitizeRedirect(raw)
	if target == "" || pathOnly(target) == "/login" {
		return h.cfg.Login.DefaultRedirect
	}
	return target
}

// sanitizeRedirect reduces raw to a local path, or "" when it points off-site
func sanitizeRedirect(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" || parsed.Host != "" || parsed.User != nil {
		return ""
	}

	pathValue := parsed.Path
	if pathValue == "" {
		pathValue = "/"
	}

	unescaped, err := url.PathUnescape(pathValue)
	if err != nil {
		return ""
	}
	if strings.Contains(unescaped, "\\") {
		return ""
	}

	cleaned := path.Clean(unescaped)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	// Protocol-relative URLs such as //evil.example
	if strings.HasPrefix(cleaned, "//") {
		return ""
	}

	target := cleaned
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		target += "#" + parsed.Fragment
	}
	return target
}

func pathOnly(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		return target[:i]
	}
	return target
}
