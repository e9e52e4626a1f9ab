package transport

import (
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/purell"
)

const normalizeFlags = purell.FlagsSafe |
	purell.FlagRemoveDuplicateSlashes |
	purell.FlagRemoveDotSegments |
	purell.FlagRemoveTrailingSlash

// ServerURL derives the language server socket URL from the page URL the
// editor is served from: http becomes ws, https becomes wss, and path is
// appended to the page path. The result is normalized (lowercase host,
// default port dropped, duplicate slashes collapsed).
func ServerURL(pageURL, path string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("transport: parse page url: %w", err)
	}

	var scheme string
	switch u.Scheme {
	case "http", "ws":
		scheme = "ws"
		u.Scheme = "http"
	case "https", "wss":
		scheme = "wss"
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("transport: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("transport: page url has no host: %s", pageURL)
	}
	u.Path += path
	u.RawQuery = ""
	u.Fragment = ""

	normalized, err := purell.NormalizeURLString(u.String(), normalizeFlags)
	if err != nil {
		return "", fmt.Errorf("transport: normalize: %w", err)
	}
	out, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("transport: parse normalized url: %w", err)
	}
	out.Scheme = scheme
	return out.String(), nil
}
