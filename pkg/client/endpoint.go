package client

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// absoluteIngestURL matches ingest paths that are already full URLs.
var absoluteIngestURL = regexp.MustCompile(`(?i)^https?://`)

// ResolveEndpoint computes the final ingest URL from a base URL and an
// ingest path. Exactly one of three rules applies, checked in this order:
//
//  1. An absolute http(s) URL is used verbatim, pointing the client at a
//     fully separate ingestion service.
//  2. A "/"-prefixed path is resolved against the origin (scheme, host,
//     port) of the base URL, ignoring its path component. This preserves
//     the host-rooted convention for proxies mounted differently from the
//     API itself.
//  3. Anything else is appended under the base URL's full path, so a
//     sibling collector lives next to the API:
//     base "https://h/api/v1" + "ingest/requests" -> "https://h/api/v1/ingest/requests".
//
// The base URL's trailing slashes and the ingest path's surrounding
// whitespace are ignored.
func ResolveEndpoint(baseURL, ingestPath string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	path := strings.TrimSpace(ingestPath)
	if path == "" {
		path = DefaultIngestPath
	}

	if absoluteIngestURL.MatchString(path) {
		return path, nil
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q must include a scheme and host", baseURL)
	}

	if strings.HasPrefix(path, "/") {
		return u.Scheme + "://" + u.Host + path, nil
	}

	basePath := strings.TrimRight(u.Path, "/")
	return u.Scheme + "://" + u.Host + basePath + "/" + path, nil
}
