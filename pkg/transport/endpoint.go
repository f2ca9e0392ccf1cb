package transport

import (
	"fmt"
	"net/url"
	"strings"

	"mercator-hq/tracebridge/pkg/trace"
)

// DefaultRoute is the collector's trace route.
const DefaultRoute = "/api/external/trace"

// ResolveEndpoint composes the trace URL from a base URL and route. The
// route is appended unless the base path already ends with it, so
// "https://c.example.com/api/external/trace" is used as-is rather than
// doubled.
func ResolveEndpoint(baseURL, route string) (string, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return "", nil
	}
	if route == "" {
		route = DefaultRoute
	}
	route = "/" + strings.Trim(route, "/")

	u, err := parseHTTPURL(baseURL)
	if err != nil {
		return "", err
	}

	path := strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(path, route) {
		path += route
	}
	u.Path = path
	u.RawPath = ""

	return u.String(), nil
}

// validateTraceURL checks an explicit full trace URL, used verbatim.
func validateTraceURL(traceURL string) (string, error) {
	traceURL = strings.TrimSpace(traceURL)
	if traceURL == "" {
		return "", nil
	}
	if _, err := parseHTTPURL(traceURL); err != nil {
		return "", err
	}
	return traceURL, nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &trace.ConfigurationError{Field: "endpoint", Message: fmt.Sprintf("invalid URL %q: %v", raw, err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &trace.ConfigurationError{Field: "endpoint", Message: fmt.Sprintf("URL %q must use http or https", raw)}
	}
	if u.Host == "" {
		return nil, &trace.ConfigurationError{Field: "endpoint", Message: fmt.Sprintf("URL %q has no host", raw)}
	}
	return u, nil
}
