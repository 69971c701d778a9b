// Package urlutil canonicalizes, validates and fingerprints destination URLs.
package urlutil

import (
	"net"
	"net/url"
	"strings"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Normalize canonicalizes raw so that equivalent URLs compare equal:
// a missing scheme becomes https, the host is lower-cased, a bare "/" path is
// dropped and the scheme's default port is stripped. When raw cannot be
// parsed the scheme-prefixed input is returned unchanged.
func Normalize(raw string) string {
	raw = withScheme(strings.TrimSpace(raw))

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == defaultPorts[u.Scheme] {
		port = ""
	}
	switch {
	case port != "":
		u.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		u.Host = "[" + host + "]"
	default:
		u.Host = host
	}

	if u.Path == "/" {
		u.Path = ""
		u.RawPath = ""
	}

	return u.String()
}

func withScheme(raw string) string {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	return "https://" + raw
}
