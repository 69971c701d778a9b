package urlutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "https://example.com"},
		{"example.com/", "https://example.com"},
		{"  https://Example.COM/  ", "https://example.com"},
		{"https://example.com:443/", "https://example.com"},
		{"http://example.com:80/docs", "http://example.com/docs"},
		{"http://example.com:8080/docs", "http://example.com:8080/docs"},
		{"https://example.com:80/", "https://example.com:80"},
		{"HTTPS://Example.com/Path?q=1", "https://example.com/Path?q=1"},
		{"https://[2001:DB8::1]:443/", "https://[2001:db8::1]"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_TrailingSlashAndDefaultPortAreEquivalent(t *testing.T) {
	variants := []string{
		"https://example.com",
		"https://example.com/",
		"https://example.com:443",
		"https://example.com:443/",
		"example.com",
	}
	want := Normalize(variants[0])
	for _, v := range variants[1:] {
		assert.Equal(t, want, Normalize(v), v)
	}
}

func TestNormalize_FallbackOnParseFailure(t *testing.T) {
	assert.Equal(t, "https://exa mple.com", Normalize("exa mple.com"))
	assert.Equal(t, "https://example.com:port", Normalize("example.com:port"))
}

func TestValidate(t *testing.T) {
	accepted := []string{
		"https://example.com",
		"http://sub.example.org/path?x=1",
		"https://8.8.8.8/dns",
	}
	for _, u := range accepted {
		assert.NoError(t, Validate(u), u)
	}

	rejected := map[string]string{
		"ftp://example.com":                      "scheme",
		"https://a.b":                            "too short",
		"https://intranet":                       "dot",
		"https://127.0.0.1/admin":                "loopback",
		"https://10.0.0.1":                       "private",
		"https://172.16.0.4":                     "private",
		"https://192.168.1.1":                    "private",
		"https://example.com/?next=javascript:1": "javascript",
		"https://example.com/data:text/html":     "data",
		"https://example.com/#vbscript:run":      "vbscript",
	}
	for u, reason := range rejected {
		err := Validate(u)
		if assert.Error(t, err, u) {
			assert.True(t, errors.Is(err, ErrInvalidURL), u)
			var vErr *ValidationError
			assert.True(t, errors.As(err, &vErr))
			assert.Contains(t, vErr.Reason, reason, u)
		}
	}
}

func TestCheckLength(t *testing.T) {
	assert.NoError(t, CheckLength("https://example.com", 2048))
	assert.NoError(t, CheckLength(strings.Repeat("a", 5000), 0))
	err := CheckLength("https://example.com/"+strings.Repeat("a", 2048), 2048)
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestFingerprint(t *testing.T) {
	u := Normalize("example.com/")

	first := Fingerprint(u, "")
	assert.Len(t, first, FingerprintLength)
	assert.Equal(t, first, Fingerprint(u, ""))
	assert.Equal(t, first, Fingerprint(u, "anonymous"))
	assert.Equal(t, first, Fingerprint(Normalize("https://EXAMPLE.com:443"), ""))

	assert.NotEqual(t, first, Fingerprint(u, "owner-1"))
	assert.NotEqual(t, first, Fingerprint(Normalize("example.org"), ""))
}
