package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL is matched by every ValidationError.
var ErrInvalidURL = errors.New("invalid url")

// ValidationError describes why a URL was rejected.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid url: %s", e.Reason)
}

// Is lets errors.Is(err, ErrInvalidURL) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidURL
}

// Dangerous pseudo-schemes are refused anywhere in the text, not only as the leading scheme.
var deniedFragments = []string{
	"javascript:",
	"data:",
	"vbscript:",
	"file:",
	"ftp:",
}

var privateHostPrefixes = []string{"10.", "172.", "192.168."}

// Validate accepts only public http(s) URLs. It expects Normalize output.
func Validate(normalized string) error {
	u, err := url.Parse(normalized)
	if err != nil {
		return reject(normalized, "unparseable")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return reject(normalized, "scheme must be http or https")
	}

	host := strings.ToLower(u.Hostname())
	if len(host) < 4 {
		return reject(normalized, "hostname too short")
	}
	if !strings.Contains(host, ".") {
		return reject(normalized, "hostname must contain a dot")
	}
	if host == "localhost" || host == "127.0.0.1" {
		return reject(normalized, "loopback host")
	}
	for _, prefix := range privateHostPrefixes {
		if strings.HasPrefix(host, prefix) {
			return reject(normalized, "private network host")
		}
	}

	lower := strings.ToLower(normalized)
	for _, fragment := range deniedFragments {
		if strings.Contains(lower, fragment) {
			return reject(normalized, "contains "+strings.TrimSuffix(fragment, ":")+" scheme")
		}
	}

	return nil
}

// DefaultMaxLength is the longest raw URL accepted for shortening.
const DefaultMaxLength = 2048

// CheckLength rejects raw input longer than limit characters. A non-positive limit disables the check.
func CheckLength(raw string, limit int) error {
	if limit > 0 && len(raw) > limit {
		return reject(raw, fmt.Sprintf("longer than %d characters", limit))
	}
	return nil
}

func reject(u, reason string) error {
	return &ValidationError{URL: u, Reason: reason}
}
