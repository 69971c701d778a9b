package shortcode

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidCode signals a custom code with the wrong length or characters.
	ErrInvalidCode = errors.New("custom code must be 3-20 characters of letters, digits, '_' or '-'")
	// ErrReservedCode signals a custom code that collides with a system path or is degenerate.
	ErrReservedCode = errors.New("custom code is reserved")
)

var customCodeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

var reservedWords = map[string]struct{}{
	"api": {}, "admin": {}, "www": {}, "app": {}, "mail": {}, "ftp": {}, "localhost": {},
	"stats": {}, "dashboard": {}, "login": {}, "register": {}, "signup": {}, "signin": {},
	"auth": {}, "oauth": {}, "callback": {}, "webhook": {}, "health": {}, "status": {},
	"about": {}, "contact": {}, "help": {}, "support": {}, "terms": {}, "privacy": {},
	"robots": {}, "sitemap": {}, "favicon": {}, "apple": {}, "android": {}, "ios": {},
}

var degenerateLiterals = map[string]struct{}{
	"123": {}, "abc": {}, "xyz": {}, "test": {}, "demo": {},
}

// ValidateCustom checks a caller-chosen code. Format problems yield ErrInvalidCode;
// reserved words and degenerate forms yield ErrReservedCode.
func ValidateCustom(code string) error {
	if !customCodeRegex.MatchString(code) {
		return ErrInvalidCode
	}

	lower := strings.ToLower(code)
	if _, ok := reservedWords[lower]; ok {
		return ErrReservedCode
	}
	if _, ok := degenerateLiterals[lower]; ok {
		return ErrReservedCode
	}
	if isSingleCharRun(code) {
		return ErrReservedCode
	}

	return nil
}

// isSingleCharRun matches "aaa", "bbbb" and so on. The regex is at least 3 chars long already.
func isSingleCharRun(code string) bool {
	for i := 1; i < len(code); i++ {
		if code[i] != code[0] {
			return false
		}
	}
	return true
}
