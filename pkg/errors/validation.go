package errors

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// maxLayoutNameLength bounds layout names, which become file names and
// object keys.
const maxLayoutNameLength = 200

// layoutNameRegex matches names such as "can_229" or "sub2k/can_229".
var layoutNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(/[A-Za-z0-9][A-Za-z0-9._-]*)*$`)

// ValidateLayoutName validates the name a solved layout is stored under.
// It rejects names that could be used for path traversal or key injection.
//
// Validation rules:
//   - Name cannot be empty
//   - Maximum length of 200 characters
//   - No control characters or null bytes
//   - No path traversal sequences (..)
//   - No backslashes or leading slash
//   - Slash-separated segments of letters, digits, '.', '_' and '-'
func ValidateLayoutName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "layout name cannot be empty")
	}

	if len(name) > maxLayoutNameLength {
		return New(ErrCodeInvalidName, "layout name too long (max %d characters)", maxLayoutNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "layout name contains invalid control characters")
		}
	}

	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidName, "layout name cannot contain path traversal sequences (..)")
	}

	if strings.Contains(name, "\\") {
		return New(ErrCodeInvalidName, "layout name cannot contain backslashes")
	}

	if !layoutNameRegex.MatchString(name) {
		return New(ErrCodeInvalidName, "invalid layout name: %q", name)
	}

	return nil
}

// ValidatePath validates a local file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// ValidateURL validates a backend connection URL and checks that its scheme
// is one of schemes.
func ValidateURL(rawURL string, schemes ...string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid URL")
	}

	if !slices.Contains(schemes, u.Scheme) {
		return New(ErrCodeInvalidInput, "URL must use one of the schemes %v, got %q", schemes, u.Scheme)
	}

	if u.Host == "" {
		return New(ErrCodeInvalidInput, "URL must name a host")
	}

	return nil
}
