package domain

import (
	"errors"
	"strings"
)

// User-facing validation messages.
const (
	MsgFieldsRequired = "Both fields are required."
	MsgInvalidURL     = "URL must start with http:// or https://"
)

var (
	ErrFieldsRequired = errors.New("title and url are required")
	ErrInvalidURL     = errors.New("url must use http or https scheme")
)

// ValidationError is returned before any network call when a draft is unusable.
// Message is safe to show to the user as-is.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return e.Err }

// Input is a validated, trimmed title/url pair.
type Input struct {
	Title string
	URL   string
}

// ValidateInput trims title and url and checks them the same way for create and update.
func ValidateInput(title, url string) (Input, error) {
	in := Input{
		Title: strings.TrimSpace(title),
		URL:   strings.TrimSpace(url),
	}

	if in.Title == "" || in.URL == "" {
		return Input{}, &ValidationError{Message: MsgFieldsRequired, Err: ErrFieldsRequired}
	}
	if !HasWebScheme(in.URL) {
		return Input{}, &ValidationError{Message: MsgInvalidURL, Err: ErrInvalidURL}
	}

	return in, nil
}

// HasWebScheme reports whether u starts with http:// or https:// (case-sensitive prefix).
func HasWebScheme(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
