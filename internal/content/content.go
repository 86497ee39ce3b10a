package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	policy = bluemonday.UGCPolicy().
		AllowAttrs("class", "title").Globally().
		AllowAttrs("data-msgid").OnElements("div", "a").
		AllowAttrs("data-ts").OnElements("span")
	markdown    = goldmark.New()
	userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// Sanitize removes unsafe HTML from the input string. Rendered message lines
// and room topics pass through it before they reach a display surface.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// Escape escapes special characters like "<" to become "&lt;".
// It matches the behavior of html/template and is safe for use in HTML attributes.
func Escape(input string) string {
	return template.HTMLEscapeString(input)
}

// RenderTopic renders a room topic written in markdown to sanitized HTML.
func RenderTopic(topic string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(topic), &buf); err != nil {
		return "", fmt.Errorf("failed to render topic: %w", err)
	}
	return Sanitize(buf.String()), nil
}

// ValidateUserID checks that a moderation target looks like a login
// (alphanumeric, dot, dash, underscore) and is not empty.
func ValidateUserID(userID string) error {
	if userID == "" {
		return errors.New("user id cannot be empty")
	}
	if !userIDRegex.MatchString(userID) {
		return errors.New("user id contains invalid characters (allowed: alphanumeric, dot, dash, underscore)")
	}
	return nil
}
