package ava

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.elara.ws/pcre"
)

const MaxMessageLength = 500

var (
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = fmt.Errorf("message longer than %d characters", MaxMessageLength)
)

// validationText is what the visitor sees for each validation error.
var validationText = map[error]string{
	ErrEmptyMessage:   "Message cannot be empty.",
	ErrMessageTooLong: fmt.Sprintf("Message too long. Maximum %d characters.", MaxMessageLength),
}

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	manyNewlines = regexp.MustCompile(`\n{3,}`)
	manySpaces   = regexp.MustCompile(` {3,}`)
)

var injectionPatterns = compileAll(
	`ignore\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?)`,
	`forget\s+(everything|all|your)\s+(instructions?|training|prompts?)`,
	`you\s+are\s+(now|no\s+longer)\s+(a|an)\b`,
	`new\s+(instructions?|persona|role|identity)`,
	`disregard\s+(all\s+)?(previous|prior|your)`,
	`override\s+(your\s+|the\s+)?(system\s+)?(prompt|instructions?)`,
	`pretend\s+(you\s+are|to\s+be)`,
	`act\s+as\s+(if\s+you\s+are|a\s+different)`,
	`jailbreak`,
	`dan\s+mode`,
	`\[system\]|\[admin\]|\[root\]`,
	`<\s*(system|admin|root)\s*>`,
)

type injectionPattern struct {
	source string
	regex  *pcre.Regexp
}

func compileAll(patterns ...string) []injectionPattern {
	compiled := make([]injectionPattern, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, injectionPattern{source: p, regex: pcre.MustCompile(`(?i)` + p)})
	}
	return compiled
}

// Sanitize strips control characters (newline and tab survive), collapses
// runs of blank lines and spaces, and trims the message.
func Sanitize(message string) string {
	message = strings.ToValidUTF8(message, "")
	message = controlChars.ReplaceAllString(message, "")
	message = manyNewlines.ReplaceAllString(message, "\n\n")
	message = manySpaces.ReplaceAllString(message, "  ")
	return strings.TrimSpace(message)
}

// Validate rejects empty and overlong messages. Length is counted in characters.
func Validate(message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// DetectInjection reports the first prompt injection pattern found in message.
func DetectInjection(message string) (string, bool) {
	for _, pattern := range injectionPatterns {
		if pattern.regex.MatchString(message) {
			return pattern.source, true
		}
	}
	return "", false
}
