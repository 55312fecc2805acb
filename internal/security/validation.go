// Package security holds the input-sanitation helpers used by the
// admin surface. It has no signature-verification helpers; the webhook
// receiver checks its HMAC signature itself. Adapted from the companion
// proxy's validation.go: same rule set, translated error strings
// instead of routing through the i18n system this module itself
// implements (this package cannot depend on its own product surface).
package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// SanitizeInput rejects obviously hostile input: oversized payloads,
// script tags, javascript: URIs, and a short blocklist of dangerous
// HTML tags.
func SanitizeInput(input string, maxLength int) (string, error) {
	if utf8.RuneCountInString(input) > maxLength {
		return "", fmt.Errorf("input exceeds maximum length of %d", maxLength)
	}

	scriptPattern := regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`)
	if scriptPattern.MatchString(input) {
		return "", fmt.Errorf("input contains disallowed script tags")
	}

	if strings.Contains(strings.ToLower(input), "javascript:") {
		return "", fmt.Errorf("input contains disallowed javascript protocol")
	}

	dangerousTags := []string{"<iframe", "<object", "<embed", "<form", "<input", "<meta"}
	lowerInput := strings.ToLower(input)
	for _, tag := range dangerousTags {
		if strings.Contains(lowerInput, tag) {
			return "", fmt.Errorf("input contains disallowed HTML tags")
		}
	}

	return input, nil
}

// ValidateNamespaceName rejects namespace identifiers that could be
// used for path traversal when resolved against the filesystem layout
// (spec.md §6's <dataRoot>/languages/<lang>/<namespace>/ layout).
func ValidateNamespaceName(name string) error {
	if name == "" {
		return fmt.Errorf("namespace name cannot be empty")
	}
	if _, err := SanitizeInput(name, 100); err != nil {
		return fmt.Errorf("namespace name validation failed: %w", err)
	}
	if strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return fmt.Errorf("namespace name cannot contain path separators")
	}
	return nil
}

// ValidateLanguageCode rejects language codes containing characters
// outside the registry's ^[a-z]{2}_[a-z]{2}$ shape before they ever
// reach the Registry's own check of the same pattern, giving callers
// an earlier rejection point.
func ValidateLanguageCode(code string) error {
	if code == "" {
		return fmt.Errorf("language code cannot be empty")
	}
	validCode := regexp.MustCompile(`^[a-z]{2}_[a-z]{2}$`)
	if !validCode.MatchString(code) {
		return fmt.Errorf("language code %q does not match required ^[a-z]{2}_[a-z]{2}$ shape", code)
	}
	return nil
}

// ValidateGenericText applies SanitizeInput with a caller-chosen length
// limit, reporting fieldName on failure.
func ValidateGenericText(text string, maxLength int, fieldName string) error {
	if text == "" {
		return nil
	}
	if _, err := SanitizeInput(text, maxLength); err != nil {
		return fmt.Errorf("%s validation failed: %w", fieldName, err)
	}
	return nil
}
