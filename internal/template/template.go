// Package template implements the placeholder compiler specified in
// spec.md §4.A: split a string containing {key} placeholders into an
// alternating static/placeholder form once, then apply it with O(N)
// substitution instead of re-running a regex on every resolve.
package template

import (
	"fmt"
	"strings"
)

// CompiledTemplate is the precomputed split form. Invariant:
// len(StaticParts) == len(PlaceholderKeys) + 1.
type CompiledTemplate struct {
	Original        string
	StaticParts     []string
	PlaceholderKeys []string
}

func isPlaceholderChar(r byte) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}

// Validate reports whether s has well-formed {key} placeholders:
// braces balanced, and placeholder content restricted to
// [A-Za-z0-9_]+, with the reserved "lang:" prefix allowed at
// validation time (it is expected to be stripped before Compile).
func Validate(s string) error {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
			if depth > 1 {
				return fmt.Errorf("unbalanced braces at offset %d", i)
			}
			start := i + 1
			end := strings.IndexByte(s[start:], '}')
			if end == -1 {
				return fmt.Errorf("unbalanced braces: unterminated placeholder at offset %d", i)
			}
			content := s[start : start+end]
			if strings.HasPrefix(content, "lang:") {
				i = start + end
				depth--
				continue
			}
			if content == "" {
				return fmt.Errorf("empty placeholder at offset %d", i)
			}
			for j := 0; j < len(content); j++ {
				if !isPlaceholderChar(content[j]) {
					return fmt.Errorf("invalid character %q in placeholder %q", content[j], content)
				}
			}
			i = start + end
			depth--
		case '}':
			if depth == 0 {
				return fmt.Errorf("unbalanced braces: stray '}' at offset %d", i)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced braces in %q", s)
	}
	return nil
}

// HasPlaceholders reports whether s contains at least one {key} form
// (reserved {lang:...} directives count, since they are still braces
// the compiler must not choke on before preprocessing removes them).
func HasPlaceholders(s string) bool {
	return strings.Contains(s, "{") && strings.Contains(s, "}")
}

// ExtractKeys returns the placeholder keys in s, in order, skipping
// any {lang:...} directive.
func ExtractKeys(s string) []string {
	var keys []string
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		end := strings.IndexByte(s[i+1:], '}')
		if end == -1 {
			break
		}
		content := s[i+1 : i+1+end]
		if !strings.HasPrefix(content, "lang:") && content != "" {
			keys = append(keys, content)
		}
		i += 1 + end
	}
	return keys
}

// Compile splits s on {key} placeholder matches. Callers must run
// StripLangDirective first; Compile does not special-case "lang:".
func Compile(s string) CompiledTemplate {
	var parts []string
	var keys []string

	last := 0
	i := 0
	for i < len(s) {
		if s[i] != '{' {
			i++
			continue
		}
		end := strings.IndexByte(s[i+1:], '}')
		if end == -1 {
			i++
			continue
		}
		content := s[i+1 : i+1+end]
		valid := content != ""
		for j := 0; valid && j < len(content); j++ {
			if !isPlaceholderChar(content[j]) {
				valid = false
			}
		}
		if !valid {
			i = i + 1 + end + 1
			continue
		}
		parts = append(parts, s[last:i])
		keys = append(keys, content)
		i = i + 1 + end + 1
		last = i
	}
	parts = append(parts, s[last:])

	return CompiledTemplate{Original: s, StaticParts: parts, PlaceholderKeys: keys}
}

// Apply interleaves static parts and substituted values. A key with
// no entry in values is re-emitted verbatim as "{key}" so composed
// pipelines (e.g. an outer %name% expansion) can resolve it later.
func Apply(t CompiledTemplate, values map[string]string) string {
	if len(t.PlaceholderKeys) == 0 {
		return t.Original
	}
	var b strings.Builder
	b.Grow(len(t.Original))
	for i, key := range t.PlaceholderKeys {
		b.WriteString(t.StaticParts[i])
		if v, ok := values[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteByte('{')
			b.WriteString(key)
			b.WriteByte('}')
		}
	}
	b.WriteString(t.StaticParts[len(t.StaticParts)-1])
	return b.String()
}

// StripLangDirective processes the reserved {lang:xx_yy} form. It
// returns the string with the first such directive removed, the
// language code found, and whether one was found. Resolver callers
// run this before Compile, per spec.md §4.A.
func StripLangDirective(s string) (clean string, lang string, ok bool) {
	idx := strings.Index(s, "{lang:")
	if idx == -1 {
		return s, "", false
	}
	end := strings.IndexByte(s[idx:], '}')
	if end == -1 {
		return s, "", false
	}
	end += idx
	lang = s[idx+len("{lang:") : end]
	clean = s[:idx] + s[end+1:]
	return clean, lang, true
}
