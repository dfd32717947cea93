// Package template implements the restricted placeholder micro-language used
// for variable substitution in tasks, step arguments and workflow bindings.
// Placeholders take the form {{ name }} or {{ name.nested.field }}; they are
// replaced by values supplied through a lookup callback. The scan is a plain
// delimiter match, never host-language evaluation.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {{ name }} with optional whitespace and dot-path
// segments ({{ result.battery.level }}).
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z0-9_]+)*)\s*\}\}`)

// LookupFunc resolves a dot-path reference to a value. The second return
// reports whether the reference resolved.
type LookupFunc func(path string) (any, bool)

// UnresolvedError reports placeholder references that could not be resolved.
// Missing keys are an error, never a silent empty-string substitution.
type UnresolvedError struct {
	Refs []string
}

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved template variables: %s", strings.Join(e.Refs, ", "))
}

// HasPlaceholder reports whether the string contains at least one placeholder.
func HasPlaceholder(s string) bool {
	return strings.Contains(s, "{{") && placeholderPattern.MatchString(s)
}

// Resolve recursively substitutes placeholders in a value. Strings are
// scanned for placeholders; maps and slices are walked and their leaf strings
// substituted; all other types pass through unchanged.
//
// A string that consists of exactly one placeholder resolves to the referenced
// value with its original type preserved. Mixed text renders every referenced
// value through its string form.
func Resolve(value any, lookup LookupFunc) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(v, lookup)
	case map[string]any:
		resolved := make(map[string]any, len(v))
		for key, val := range v {
			rv, err := Resolve(val, lookup)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			resolved[key] = rv
		}
		return resolved, nil
	case []any:
		resolved := make([]any, len(v))
		for i, val := range v {
			rv, err := Resolve(val, lookup)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			resolved[i] = rv
		}
		return resolved, nil
	default:
		return value, nil
	}
}

func resolveString(s string, lookup LookupFunc) (any, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	// A bare placeholder keeps the referenced value's type intact so a step
	// can pass structured results (maps, slices, numbers) between agents.
	if ref, ok := singlePlaceholder(s); ok {
		value, found := lookup(ref)
		if !found {
			return nil, &UnresolvedError{Refs: []string{ref}}
		}
		return value, nil
	}

	var missing []string
	result := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		ref := placeholderPattern.FindStringSubmatch(match)[1]
		value, found := lookup(ref)
		if !found {
			missing = append(missing, ref)
			return match
		}
		return Stringify(value)
	})
	if len(missing) > 0 {
		return nil, &UnresolvedError{Refs: missing}
	}
	return result, nil
}

// singlePlaceholder reports whether the trimmed string is exactly one
// placeholder and returns its reference.
func singlePlaceholder(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	loc := placeholderPattern.FindStringSubmatchIndex(trimmed)
	if loc == nil || loc[0] != 0 || loc[1] != len(trimmed) {
		return "", false
	}
	return trimmed[loc[2]:loc[3]], true
}

// Stringify renders a value the way placeholder interpolation does.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		// Avoid the %v float noise for whole numbers produced by JSON/YAML decoding.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// RootSegment returns the first dot-path segment of a reference:
// "result.battery.level" yields "result".
func RootSegment(ref string) string {
	if idx := strings.IndexByte(ref, '.'); idx >= 0 {
		return ref[:idx]
	}
	return ref
}

// ExtractRefs returns every placeholder reference found in a value, walking
// nested maps and slices. Order follows first appearance; duplicates are
// removed.
func ExtractRefs(value any) []string {
	seen := make(map[string]bool)
	var refs []string
	extractRefs(value, seen, &refs)
	return refs
}

func extractRefs(value any, seen map[string]bool, refs *[]string) {
	switch v := value.(type) {
	case string:
		for _, match := range placeholderPattern.FindAllStringSubmatch(v, -1) {
			if !seen[match[1]] {
				seen[match[1]] = true
				*refs = append(*refs, match[1])
			}
		}
	case map[string]any:
		for _, val := range v {
			extractRefs(val, seen, refs)
		}
	case []any:
		for _, val := range v {
			extractRefs(val, seen, refs)
		}
	}
}
