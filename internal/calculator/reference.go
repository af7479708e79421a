package calculator

import (
	"slices"
	"strings"
	"unicode"
)

// ParseReference splits a paybill reference such as "041|1043,205" into admission numbers.
//
// Both '|' and ',' separate parts and may be mixed. Parts are trimmed, must be made of
// ASCII digits only and must not repeat. The returned order matches the input order and
// is used downstream as the allocation tie-break and the credit split order.
// On failure a *ValidationError is returned and no partial result.
func ParseReference(raw string) ([]string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, newValidationError(KindEmptyInput, nil, "empty reference string")
	}

	if invalid := invalidReferenceChars(s); len(invalid) > 0 {
		return nil, newValidationError(KindInvalidCharacter, invalid,
			"invalid character(s) in reference string: %s", strings.Join(invalid, ""))
	}

	parts := strings.Split(strings.ReplaceAll(s, ",", "|"), "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
		if parts[i] == "" {
			return nil, newValidationError(KindEmptyPart, nil, "empty reference part found")
		}
	}

	for _, p := range parts {
		if !isDigits(p) {
			return nil, newValidationError(KindNonNumericPart, []string{p}, "non-numeric reference part: '%s'", p)
		}
	}

	seen := make(map[string]bool, len(parts))
	var dupes []string
	for _, p := range parts {
		if seen[p] {
			if !slices.Contains(dupes, p) {
				dupes = append(dupes, p)
			}
			continue
		}
		seen[p] = true
	}
	if len(dupes) > 0 {
		return nil, newValidationError(KindDuplicateParts, dupes,
			"duplicate references found: %s", strings.Join(dupes, ", "))
	}

	return parts, nil
}

func isSeparator(r rune) bool {
	return r == '|' || r == ','
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return true
}

// invalidReferenceChars returns the distinct disallowed characters of s, sorted.
func invalidReferenceChars(s string) []string {
	set := make(map[rune]bool)
	for _, r := range s {
		if isDigit(r) || isSeparator(r) || unicode.IsSpace(r) {
			continue
		}
		set[r] = true
	}
	if len(set) == 0 {
		return nil
	}
	runes := make([]rune, 0, len(set))
	for r := range set {
		runes = append(runes, r)
	}
	slices.Sort(runes)
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}
