package loop

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// hashLength is the number of hex characters kept from the SHA-256 digest.
const hashLength = 16

// OutcomeHash returns the canonical hash of a loop outcome. Set arguments may
// be supplied in any order; they are sorted before hashing.
func OutcomeHash(survivors, deaths, stateChanges []string, endingType string) string {
	return digest(
		field{"survivors", sortedList(survivors)},
		field{"deaths", sortedList(deaths)},
		field{"state_changes", sortedList(stateChanges)},
		field{"ending_type", endingType},
	)
}

// KnowledgeID returns the canonical hash of a knowledge state.
func KnowledgeID(facts, secrets, skills []string) string {
	return digest(
		field{"facts", sortedList(facts)},
		field{"secrets", sortedList(secrets)},
		field{"skills", sortedList(skills)},
	)
}

// MoodID returns the canonical hash of a mood state. Resilience is rounded to
// two decimal places before hashing.
func MoodID(baseline string, traumaMarkers []string, resilience float64) string {
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(resilience, 'f', 2, 64), 64)
	return digest(
		field{"baseline", baseline},
		field{"trauma_markers", sortedList(traumaMarkers)},
		field{"resilience", rounded},
	)
}

type field struct {
	key   string
	value any
}

// digest serializes fields as a JSON object with sorted keys, ", " and ": "
// separators and ASCII-only escaping, then returns the truncated SHA-256.
func digest(fields ...field) string {
	slices.SortFunc(fields, func(a, b field) int { return strings.Compare(a.key, b.key) })

	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		writeString(&b, f.key)
		b.WriteString(": ")
		writeValue(&b, f.value)
	}
	b.WriteByte('}')

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:hashLength]
}

func writeValue(b *strings.Builder, v any) {
	switch val := v.(type) {
	case string:
		writeString(b, val)
	case []string:
		b.WriteByte('[')
		for i, s := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			writeString(b, s)
		}
		b.WriteByte(']')
	case float64:
		b.WriteString(formatFloat(val))
	default:
		panic(fmt.Sprintf("loop: unsupported hash value %T", v))
	}
}

func writeString(b *strings.Builder, s string) {
	const hexDigits = "0123456789abcdef"
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r >= 0x20 && r < 0x7f {
				b.WriteRune(r)
				continue
			}
			units := []uint16{uint16(r)}
			if r > 0xffff {
				r1, r2 := utf16.EncodeRune(r)
				units = []uint16{uint16(r1), uint16(r2)}
			}
			for _, u := range units {
				b.WriteString(`\u`)
				b.WriteByte(hexDigits[u>>12&0xf])
				b.WriteByte(hexDigits[u>>8&0xf])
				b.WriteByte(hexDigits[u>>4&0xf])
				b.WriteByte(hexDigits[u&0xf])
			}
		}
	}
	b.WriteByte('"')
}

// formatFloat renders f with the shortest round-trip digits, always keeping a
// fractional part. Mood resilience is confined to [0, 1] so exponent forms
// never occur.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func sortedList(items []string) []string {
	out := slices.Clone(items)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return out
}
