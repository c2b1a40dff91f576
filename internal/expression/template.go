// Package expression evaluates name templates such as "orders_#{tenant}".
// Text inside #{...} is a CEL expression evaluated against caller-supplied
// variables; everything else is literal.
package expression

import (
	"fmt"
	"strings"
)

const (
	// Prefix opens an expression inside a template.
	Prefix = "#{"
	// Suffix closes an expression inside a template.
	Suffix = "}"
)

// IsTemplate reports whether s contains an expression marker.
func IsTemplate(s string) bool {
	return strings.Contains(s, Prefix)
}

type segment struct {
	text       string
	expression bool
}

// parseTemplate splits a template into literal and expression segments.
// Braces nested inside an expression are balanced and quoted strings are
// skipped, so map literals and strings containing "}" parse correctly.
func parseTemplate(template string) ([]segment, error) {
	var segments []segment
	rest := template
	offset := 0
	for {
		start := strings.Index(rest, Prefix)
		if start < 0 {
			if rest != "" {
				segments = append(segments, segment{text: rest})
			}
			return segments, nil
		}
		if start > 0 {
			segments = append(segments, segment{text: rest[:start]})
		}

		body := rest[start+len(Prefix):]
		end, err := closingBrace(body)
		if err != nil {
			return nil, fmt.Errorf("template %q at offset %d: %w", template, offset+start, err)
		}
		expr := strings.TrimSpace(body[:end])
		if expr == "" {
			return nil, fmt.Errorf("template %q at offset %d: empty expression", template, offset+start)
		}
		segments = append(segments, segment{text: expr, expression: true})

		consumed := start + len(Prefix) + end + len(Suffix)
		offset += consumed
		rest = rest[consumed:]
	}
}

func closingBrace(body string) (int, error) {
	depth := 0
	var quote byte
	for i := 0; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i, nil
			}
			depth--
		}
	}
	return 0, fmt.Errorf("unterminated expression")
}
