package market

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
)

// FieldError is a field-level validation message extracted from an API error
// body, e.g. {Field: "start_date", Message: "Required"}.
type FieldError struct {
	Field   string
	Message string
}

// String formats the error for display: the field name with underscores
// replaced by spaces and each word capitalized, joined to the message.
// {"start_date": "Required"} renders as "Start Date: Required".
func (f FieldError) String() string {
	return formatFieldName(f.Field) + ": " + f.Message
}

// FirstFieldError finds the first leaf validation message in an error body
// by walking the JSON depth-first in document order: a string value, or an
// array whose first element is a string, is a leaf; an object is descended
// into; anything else is skipped. The second return is false when no leaf
// exists — malformed or non-object input never panics, it just reports no
// leaf so the caller can fall back to a generic message.
func FirstFieldError(body []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))

	tok, err := dec.Token()
	if err != nil {
		return "", false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return "", false
	}

	leaf, found, err := findLeaf(dec)
	if err != nil || !found {
		return "", false
	}
	return leaf.String(), true
}

// findLeaf consumes the members of an object whose opening brace has already
// been read. When it returns found=false it has consumed through the
// object's closing brace; when found=true the decoder is abandoned
// mid-stream, which is fine since the search is over.
func findLeaf(dec *json.Decoder) (FieldError, bool, error) {
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return FieldError{}, false, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return FieldError{}, false, nil
		}

		valTok, err := dec.Token()
		if err != nil {
			return FieldError{}, false, err
		}

		switch v := valTok.(type) {
		case string:
			return FieldError{Field: key, Message: v}, true, nil

		case json.Delim:
			switch v {
			case '{':
				leaf, found, err := findLeaf(dec)
				if err != nil || found {
					return leaf, found, err
				}
			case '[':
				leaf, found, err := firstArrayElement(dec, key)
				if err != nil || found {
					return leaf, found, err
				}
			}

		default:
			// Numbers, booleans, and nulls are not leaves; keep scanning.
		}
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return FieldError{}, false, err
	}
	return FieldError{}, false, nil
}

// firstArrayElement checks whether the array's first element is a string
// leaf, then drains the rest of the array.
func firstArrayElement(dec *json.Decoder, key string) (FieldError, bool, error) {
	if dec.More() {
		elemTok, err := dec.Token()
		if err != nil {
			return FieldError{}, false, err
		}
		if s, ok := elemTok.(string); ok {
			return FieldError{Field: key, Message: s}, true, nil
		}
		if d, ok := elemTok.(json.Delim); ok && (d == '{' || d == '[') {
			if err := skipCompound(dec); err != nil {
				return FieldError{}, false, err
			}
		}
	}

	// Drain remaining elements and the closing bracket.
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return FieldError{}, false, err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return FieldError{}, false, nil
}

// skipCompound consumes tokens until the compound value whose opening delim
// was just read is fully closed.
func skipCompound(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

func formatFieldName(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}
